package utils

// ResponseData is the REST response envelope.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}
