package error

// GenericError lets HTTP layers map domain errors to a status and code
// without switching on concrete types.
type GenericError interface {
	error
	ErrCode() string
	StatusCode() int
}
