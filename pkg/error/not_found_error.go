package error

import "net/http"

// NotFoundError covers lookups that miss, such as a channel with no match
// for the requested instance name.
type NotFoundError string

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND_ERROR"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}
