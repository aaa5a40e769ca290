package upstream

import (
	"context"
	"errors"
	"net/http"
	"strconv"
)

var ErrDecode = errors.New("invalid response body")

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return e.Endpoint + ": unexpected status " + strconv.Itoa(e.StatusCode)
}

func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

type RequestError struct {
	Endpoint string
	Err      error
}

func (e *RequestError) Error() string {
	return e.Endpoint + ": " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func NewRequestError(endpoint string, err error) *RequestError {
	return &RequestError{
		Endpoint: endpoint,
		Err:      err,
	}
}

func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return !errors.Is(err, ErrDecode)
}
