package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies provider failures. Embedding failures of any kind are
// recoverable (the retrieval engine degrades to keyword search); completion
// failures are fatal for the request.
type ErrorKind string

const (
	KindRateLimited  ErrorKind = "rate_limited"
	KindTimeout      ErrorKind = "timeout"
	KindInvalidInput ErrorKind = "invalid_input"
	KindUnavailable  ErrorKind = "unavailable"
)

// Error wraps a failed provider call.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return KindRateLimited
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return KindInvalidInput
		case http.StatusGatewayTimeout:
			return KindTimeout
		}
	}
	return KindUnavailable
}
