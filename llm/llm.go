package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers transport failures and timeouts.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrStatus is a non-success answer from the backend.
	ErrStatus = errors.New("backend returned an error status")

	// ErrRateLimited is the rate-limit flavour of ErrStatus. Callers wait
	// briefly before moving to the next model.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrStatus)

	// ErrMalformed is a response that does not carry the expected payload.
	ErrMalformed = errors.New("malformed backend response")
)

type LLM interface {
	// Generate sends the request to model and returns the raw response text.
	Generate(ctx context.Context, model string, req Request) (string, error)
}

// Request is a structured generation request.
type Request struct {
	System      string
	User        string
	Temperature float32
}

// BackendError ties a failure to the model that produced it.
type BackendError struct {
	Model string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
