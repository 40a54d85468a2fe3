package checker

import (
	"context"
	"errors"
	"fmt"

	"github.com/August26/proxychk/internal/model"
	"github.com/August26/proxychk/internal/parser"
)

var (
	// ErrUnreachable means the raw socket probe failed; no protocol probing
	// is attempted after it.
	ErrUnreachable = errors.New("proxy not responding")

	// ErrServiceUnusable means the validation service gave no usable answer.
	// It never leaves the checker; it only selects the fallback path.
	ErrServiceUnusable = errors.New("validation service unusable")

	// ErrBatchTimeout marks endpoints that did not finish before their
	// sub-batch deadline.
	ErrBatchTimeout = errors.New("timeout checking proxy")

	// ErrPipeline marks an unexpected failure inside one endpoint's pipeline.
	ErrPipeline = errors.New("error checking proxy")
)

// UnreachableError carries the socket probe outcome of a dead endpoint.
type UnreachableError struct {
	Endpoint string
	Code     int
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("proxy %s is not responding: connection error (code: %d)", e.Endpoint, e.Code)
}

func (e *UnreachableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnreachable}
	}
	return []error{ErrUnreachable, e.Err}
}

// PipelineError wraps a panic or unexpected error from one endpoint check.
type PipelineError struct {
	Input string
	Cause any
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("error checking proxy %s: %v", e.Input, e.Cause)
}

func (e *PipelineError) Unwrap() error { return ErrPipeline }

// ClassifyError maps an endpoint error to the kind of batch entry it produces.
func ClassifyError(err error) model.EntryKind {
	switch {
	case err == nil:
		return model.KindOK
	case errors.Is(err, parser.ErrFormat), errors.Is(err, parser.ErrPortNotNumeric):
		return model.KindFormat
	case errors.Is(err, parser.ErrPortRange):
		return model.KindRange
	case errors.Is(err, ErrUnreachable):
		return model.KindUnreachable
	case errors.Is(err, ErrBatchTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return model.KindTimeout
	default:
		return model.KindPipeline
	}
}
