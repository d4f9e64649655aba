package services

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is; the controller maps
// each kind to an HTTP status.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrInvalidInput)
	ErrNoDocumentLoaded  = errors.New("no document loaded")
	ErrParseFailure      = errors.New("parse failure")
	ErrEmptyIndex        = errors.New("empty index")
	ErrProvider          = errors.New("provider error")
	ErrTimeout           = fmt.Errorf("%w: timeout", ErrProvider)
)

// providerError wraps a failure from an embedding or answer provider so that it
// always matches ErrProvider, and ErrTimeout when the call ran out of time.
func providerError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}
