package apperrors

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrStaleSession     = errors.New("stale session")
	ErrGenerationFailed = errors.New("generation failed")
	ErrPrintFailed      = errors.New("print failed")
	ErrCaptureFailed    = errors.New("capture failed")
)
