package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoEngineAvailable = errors.New("no OCR engine available")
	ErrExtractionFailed  = errors.New("extraction failed on all engines")
	ErrCacheUnavailable  = errors.New("result cache unavailable")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrBatchTerminal     = errors.New("batch already in a terminal state")
	ErrEmptyBatch        = errors.New("batch has no valid documents")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrStepNotSupported  = errors.New("preprocessing step not supported")
	ErrUnknownEngine     = errors.New("unknown OCR engine")
)

// EngineFailureError signals that a single engine invocation failed.
// It is recoverable: the orchestrator falls back to the next engine.
// Low confidence is never an EngineFailureError.
type EngineFailureError struct {
	Engine string
	Reason string
	Err    error
}

func (e *EngineFailureError) Error() string {
	return fmt.Sprintf("engine %s failed: %s", e.Engine, e.Reason)
}

func (e *EngineFailureError) Unwrap() error {
	return e.Err
}

// NewEngineFailure wraps err as an EngineFailureError for the named engine.
func NewEngineFailure(engine, reason string, err error) *EngineFailureError {
	return &EngineFailureError{Engine: engine, Reason: reason, Err: err}
}

// Describe converts a pipeline error into its user-visible descriptor.
func Describe(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}
	var ef *EngineFailureError
	switch {
	case errors.As(err, &ef):
		return &ErrorDescriptor{Kind: "engine_failure", Message: ef.Reason, Engine: ef.Engine, Stage: "ocr"}
	case errors.Is(err, ErrNoEngineAvailable):
		return &ErrorDescriptor{Kind: "no_engine_available", Message: err.Error(), Stage: "ocr"}
	case errors.Is(err, ErrExtractionFailed):
		return &ErrorDescriptor{Kind: "extraction_failed", Message: err.Error(), Stage: "ocr"}
	case errors.Is(err, ErrDocumentNotFound):
		return &ErrorDescriptor{Kind: "document_not_found", Message: err.Error(), Stage: "fetch"}
	default:
		return &ErrorDescriptor{Kind: "internal", Message: err.Error()}
	}
}
