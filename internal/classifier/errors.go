package classifier

import (
	"errors"
	"fmt"

	"github.com/jsmcel/guideitor/internal/domain"
)

// ErrNoModel is returned when Classify is called without any model handle.
// Callers are expected to resolve models first and not attempt inference
// when resolution failed.
var ErrNoModel = errors.New("no model handle supplied")

// PreprocessingError reports a malformed or unreadable image. Recoverable
// per-request; carries a human-readable reason for the caller.
type PreprocessingError struct {
	Reason string
	Err    error
}

func (e *PreprocessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("preprocessing: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("preprocessing: %s", e.Reason)
}

func (e *PreprocessingError) Unwrap() error { return e.Err }

// InferenceError reports a runtime failure during model execution.
type InferenceError struct {
	Model domain.ModelRole
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference (%s model): %v", e.Model, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
