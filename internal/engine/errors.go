package engine

import "errors"

// ErrRenderCancelled marks a rasterization superseded by a newer
// request for the same session. It is not a failure: callers drop the
// stale result and move on.
var ErrRenderCancelled = errors.New("render cancelled")

// LoadError reports malformed or non-document input. The workspace
// stays unchanged when Load fails with one.
type LoadError struct {
	Name string // display name of the input, if known
	Err  error
}

func (e *LoadError) Error() string {
	if e.Name != "" {
		return "cannot load " + e.Name + ": " + e.Err.Error()
	}
	return "cannot load document: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// EngineError reports a failed mutation or save inside the document
// engine. The previous bytes are retained; nothing is partially
// written.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string { return "engine " + e.Op + ": " + e.Err.Error() }

func (e *EngineError) Unwrap() error { return e.Err }

// ValidationError rejects an operation before any engine call, e.g.
// deleting every page of a document.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// IsLoadError reports whether err is or wraps a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsCancelled reports whether err is the render-cancellation sentinel.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrRenderCancelled)
}
