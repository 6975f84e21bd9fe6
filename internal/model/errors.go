package model

import "fmt"

// MetadataError is returned when metadata for a URL cannot be fetched
type MetadataError struct {
	URL string
	Err error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("failed to fetch video info: %v", e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// EngineError is returned when a download or conversion fails
type EngineError struct {
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "engine error"
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps err with a human readable message
func NewEngineError(err error, format string, args ...any) *EngineError {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &EngineError{Message: msg, Err: err}
}
