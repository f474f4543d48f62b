// Package joberr defines the stable error taxonomy surfaced to callers.
// Every fallible boundary in the worker converts its failures into an
// *Error carrying one of the Kind tags below; the tag is what callers see
// in the error_type field of a failure response.
package joberr

import (
	"errors"
	"fmt"
)

// Kind is a stable string tag identifying a failure class.
type Kind string

// Validation failures produced by the request gateway.
const (
	KindMissingField           Kind = "missing_field"
	KindInvalidType            Kind = "invalid_type"
	KindPromptTooShort         Kind = "prompt_too_short"
	KindPromptTooLong          Kind = "prompt_too_long"
	KindPromptEmptyAfterStrip  Kind = "prompt_too_short_after_sanitization"
	KindUserIDEmpty            Kind = "user_id_empty"
	KindUserIDTooLong          Kind = "user_id_too_long"
	KindUserIDInvalidFormat    Kind = "user_id_invalid_format"
	KindPathTraversal          Kind = "path_traversal_attempt"
	KindPathValidation         Kind = "path_validation_error"

	// KindValidation is the catch-all for unexpected faults on the
	// validation path; the gateway contract is that nothing ever
	// propagates past it untyped.
	KindValidation Kind = "validation_error"
)

// Execution failures produced by the worker pipeline.
const (
	KindInitialization Kind = "initialization_error"
	KindGeneration     Kind = "generation_error"
	KindEncoding       Kind = "encoding_error"
	KindUpload         Kind = "upload_error"
	KindReference      Kind = "reference_error"
	KindTimeout        Kind = "timeout_error"
)

// Initialization sub-reasons, carried in Details under the "reason" key.
const (
	ReasonEnvVarMissing        = "environment_variable_missing"
	ReasonStorageInit          = "storage_initialization_error"
	ReasonCUDAUnavailable      = "cuda_unavailable"
	ReasonInsufficientCapacity = "insufficient_capacity"
	ReasonModelLoading         = "model_loading_error"
)

// Error is a typed failure with a stable kind and optional diagnostic
// details. Details must never contain secrets; the response builder
// additionally strips values under secret-looking keys before rendering.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a typed error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap converts err into a typed error of the given kind, preserving it
// as the unwrap cause. If err is already an *Error it is returned
// unchanged so a more specific kind assigned closer to the failure wins.
func Wrap(kind Kind, err error) *Error {
	var je *Error
	if errors.As(err, &je) {
		return je
	}
	return &Error{Kind: kind, Message: err.Error(), cause: err}
}

// With attaches a detail key/value and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// KindOf extracts the kind tag from err, or "" if err carries none.
func KindOf(err error) Kind {
	var je *Error
	if errors.As(err, &je) {
		return je.Kind
	}
	return ""
}
