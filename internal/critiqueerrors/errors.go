// Package critiqueerrors provides sentinel and custom error types for the critique pipeline.
//
// Every type implements Is so callers can match with errors.Is against the
// exported sentinels, and Unwrap so the underlying cause stays reachable.
package critiqueerrors

// ErrImageDecode represents an image that could not be decoded.
var ErrImageDecode = &ImageDecodeError{}

// ImageDecodeError is returned when the image bytes are corrupt or in an unsupported format.
type ImageDecodeError struct {
	Message string
	Cause   error
}

// NewImageDecodeError creates an ImageDecodeError wrapping cause.
func NewImageDecodeError(message string, cause error) *ImageDecodeError {
	return &ImageDecodeError{Message: message, Cause: cause}
}

func (e *ImageDecodeError) Error() string {
	return format(e.Message, "image decode failed", e.Cause)
}

// Is implements the error interface for error comparison.
func (e *ImageDecodeError) Is(target error) bool {
	_, ok := target.(*ImageDecodeError)

	return ok
}

func (e *ImageDecodeError) Unwrap() error { return e.Cause }

// ErrModelInference represents a failure of the embedding model.
var ErrModelInference = &ModelInferenceError{}

// ModelInferenceError is returned when the embedding model is unavailable or returns an unusable vector.
type ModelInferenceError struct {
	Message string
	Cause   error
}

// NewModelInferenceError creates a ModelInferenceError wrapping cause.
func NewModelInferenceError(message string, cause error) *ModelInferenceError {
	return &ModelInferenceError{Message: message, Cause: cause}
}

func (e *ModelInferenceError) Error() string {
	return format(e.Message, "model inference failed", e.Cause)
}

// Is implements the error interface for error comparison.
func (e *ModelInferenceError) Is(target error) bool {
	_, ok := target.(*ModelInferenceError)

	return ok
}

func (e *ModelInferenceError) Unwrap() error { return e.Cause }

// ErrDegenerateVector represents a vector whose norm is zero or not finite.
var ErrDegenerateVector = &DegenerateVectorError{}

// DegenerateVectorError is returned when a vector cannot be L2-normalized.
type DegenerateVectorError struct {
	Message string
}

// NewDegenerateVectorError creates a DegenerateVectorError with a custom message.
func NewDegenerateVectorError(message string) *DegenerateVectorError {
	return &DegenerateVectorError{Message: message}
}

func (e *DegenerateVectorError) Error() string {
	return format(e.Message, "degenerate vector", nil)
}

// Is implements the error interface for error comparison.
func (e *DegenerateVectorError) Is(target error) bool {
	_, ok := target.(*DegenerateVectorError)

	return ok
}

// ErrStoreUnavailable represents an unreachable vector or graph store.
var ErrStoreUnavailable = &StoreUnavailableError{}

// StoreUnavailableError is returned when a backing store cannot be reached or times out.
type StoreUnavailableError struct {
	Store string
	Cause error
}

// NewStoreUnavailableError creates a StoreUnavailableError for the named store.
func NewStoreUnavailableError(store string, cause error) *StoreUnavailableError {
	return &StoreUnavailableError{Store: store, Cause: cause}
}

func (e *StoreUnavailableError) Error() string {
	msg := "store unavailable"
	if e.Store != "" {
		msg = e.Store + " store unavailable"
	}

	return format(msg, "", e.Cause)
}

// Is implements the error interface for error comparison.
func (e *StoreUnavailableError) Is(target error) bool {
	_, ok := target.(*StoreUnavailableError)

	return ok
}

func (e *StoreUnavailableError) Unwrap() error { return e.Cause }

// ErrMalformedEvidence represents a graph payload that could not be parsed into evidence.
var ErrMalformedEvidence = &MalformedEvidenceError{}

// MalformedEvidenceError is returned when the graph query payload is not parseable, even after a retry.
type MalformedEvidenceError struct {
	Payload string
	Cause   error
}

// NewMalformedEvidenceError creates a MalformedEvidenceError keeping the raw payload for logging.
func NewMalformedEvidenceError(payload string, cause error) *MalformedEvidenceError {
	return &MalformedEvidenceError{Payload: payload, Cause: cause}
}

func (e *MalformedEvidenceError) Error() string {
	return format("malformed evidence payload", "", e.Cause)
}

// Is implements the error interface for error comparison.
func (e *MalformedEvidenceError) Is(target error) bool {
	_, ok := target.(*MalformedEvidenceError)

	return ok
}

func (e *MalformedEvidenceError) Unwrap() error { return e.Cause }

// ErrNoEvidence is the soft signal for an empty evidence request. It is not a fault.
var ErrNoEvidence = &NoEvidenceError{}

// NoEvidenceError signals that there was nothing to gather evidence for.
type NoEvidenceError struct{}

func (e *NoEvidenceError) Error() string { return "no evidence requested" }

// Is implements the error interface for error comparison.
func (e *NoEvidenceError) Is(target error) bool {
	_, ok := target.(*NoEvidenceError)

	return ok
}

// ErrEncodingFailed represents a critique request aborted because the uploaded image could not be encoded.
var ErrEncodingFailed = &EncodingFailedError{}

// EncodingFailedError is returned by the orchestrator when the encoding stage fails.
type EncodingFailedError struct {
	Cause error
}

// NewEncodingFailedError creates an EncodingFailedError wrapping the codec error.
func NewEncodingFailedError(cause error) *EncodingFailedError {
	return &EncodingFailedError{Cause: cause}
}

func (e *EncodingFailedError) Error() string {
	return format("image encoding failed", "", e.Cause)
}

// Is implements the error interface for error comparison.
func (e *EncodingFailedError) Is(target error) bool {
	_, ok := target.(*EncodingFailedError)

	return ok
}

func (e *EncodingFailedError) Unwrap() error { return e.Cause }

// ErrGenerationFailed represents a failure of the generative model.
var ErrGenerationFailed = &GenerationFailedError{}

// GenerationFailedError is returned when the generative model call fails.
type GenerationFailedError struct {
	Cause error
}

// NewGenerationFailedError creates a GenerationFailedError wrapping cause.
func NewGenerationFailedError(cause error) *GenerationFailedError {
	return &GenerationFailedError{Cause: cause}
}

func (e *GenerationFailedError) Error() string {
	return format("generation failed", "", e.Cause)
}

// Is implements the error interface for error comparison.
func (e *GenerationFailedError) Is(target error) bool {
	_, ok := target.(*GenerationFailedError)

	return ok
}

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

// ErrValidation represents a validation error.
// Use when caller input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

func format(message, fallback string, cause error) string {
	if message == "" {
		message = fallback
	}

	if cause != nil {
		return message + ": " + cause.Error()
	}

	return message
}
