package critiqueerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"image decode", NewImageDecodeError("bad jpeg", cause), ErrImageDecode},
		{"model inference", NewModelInferenceError("", cause), ErrModelInference},
		{"degenerate vector", NewDegenerateVectorError("norm is zero"), ErrDegenerateVector},
		{"store unavailable", NewStoreUnavailableError("vector", cause), ErrStoreUnavailable},
		{"malformed evidence", NewMalformedEvidenceError("not json", cause), ErrMalformedEvidence},
		{"no evidence", &NoEvidenceError{}, ErrNoEvidence},
		{"encoding failed", NewEncodingFailedError(cause), ErrEncodingFailed},
		{"generation failed", NewGenerationFailedError(cause), ErrGenerationFailed},
		{"validation", NewValidationError("k", "k must be positive"), ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)

			if tt.sentinel != error(ErrValidation) {
				assert.NotErrorIs(t, wrapped, ErrValidation)
			}
		})
	}
}

func TestEncodingFailedKeepsCause(t *testing.T) {
	err := NewEncodingFailedError(NewDegenerateVectorError("norm is zero"))

	assert.ErrorIs(t, err, ErrEncodingFailed)
	assert.ErrorIs(t, err, ErrDegenerateVector)
	assert.Equal(t, "image encoding failed: norm is zero", err.Error())
}

func TestStoreUnavailableMessage(t *testing.T) {
	err := NewStoreUnavailableError("graph", errors.New("timeout"))
	assert.Equal(t, "graph store unavailable: timeout", err.Error())

	err = NewStoreUnavailableError("", nil)
	assert.Equal(t, "store unavailable", err.Error())
}
