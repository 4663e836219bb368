package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassify verifies the sentinel-to-kind mapping, including wrapped
// errors and the retriable default for unknown errors.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindTransient},
		{"agent unavailable", ErrAgentUnavailable, KindTransient},
		{"execution timeout", ErrExecutionTimeout, KindRetriable},
		{"command failed", ErrCommandFailed, KindRetriable},
		{"conflict", ErrConflictDetected, KindConflict},
		{"state corrupted", ErrStateCorrupted, KindRollback},
		{"fatal", ErrFatal, KindFatal},
		{"circuit open", ErrCircuitOpen, KindFatal},
		{"unknown defaults to retriable", errors.New("surprise"), KindRetriable},
		{"wrapped conflict", fmt.Errorf("dispatch: %w", ErrConflictDetected), KindConflict},
		{"double wrapped fatal", fmt.Errorf("a: %w", fmt.Errorf("b: %w", ErrFatal)), KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

// TestKind_Retryable verifies only transient and retriable kinds may be
// attempted again.
func TestKind_Retryable(t *testing.T) {
	assert.True(t, KindTransient.Retryable())
	assert.True(t, KindRetriable.Retryable())
	assert.False(t, KindConflict.Retryable())
	assert.False(t, KindRollback.Retryable())
	assert.False(t, KindFatal.Retryable())
}

// TestKind_String verifies the wire representation.
func TestKind_String(t *testing.T) {
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "rollback", KindRollback.String())
}
