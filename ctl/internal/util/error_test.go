package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtlError(t *testing.T) {
	inner := errors.New("activation failed")
	err := NewCtlError(fmt.Errorf("device rolled back: %w", inner), PartialSuccess)

	assert.Equal(t, int(PartialSuccess), err.GetExitCode())
	assert.Equal(t, "device rolled back: activation failed", err.Error())
	assert.ErrorIs(t, err, inner)

	// The root command recovers the exit code through a plain error value.
	var generic error = err
	ctlError, ok := generic.(CtlError)
	require.True(t, ok)
	assert.Equal(t, 2, ctlError.GetExitCode())
}

func TestCtlExitCodeString(t *testing.T) {
	assert.Equal(t, "Success", Success.String())
	assert.Equal(t, "Partial Success", PartialSuccess.String())
	assert.Equal(t, "Unknown", CtlExitCode(42).String())
}
