package logger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

// TestNew performs some sanity checks around log initialization: the log
// level must be set correctly and a valid logger returned.
func TestNew(t *testing.T) {

	devLogger, err := New(Config{
		Developer: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, "debug", devLogger.level.String())
	assert.NotNil(t, devLogger.Logger)

	logger1, err := New(Config{
		Type:  "stderr",
		Level: 3,
	})
	assert.NoError(t, err)
	assert.Equal(t, "info", logger1.level.String())
	assert.NotNil(t, logger1.Logger)

	_, err = New(Config{Type: "foo", Level: 3})
	assert.Error(t, err)
	assert.ErrorContains(t, err, "unsupported log type")
}

func TestSetLevel(t *testing.T) {

	logger1, err := New(Config{
		Type:  "stderr",
		Level: 1,
	})
	assert.NoError(t, err)
	assert.Equal(t, "warn", logger1.level.String())

	assert.NoError(t, logger1.SetLevel(5))
	assert.Equal(t, "debug", logger1.level.String())

	assert.Error(t, logger1.SetLevel(2))
	assert.Equal(t, "debug", logger1.level.String())
}

func TestGetLevel(t *testing.T) {
	tests := []struct {
		newLevel  int8
		wantLevel zapcore.Level
		wantErr   error
	}{
		{1, zapcore.WarnLevel, nil},
		{3, zapcore.InfoLevel, nil},
		{5, zapcore.DebugLevel, nil},
		{2, zapcore.InfoLevel, fmt.Errorf("the provided log.level (2) is invalid (must be 1, 3, or 5)")},
	}

	for _, tt := range tests {
		level, err := getLevel(tt.newLevel)
		assert.Equal(t, tt.wantLevel, level)
		if tt.wantErr != nil {
			assert.EqualError(t, err, tt.wantErr.Error())
		} else {
			assert.NoError(t, err)
		}
	}
}
