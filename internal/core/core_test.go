package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestStage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"settings", fmt.Errorf("lookup %q: %w", "x", ErrSettingsNotFound), "settings"},
		{"frame", fmt.Errorf("build: %w", ErrMalformedBuffer), "frame"},
		{"device open", fmt.Errorf("%w: eth9", ErrDeviceOpen), "device"},
		{"device write", fmt.Errorf("%w: packet 3", ErrPacketSend), "device"},
		{"device close", fmt.Errorf("%w: flush", ErrDeviceClose), "device close"},
		{"queue receive", ErrChannelReceive, "queue"},
		{"queue send", ErrChannelSend, "queue"},
		{"generation", ErrThreadJoin, "generation"},
		{"foreign", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Stage(tt.err))
		})
	}
}

func TestStageCombinedErrors(t *testing.T) {
	err := multierr.Append(
		fmt.Errorf("%w: queue closed", ErrChannelReceive),
		fmt.Errorf("%w: panic", ErrThreadJoin),
	)

	assert.True(t, errors.Is(err, ErrChannelReceive))
	assert.True(t, errors.Is(err, ErrThreadJoin))
	assert.Equal(t, "generation", Stage(err))
}

func TestStageCloseAfterRunError(t *testing.T) {
	closeErr := fmt.Errorf("%w: flush", ErrDeviceClose)
	assert.False(t, errors.Is(closeErr, ErrDeviceOpen))

	err := multierr.Append(fmt.Errorf("%w: packet 1", ErrPacketSend), closeErr)
	assert.Equal(t, "device", Stage(err))
	assert.True(t, errors.Is(err, ErrDeviceClose))
}
