// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Every one of them is fatal to a run; callers wrap them with
// context using %w and test with errors.Is.
var (
	// Settings resolution errors
	ErrSettingsNotFound = errors.New("otus-inject: settings not found")

	// Frame construction errors
	ErrMalformedBuffer = errors.New("otus-inject: malformed frame buffer")

	// Queue errors
	ErrChannelSend    = errors.New("otus-inject: batch queue send failed")
	ErrChannelReceive = errors.New("otus-inject: batch queue receive failed")

	// Device errors
	ErrPacketSend  = errors.New("otus-inject: packet send failed")
	ErrDeviceOpen  = errors.New("otus-inject: device open failed")
	ErrDeviceClose = errors.New("otus-inject: device close failed")

	// Generation errors
	ErrThreadJoin = errors.New("otus-inject: generation task terminated abnormally")

	// Pipeline errors
	ErrPipelineStarted = errors.New("otus-inject: pipeline already started")

	// Configuration errors
	ErrConfigInvalid = errors.New("otus-inject: invalid configuration")
)

// stages maps each sentinel to the stage name reported to the user.
var stages = []struct {
	err   error
	stage string
}{
	{ErrSettingsNotFound, "settings"},
	{ErrConfigInvalid, "settings"},
	{ErrMalformedBuffer, "frame"},
	{ErrDeviceOpen, "device"},
	{ErrDeviceClose, "device close"},
	{ErrPacketSend, "device"},
	{ErrThreadJoin, "generation"},
	{ErrChannelReceive, "queue"},
	{ErrChannelSend, "queue"},
	{ErrPipelineStarted, "pipeline"},
}

// Stage names the stage an error originated from, or "unknown".
// The first matching sentinel wins.
func Stage(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range stages {
		if errors.Is(err, s.err) {
			return s.stage
		}
	}
	return "unknown"
}
