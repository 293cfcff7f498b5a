package broker

import (
	"fmt"
	"strings"
)

// RecordingState is the recording state reported in status snapshots.
type RecordingState string

// Recording states.
const (
	RecordingIdle   RecordingState = "idle"
	RecordingActive RecordingState = "recording"
	RecordingPaused RecordingState = "paused"
)

// Valid reports whether s is one of the known recording states.
func (s RecordingState) Valid() bool {
	switch s {
	case RecordingIdle, RecordingActive, RecordingPaused:
		return true
	default:
		return false
	}
}

// String returns the wire form of the state.
func (s RecordingState) String() string { return string(s) }

// ParseRecordingState parses a wire-form state, ignoring case and surrounding space.
func ParseRecordingState(s string) (RecordingState, error) {
	state := RecordingState(strings.ToLower(strings.TrimSpace(s)))
	if !state.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecordingState, s)
	}
	return state, nil
}
