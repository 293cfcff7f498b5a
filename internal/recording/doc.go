// Package recording drives the recording state advertised in status snapshots.
//
// Commands arrive on the recording_control topic as {"command": "..."}:
//
//	idle ──start_recording──▶ recording ──pause_recording──▶ paused
//	paused ──resume_recording──▶ recording
//	recording | paused ──stop_recording──▶ idle
//
// A valid command updates the broker's recording state and publishes a
// fresh status snapshot. Anything else is returned as a handler error and
// leaves the state unchanged.
package recording
