package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/looplab/fsm"

	"github.com/nerrad567/fp-mqtt-broker/internal/broker"
	"github.com/nerrad567/fp-mqtt-broker/internal/infrastructure/logging"
)

// Command is a recording control command.
type Command string

// Recording commands.
const (
	CommandStart  Command = "start_recording"
	CommandStop   Command = "stop_recording"
	CommandPause  Command = "pause_recording"
	CommandResume Command = "resume_recording"
)

// CommandField is the payload key holding the command name.
const CommandField = "command"

var (
	// ErrMissingCommand is returned when a control payload has no string command field.
	ErrMissingCommand = errors.New("recording: missing command")

	// ErrUnknownCommand is returned for command names outside the known set.
	ErrUnknownCommand = errors.New("recording: unknown command")

	// ErrInvalidTransition is returned when a command is not allowed from the current state.
	ErrInvalidTransition = errors.New("recording: invalid transition")
)

// Publisher is the part of the broker the controller drives.
type Publisher interface {
	RecordingState() broker.RecordingState
	SetRecordingState(state broker.RecordingState)
	PublishStatus() bool
}

// Controller is a broker.Handler for the recording control topic.
//
// Thread Safety:
//   - Commands are applied one at a time; concurrent callers are serialised.
type Controller struct {
	pub    Publisher
	topic  string
	logger *logging.Logger

	mu  sync.Mutex
	fsm *fsm.FSM
}

// New creates a Controller listening on topic, starting from pub's current state.
func New(pub Publisher, topic string, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Discard()
	}

	initial := pub.RecordingState()
	if !initial.Valid() {
		initial = broker.RecordingIdle
	}

	idle := string(broker.RecordingIdle)
	active := string(broker.RecordingActive)
	paused := string(broker.RecordingPaused)

	return &Controller{
		pub:    pub,
		topic:  topic,
		logger: logger.With("component", "recording"),
		fsm: fsm.NewFSM(
			string(initial),
			fsm.Events{
				{Name: string(CommandStart), Src: []string{idle}, Dst: active},
				{Name: string(CommandPause), Src: []string{active}, Dst: paused},
				{Name: string(CommandResume), Src: []string{paused}, Dst: active},
				{Name: string(CommandStop), Src: []string{active, paused}, Dst: idle},
			},
			fsm.Callbacks{},
		),
	}
}

// Name identifies the handler in logs and metrics.
func (c *Controller) Name() string { return "recording" }

// Topics returns the control topic.
func (c *Controller) Topics() []string { return []string{c.topic} }

// State returns the current recording state.
func (c *Controller) State() broker.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return broker.RecordingState(c.fsm.Current())
}

// HandleMessage applies the command carried by payload.
func (c *Controller) HandleMessage(_ string, payload broker.Payload) error {
	raw, ok := payload[CommandField].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return ErrMissingCommand
	}
	_, err := c.Apply(context.Background(), Command(strings.TrimSpace(raw)))
	return err
}

// Apply runs cmd against the state machine.
//
// Parameters:
//   - ctx: Passed to the state machine
//   - cmd: One of the Command constants
//
// Returns:
//   - broker.RecordingState: The state after the command
//   - error: ErrUnknownCommand or ErrInvalidTransition; the state is unchanged
func (c *Controller) Apply(ctx context.Context, cmd Command) (broker.RecordingState, error) {
	if !cmd.valid() {
		return c.State(), fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	from := broker.RecordingState(c.fsm.Current())
	if err := c.fsm.Event(ctx, string(cmd)); err != nil {
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, cmd, from)
	}

	to := broker.RecordingState(c.fsm.Current())
	c.pub.SetRecordingState(to)
	c.logger.Info("recording state changed", "command", string(cmd), "from", from.String(), "to", to.String())

	if !c.pub.PublishStatus() {
		c.logger.Debug("status snapshot not published", "state", to.String())
	}
	return to, nil
}

// Transition moves to target using the command that connects the two states.
// Requesting the current state is a no-op.
func (c *Controller) Transition(ctx context.Context, target broker.RecordingState) (broker.RecordingState, error) {
	if !target.Valid() {
		return c.State(), fmt.Errorf("%w: %q", broker.ErrInvalidRecordingState, target)
	}

	current := c.State()
	if current == target {
		return current, nil
	}

	cmd, ok := commandFor(current, target)
	if !ok {
		return current, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, target)
	}
	return c.Apply(ctx, cmd)
}

func commandFor(from, to broker.RecordingState) (Command, bool) {
	switch {
	case to == broker.RecordingIdle:
		return CommandStop, true
	case from == broker.RecordingIdle && to == broker.RecordingActive:
		return CommandStart, true
	case from == broker.RecordingActive && to == broker.RecordingPaused:
		return CommandPause, true
	case from == broker.RecordingPaused && to == broker.RecordingActive:
		return CommandResume, true
	default:
		return "", false
	}
}

func (cmd Command) valid() bool {
	switch cmd {
	case CommandStart, CommandStop, CommandPause, CommandResume:
		return true
	default:
		return false
	}
}
