package broker

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// State is the connection state of a Broker.
type State string

// Connection states.
const (
	StateNotConnected State = "not_connected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// AllStates lists every connection state.
var AllStates = []State{StateNotConnected, StateConnecting, StateConnected, StateReconnecting}

const (
	eventConnect     = "connect"
	eventEstablished = "established"
	eventFailed      = "failed"
	eventLost        = "lost"
	eventDisconnect  = "disconnect"
)

// connState tracks the connection lifecycle.
//
//	not_connected ──connect──▶ connecting ──established──▶ connected
//	connecting ──failed──▶ not_connected
//	connected ──lost──▶ reconnecting ──established──▶ connected
//	reconnecting ──failed──▶ not_connected
//	any ──disconnect──▶ not_connected
type connState struct {
	fsm *fsm.FSM
}

func newConnState(onEnter func(from, to State)) *connState {
	all := []string{
		string(StateNotConnected), string(StateConnecting),
		string(StateConnected), string(StateReconnecting),
	}

	f := fsm.NewFSM(
		string(StateNotConnected),
		fsm.Events{
			{Name: eventConnect, Src: all, Dst: string(StateConnecting)},
			{Name: eventEstablished, Src: all, Dst: string(StateConnected)},
			{Name: eventFailed, Src: all, Dst: string(StateNotConnected)},
			{Name: eventLost, Src: []string{string(StateConnected), string(StateConnecting)}, Dst: string(StateReconnecting)},
			{Name: eventDisconnect, Src: all, Dst: string(StateNotConnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if onEnter != nil {
					onEnter(State(e.Src), State(e.Dst))
				}
			},
		},
	)
	return &connState{fsm: f}
}

// fire applies event. Firing an event that leaves the state unchanged is not an error.
func (s *connState) fire(event string) error {
	err := s.fsm.Event(context.Background(), event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

func (s *connState) current() State {
	return State(s.fsm.Current())
}
