package exchange

import (
	"errors"
	"fmt"
)

var ErrStateOrder = errors.New("exchange: invalid state transition")

// State is the round position of one node.
type State string

const (
	StateIdle            State = "idle"
	StateSending         State = "sending"
	StateAwaitingReply   State = "awaiting_reply"
	StateComplete        State = "complete"
	StateAwaitingRequest State = "awaiting_request"
	StateProcessing      State = "processing"
	StateReplying        State = "replying"
)

var initiatorEdges = map[State][]State{
	StateIdle:          {StateSending},
	StateSending:       {StateAwaitingReply},
	StateAwaitingReply: {StateComplete},
	StateComplete:      {StateSending, StateIdle},
}

var responderEdges = map[State][]State{
	StateIdle:            {StateAwaitingRequest},
	StateAwaitingRequest: {StateProcessing},
	StateProcessing:      {StateReplying},
	StateReplying:        {StateIdle},
}

func canMove(edges map[State][]State, from, to State) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrStateOrder, from, to)
}
