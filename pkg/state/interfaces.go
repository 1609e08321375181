package state

import "github.com/looplab/fsm"

type FSMCreator interface {
	NewFormFSM() *fsm.FSM
}
