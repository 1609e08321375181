package fsm

import (
	"telegramformbot/pkg/state"

	"github.com/looplab/fsm"
)

type fsmCreatorImpl struct{}

func (fc *fsmCreatorImpl) NewFormFSM() *fsm.FSM {
	return NewFormFSM(StateIdle)
}

func NewFSMCreator() state.FSMCreator {
	return &fsmCreatorImpl{}
}
