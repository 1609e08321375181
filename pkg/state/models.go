package state

import (
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// Session is the per-user scratchpad for an in-progress form. The FSM holds
// the current step; an idle FSM with cleared fields is equivalent to "no
// session". Never persisted; lost on process restart.
type Session struct {
	UserID   int64
	ChatID   int64
	Form     *fsm.FSM
	Name     string
	Email    string
	LastSeen time.Time
	Mu       sync.Mutex
}

// Reset clears the collected answers. Callers must hold Mu.
func (s *Session) Reset() {
	s.Name = ""
	s.Email = ""
}
