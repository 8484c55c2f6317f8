package publish

import (
	"fmt"
	"log/slog"
	"slices"

	"reelsmith/internal/logging"
)

// State is a step of a single publish attempt.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateSessionOpen     State = "session_open"
	StateUploading       State = "uploading"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

var transitions = map[State][]State{
	StateUnauthenticated: {StateAuthenticated},
	StateAuthenticated:   {StateSessionOpen, StateCompleted, StateFailed},
	StateSessionOpen:     {StateUploading, StateFailed},
	StateUploading:       {StateCompleted, StateFailed},
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether next may follow s.
func (s State) CanTransition(next State) bool {
	return slices.Contains(transitions[s], next)
}

type machine struct {
	state  State
	logger *slog.Logger
}

func newMachine(logger *slog.Logger) *machine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &machine{state: StateUnauthenticated, logger: logger}
}

func (m *machine) to(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("publish: illegal transition %s -> %s", m.state, next)
	}
	m.logger.Debug("publish state",
		logging.String("from", string(m.state)),
		logging.String("to", string(next)),
	)
	m.state = next
	return nil
}

// fail moves to StateFailed when the current state allows it. Failures
// before authentication leave the machine where it is.
func (m *machine) fail() {
	if m.state.CanTransition(StateFailed) {
		_ = m.to(StateFailed)
	}
}
