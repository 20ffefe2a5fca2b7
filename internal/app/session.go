package app

import (
	"time"

	"complib/internal/complib"
)

// Session tracks one CLI invocation. Its ID tags every log line written
// during the command.
type Session struct {
	ID      string
	Command string
	Started time.Time
	Status  string // "success" or "error"
}

// NewSession starts a session for command.
func NewSession(command string, ids complib.IDGenerator, clock complib.Clock) *Session {
	return &Session{
		ID:      ids.New(),
		Command: command,
		Started: clock.Now(),
		Status:  "success",
	}
}

// Fail marks the session as failed.
func (s *Session) Fail() { s.Status = "error" }

// Elapsed returns the time since the session started.
func (s *Session) Elapsed(now time.Time) time.Duration { return now.Sub(s.Started) }
