package logger

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Session is the log sink of one import/export/bake run. Every record is
// mirrored into an in-memory text buffer and warnings/errors are tallied so
// that a single summary can be shown when the run completes.
type Session struct {
	ID  string
	Log *zap.Logger

	mu       sync.Mutex
	buf      bytes.Buffer
	warnings atomic.Int64
	errors   atomic.Int64
}

type lockedBuffer struct {
	s *Session
}

func (w lockedBuffer) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.buf.Write(p)
}

func (w lockedBuffer) Sync() error { return nil }

// NewSession returns a session whose logger writes to base (may be nil) and
// to the session text buffer.
func NewSession(base *zap.Logger) *Session {
	s := &Session{ID: uuid.NewString()}

	enc := encoderConfig()
	enc.CallerKey = ""
	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewConsoleEncoder(enc), lockedBuffer{s}, zapcore.DebugLevel)}
	if base != nil {
		cores = append(cores, base.Core())
	}

	s.Log = zap.New(zapcore.NewTee(cores...), zap.Hooks(s.count)).With(zap.String("session", s.ID[:8]))
	return s
}

func (s *Session) count(e zapcore.Entry) error {
	switch {
	case e.Level == zapcore.WarnLevel:
		s.warnings.Add(1)
	case e.Level >= zapcore.ErrorLevel:
		s.errors.Add(1)
	}
	return nil
}

// Warnings returns the number of warning records.
func (s *Session) Warnings() int {
	return int(s.warnings.Load())
}

// Errors returns the number of error records.
func (s *Session) Errors() int {
	return int(s.errors.Load())
}

// Text returns the accumulated log buffer.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Summary returns the one-line report shown at the end of a run. ok is false
// when nothing worth reporting happened.
func (s *Session) Summary() (msg string, ok bool) {
	w, e := s.Warnings(), s.Errors()
	if w == 0 && e == 0 {
		return "", false
	}
	return fmt.Sprintf("%d warning(s), %d error(s); see the log buffer for details", w, e), true
}
