package services

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StatusLog appends timestamped JSON events, one per line, to a status file.
// Every stage of a run shares one StatusLog; writes are best-effort and a
// logging failure never aborts the pipeline. A nil StatusLog discards events.
type StatusLog struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
	now    func() time.Time
}

// OpenStatusLog opens (or creates) the status file for appending. An empty
// path returns nil, which every Event call tolerates.
func OpenStatusLog(path string) *StatusLog {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil
	}
	return &StatusLog{
		file:   f,
		logger: zerolog.New(f),
		now:    time.Now,
	}
}

// Event appends one {t, event, stage, ...extras} line.
func (s *StatusLog) Event(event, stage string, extras map[string]any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	evt := s.logger.Log().
		Float64("t", float64(s.now().UnixMilli())/1000.0).
		Str("event", event).
		Str("stage", stage)
	if len(extras) > 0 {
		evt = evt.Fields(extras)
	}
	evt.Send()
}

// Close releases the underlying file.
func (s *StatusLog) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.file.Close()
}
