// Package conversation keeps bounded per-session chat history.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/uavlog-analyst/internal/cache"
	"github.com/miradorstack/uavlog-analyst/internal/metrics"
	"github.com/miradorstack/uavlog-analyst/internal/models"
)

// Defaults applied when Options leaves a field unset.
const (
	DefaultMaxTurns    = 15
	DefaultTTL         = 30 * time.Minute
	DefaultMaxSessions = 1024
)

// Options bounds the store.
type Options struct {
	MaxTurns    int
	TTL         time.Duration
	MaxSessions int
	Clock       func() time.Time
}

type session struct {
	mu    sync.RWMutex
	turns []models.Turn
}

// Store holds recent turns per session. Idle sessions expire after TTL and
// the least recently used session is evicted when MaxSessions is reached.
type Store struct {
	mu       sync.Mutex
	sessions *cache.LRU[*session]
	maxTurns int
	logger   *slog.Logger
}

// NewStore builds a store with opts, filling zero fields with defaults.
func NewStore(logger *slog.Logger, opts Options) *Store {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	sessions := cache.NewLRU[*session](opts.MaxSessions, opts.TTL)
	if opts.Clock != nil {
		sessions.SetClock(opts.Clock)
	}
	return &Store{sessions: sessions, maxTurns: opts.MaxTurns, logger: logger}
}

// SessionID returns id, or a fresh identifier when id is blank.
func SessionID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Append records turns for id, keeping only the newest MaxTurns.
func (s *Store) Append(id string, turns ...models.Turn) {
	s.mu.Lock()
	sess, ok := s.sessions.Get(id)
	if !ok {
		sess = &session{}
	}
	// Re-set on every append to refresh recency and expiry.
	s.sessions.Set(id, sess)
	s.mu.Unlock()

	sess.mu.Lock()
	sess.turns = append(sess.turns, turns...)
	if over := len(sess.turns) - s.maxTurns; over > 0 {
		sess.turns = append([]models.Turn(nil), sess.turns[over:]...)
	}
	sess.mu.Unlock()

	metrics.SetActiveSessions(s.sessions.Len())
}

// History returns a copy of every retained turn for id.
func (s *Store) History(id string) []models.Turn {
	return s.Tail(id, s.maxTurns)
}

// Tail returns a copy of at most the last n turns for id.
func (s *Store) Tail(id string, n int) []models.Turn {
	if n <= 0 {
		return nil
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	start := len(sess.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.Turn, len(sess.turns)-start)
	copy(out, sess.turns[start:])
	return out
}

// Reset forgets id.
func (s *Store) Reset(id string) {
	s.sessions.Delete(id)
	metrics.SetActiveSessions(s.sessions.Len())
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}

// Run purges expired sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.sessions.Purge(); removed > 0 {
				s.logger.Debug("expired conversation sessions purged", slog.Int("removed", removed))
			}
			metrics.SetActiveSessions(s.sessions.Len())
		}
	}
}
