package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/uavlog-analyst/internal/models"
)

func userTurn(s string) models.Turn { return models.Turn{Role: models.RoleUser, Content: s} }

func TestAppendKeepsNewestTurns(t *testing.T) {
	s := NewStore(nil, Options{})
	for i := 0; i < 20; i++ {
		s.Append("a", userTurn(fmt.Sprint(i)))
	}

	hist := s.History("a")
	require.Len(t, hist, DefaultMaxTurns)
	assert.Equal(t, "5", hist[0].Content)
	assert.Equal(t, "19", hist[len(hist)-1].Content)
}

func TestTailReturnsCopy(t *testing.T) {
	s := NewStore(nil, Options{})
	s.Append("a", userTurn("q1"), models.Turn{Role: models.RoleAssistant, Content: "a1"}, userTurn("q2"))

	tail := s.Tail("a", 2)
	require.Len(t, tail, 2)
	assert.Equal(t, "a1", tail[0].Content)
	tail[0].Content = "mutated"
	assert.Equal(t, "a1", s.Tail("a", 2)[0].Content)

	assert.Len(t, s.Tail("a", 10), 3)
	assert.Nil(t, s.Tail("a", 0))
	assert.Nil(t, s.Tail("missing", 3))
}

func TestSessionsAreIsolated(t *testing.T) {
	s := NewStore(nil, Options{})
	s.Append("a", userTurn("from a"))
	s.Append("b", userTurn("from b"))

	assert.Equal(t, []models.Turn{userTurn("from a")}, s.History("a"))
	assert.Equal(t, []models.Turn{userTurn("from b")}, s.History("b"))

	s.Reset("a")
	assert.Empty(t, s.History("a"))
	assert.Equal(t, 1, s.Len())
}

func TestLeastRecentlyUsedSessionEvicted(t *testing.T) {
	s := NewStore(nil, Options{MaxSessions: 2})
	s.Append("a", userTurn("1"))
	s.Append("b", userTurn("2"))
	s.Append("a", userTurn("3"))
	s.Append("c", userTurn("4"))

	assert.Equal(t, 2, s.Len())
	assert.Empty(t, s.History("b"))
	assert.Len(t, s.History("a"), 2)
}

func TestIdleSessionsExpire(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := NewStore(nil, Options{TTL: time.Minute, Clock: clock})
	s.Append("a", userTurn("hi"))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	assert.Empty(t, s.History("a"))
}

func TestRunPurgesExpiredSessions(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	s := NewStore(nil, Options{TTL: time.Minute, Clock: clock})
	s.Append("a", userTurn("hi"))
	s.Append("b", userTurn("hi"))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestConcurrentAppend(t *testing.T) {
	s := NewStore(nil, Options{MaxTurns: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Append("shared", userTurn("x"))
			}
		}()
	}
	wg.Wait()
	assert.Len(t, s.History("shared"), 400)
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "abc", SessionID("abc"))
	id := SessionID("")
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, SessionID(""))
}
