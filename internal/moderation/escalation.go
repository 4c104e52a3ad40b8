package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"
)

type (
	// Key identifies a user within a chat.
	Key struct {
		ChatID int64
		UserID int64
	}

	// Record is the escalation state of one Key.
	Record struct {
		WarnCount       int
		LastViolationAt time.Time
	}

	// EscalationStore owns escalation records. Increment must be linearizable per key.
	EscalationStore interface {
		Get(ctx context.Context, key Key) (Record, error)
		Increment(ctx context.Context, key Key, at time.Time) (int, error)
		Reset(ctx context.Context, key Key) error
	}
)

// Expired reports whether the record is older than ttl at the given moment. A zero ttl never expires.
func (r Record) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || r.LastViolationAt.IsZero() {
		return false
	}
	return now.Sub(r.LastViolationAt) >= ttl
}

// MemoryStore keeps records for the process lifetime, optionally swept by TTL.
type MemoryStore struct {
	records *xsync.MapOf[Key, Record]
	ttl     time.Duration
	now     func() time.Time

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: xsync.NewMapOf[Key, Record](),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Record, error) {
	now := s.now()
	rec, _ := s.records.Compute(key, func(old Record, loaded bool) (Record, bool) {
		if loaded && !old.Expired(s.ttl, now) {
			return old, false
		}
		return Record{}, false
	})
	return rec, nil
}

func (s *MemoryStore) Increment(_ context.Context, key Key, at time.Time) (int, error) {
	rec, _ := s.records.Compute(key, func(old Record, loaded bool) (Record, bool) {
		if !loaded || old.Expired(s.ttl, at) {
			old = Record{}
		}
		old.WarnCount++
		old.LastViolationAt = at
		return old, false
	})
	return rec.WarnCount, nil
}

func (s *MemoryStore) Reset(_ context.Context, key Key) error {
	s.records.Delete(key)
	return nil
}

// Len is the number of live records.
func (s *MemoryStore) Len() int {
	return s.records.Size()
}

// Sweep drops records expired at now and returns how many were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	dropped := 0
	s.records.Range(func(key Key, _ Record) bool {
		s.records.Compute(key, func(old Record, loaded bool) (Record, bool) {
			if !loaded {
				return old, true
			}
			if !old.Expired(s.ttl, now) {
				return old, false
			}
			dropped++
			return old, true
		})
		return true
	})
	return dropped
}

func (s *MemoryStore) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started || s.ttl <= 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel

	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	s.workersWg.Add(1)
	go func() {
		defer s.workersWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(s.now()); n > 0 {
					log.WithField("object", "MemoryStore").WithField("count", n).Debug("swept expired escalation records")
				}
			}
		}
	}()

	s.started = true
	return nil
}

func (s *MemoryStore) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
