package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/ngguard/internal/moderation"
)

func newTestClient(t *testing.T) *sqliteClient {
	t.Helper()
	client, err := NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestEscalationIncrementCountsPerKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)
	key := moderation.Key{ChatID: -100111, UserID: 777}
	other := moderation.Key{ChatID: -100222, UserID: 777}
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	for want := 1; want <= 3; want++ {
		got, err := client.Increment(ctx, key, at)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Fatalf("increment = %d, want %d", got, want)
		}
	}

	rec, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.WarnCount != 3 || !rec.LastViolationAt.Equal(at) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	rec, err = client.Get(ctx, other)
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if rec.WarnCount != 0 || !rec.LastViolationAt.IsZero() {
		t.Fatalf("other key must start from zero: %+v", rec)
	}
}

func TestEscalationConcurrentIncrements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)
	key := moderation.Key{ChatID: 1, UserID: 2}

	const workers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int]struct{}, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := client.Increment(ctx, key, time.Now())
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			mu.Lock()
			seen[n] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers {
		t.Fatalf("expected %d distinct counts, got %d", workers, len(seen))
	}
}

func TestEscalationReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)
	key := moderation.Key{ChatID: 1, UserID: 2}

	for i := 0; i < 4; i++ {
		if _, err := client.Increment(ctx, key, time.Now()); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := client.Reset(ctx, key); err != nil {
		t.Fatalf("reset: %v", err)
	}
	n, err := client.Increment(ctx, key, time.Now())
	if err != nil {
		t.Fatalf("increment after reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("count after reset = %d, want 1", n)
	}
}

func TestEscalationTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t).WithTTL(time.Hour)
	key := moderation.Key{ChatID: 1, UserID: 2}
	idle := moderation.Key{ChatID: 1, UserID: 3}
	base := time.Now().Add(-3 * time.Hour)

	if _, err := client.Increment(ctx, key, base); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if _, err := client.Increment(ctx, idle, base); err != nil {
		t.Fatalf("increment idle: %v", err)
	}

	n, err := client.Increment(ctx, key, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("increment after ttl: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired record must restart from one, got %d", n)
	}

	dropped, err := client.Sweep(ctx, base.Add(2*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("sweep dropped %d, want 1", dropped)
	}

	rec, err := client.Get(ctx, idle)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.WarnCount != 0 {
		t.Fatalf("swept record must read as zero: %+v", rec)
	}
}

func TestInMemoryDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, "", MemoryPath)
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	var store moderation.EscalationStore = client
	n, err := store.Increment(ctx, moderation.Key{ChatID: 5, UserID: 6}, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("increment = (%d, %v), want (1, nil)", n, err)
	}
}

func TestStartStopWithTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, err := NewSQLiteClient(ctx, "", MemoryPath)
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	client.WithTTL(time.Minute)

	if err := client.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := client.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := client.Increment(ctx, moderation.Key{ChatID: 1, UserID: 1}, time.Now()); err == nil {
		t.Fatalf("increment after stop must fail on a closed database")
	}
}

func TestEscalationConcurrentKeysAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	const (
		users  = 8
		rounds = 10
	)
	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		for r := 0; r < rounds; r++ {
			wg.Add(1)
			go func(userID int64) {
				defer wg.Done()
				if _, err := client.Increment(ctx, moderation.Key{ChatID: 1, UserID: userID}, time.Now()); err != nil {
					t.Errorf("increment user %d: %v", userID, err)
				}
			}(u)
		}
	}
	wg.Wait()

	for u := int64(1); u <= users; u++ {
		rec, err := client.Get(ctx, moderation.Key{ChatID: 1, UserID: u})
		if err != nil {
			t.Fatalf("get user %d: %v", u, err)
		}
		if rec.WarnCount != rounds {
			t.Fatalf("user %d count = %d, want %d", u, rec.WarnCount, rounds)
		}
	}
}
