package infra

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRecoverableRestartsAfterPanic(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	done := GoRecoverable(context.Background(), 2, "flaky", func(context.Context) error {
		if calls.Add(1) < 2 {
			panic("boom")
		}
		return nil
	})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not finish")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 runs, got %d", calls.Load())
	}
}

func TestGoRecoverableGivesUp(t *testing.T) {
	t.Parallel()

	done := GoRecoverable(context.Background(), 0, "broken", func(context.Context) error {
		panic("always")
	})
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected panic error")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not give up")
	}
}

func TestGoRecoverablePassesError(t *testing.T) {
	t.Parallel()

	want := errors.New("stopped")
	done := GoRecoverable(context.Background(), -1, "plain", func(context.Context) error { return want })
	if err := <-done; !errors.Is(err, want) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMonitorFileSignalsOnChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bin")
	if err := os.WriteFile(path, []byte("v1"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := MonitorFile(ctx, path, 10*time.Millisecond)

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case _, ok := <-ch:
		if !ok {
			t.Fatalf("expected change signal, got close")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no change detected")
	}
}

func TestWorkDirCreatesDirectory(t *testing.T) {
	t.Parallel()

	want := filepath.Join(t.TempDir(), "a", "b")
	got, err := WorkDir(want)
	if err != nil {
		t.Fatalf("work dir: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected dir %q", got)
	}
	if stat, err := os.Stat(got); err != nil || !stat.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}
