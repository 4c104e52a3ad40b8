package infra

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const restartDelay = time.Second

// GoRecoverable runs f in a goroutine and restarts it after a panic, at most maxPanics times.
// A negative maxPanics restarts forever. The returned channel yields f's final error, or a
// panic error once the limit is exceeded, and is closed afterwards.
func GoRecoverable(ctx context.Context, maxPanics int, id string, f func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		entry := log.WithField("object", "Recoverable").WithField("job", id)
		for {
			panicked, err := runGuarded(ctx, f)
			if !panicked {
				done <- err
				return
			}
			entry.WithField("error", err.Error()).Error("job panicked")
			if maxPanics == 0 {
				done <- fmt.Errorf("panics limit exceeded for job %q: %w", id, err)
				return
			}
			if maxPanics > 0 {
				maxPanics--
			}
			entry.WithField("panics_left", maxPanics).Debug("recovering job")

			select {
			case <-ctx.Done():
				done <- ctx.Err()
				return
			case <-time.After(restartDelay):
			}
		}
	}()
	return done
}

func runGuarded(ctx context.Context, f func(ctx context.Context) error) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v at %s", r, identifyPanic())
			panicked = true
		}
	}()
	return false, f(ctx)
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
