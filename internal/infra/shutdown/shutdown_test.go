package shutdown

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"
)

func TestHandler_HooksRunInReverse(t *testing.T) {
	h := NewHandler(time.Second)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		h.OnShutdown(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Errorf("hook order = %v, want [3 2 1]", order)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Shutdown()")
	}
}

func TestHandler_JoinsErrors(t *testing.T) {
	h := NewHandler(time.Second)
	errA, errB := errors.New("a"), errors.New("b")
	h.OnShutdown(func(context.Context) error { return errA })
	h.OnShutdown(func(context.Context) error { return nil })
	h.OnShutdown(func(context.Context) error { return errB })

	err := h.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Shutdown() = %v, want both hook errors", err)
	}
	if again := h.Shutdown(); again != err {
		t.Errorf("second Shutdown() = %v, want cached result", again)
	}
}

func TestHandler_HookTimeout(t *testing.T) {
	h := NewHandler(20 * time.Millisecond)
	h.OnShutdown(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := h.Shutdown(); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown() = %v, want DeadlineExceeded", err)
	}
}

func TestHandler_ContextCancelledBySignal(t *testing.T) {
	h := NewHandler(time.Second)
	ctx, stop := h.Context(context.Background())
	defer stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}
