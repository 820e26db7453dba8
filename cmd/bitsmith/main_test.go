package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_Success(t *testing.T) {
	out := &lockedBuffer{}
	cleaned := false
	code := run(context.Background(), nil, func(context.Context) error { return nil }, func() { cleaned = true }, out, func(int) {})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if out.String() != "" {
		t.Fatalf("stderr not empty: %q", out.String())
	}
	if !cleaned {
		t.Fatal("cleanup was not called")
	}
}

func TestRun_Error(t *testing.T) {
	out := &lockedBuffer{}
	code := run(context.Background(), nil, func(context.Context) error {
		return errors.New("boom")
	}, func() {}, out, func(int) {})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "Error: boom") {
		t.Fatalf("stderr = %q, want error output", out.String())
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	out := &lockedBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	code := run(ctx, nil, func(context.Context) error {
		return errors.New("interrupted")
	}, func() {}, out, func(int) {})
	if code != 130 {
		t.Fatalf("exit code = %d, want 130", code)
	}
	if !strings.Contains(out.String(), "Operation canceled") {
		t.Fatalf("stderr = %q, want cancel output", out.String())
	}
}

func TestRun_HandlesSignal(t *testing.T) {
	out := &lockedBuffer{}
	sigChan := make(chan os.Signal, 1)
	sigChan <- os.Interrupt

	code := run(context.Background(), sigChan, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, func() {}, out, func(int) {})

	if code != 130 {
		t.Fatalf("exit code = %d, want 130", code)
	}
	if !strings.Contains(out.String(), "Received signal") {
		t.Fatalf("stderr = %q, want signal output", out.String())
	}
}

func TestRun_SecondSignalForcesExit(t *testing.T) {
	out := &lockedBuffer{}
	sigChan := make(chan os.Signal, 2)
	sigChan <- os.Interrupt

	exitCalled := make(chan int, 1)
	code := run(context.Background(), sigChan, func(ctx context.Context) error {
		<-ctx.Done()
		sigChan <- os.Interrupt
		select {
		case got := <-exitCalled:
			if got != 1 {
				t.Errorf("forced exit code = %d, want 1", got)
			}
		case <-time.After(5 * time.Second):
			t.Error("second signal did not force exit")
		}
		return ctx.Err()
	}, func() {}, out, func(code int) { exitCalled <- code })

	if code != 130 {
		t.Fatalf("exit code = %d, want 130", code)
	}
	if !strings.Contains(out.String(), "Received second signal") {
		t.Fatalf("stderr = %q, want forced exit output", out.String())
	}
}
