package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunnerDrivesCountdownToForcedSubmit(t *testing.T) {
	s, fb := startedSession(t, 3)

	r := NewRunner(s, zerolog.Nop())
	r.interval = time.Millisecond

	go r.Run(context.Background())

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not settle")
	}

	if got := s.State(); got != StateSubmitted {
		t.Fatalf("state = %s, want %s", got, StateSubmitted)
	}
	if got := fb.submitted(); got != 1 {
		t.Fatalf("submit calls = %d, want 1", got)
	}
}

func TestRunnerStopsAfterManualSubmit(t *testing.T) {
	s, _ := startedSession(t, 600)

	r := NewRunner(s, zerolog.Nop())
	r.interval = time.Millisecond

	go r.Run(context.Background())

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner kept ticking after submit")
	}
}

func TestRunnerHonorsCancellation(t *testing.T) {
	s, fb := startedSession(t, 600)

	r := NewRunner(s, zerolog.Nop())
	r.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	cancel()

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner ignored cancellation")
	}
	if got := fb.submitted(); got != 0 {
		t.Fatalf("cancelled runner must not submit, got %d calls", got)
	}
}
