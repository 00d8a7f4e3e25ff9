package service

import (
	"context"
	"sync"
	"testing"
	"time"
)

// blockingRunner parks every run until release is closed and counts starts.
type blockingRunner struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (r *blockingRunner) RunSession(_ context.Context, _ string) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	<-r.release
	return nil
}

func (r *blockingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartRun_InlineSingleFlight(t *testing.T) {
	ctx := context.Background()
	runner := &blockingRunner{release: make(chan struct{})}
	svc := NewPipelineService(nil, runner)

	if err := svc.StartRun(ctx, "session-a"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	// A duplicate start while the run is in flight joins it instead of
	// spawning a second one.
	if err := svc.StartRun(ctx, "session-a"); err != nil {
		t.Fatalf("duplicate StartRun: %v", err)
	}
	waitFor(t, "first run to start", func() bool { return runner.callCount() == 1 })

	// A different session is not blocked by session-a's run.
	if err := svc.StartRun(ctx, "session-b"); err != nil {
		t.Fatalf("StartRun other session: %v", err)
	}
	waitFor(t, "second session to start", func() bool { return runner.callCount() == 2 })

	close(runner.release)

	// Once the run finishes the session can be started again, as the audio
	// upload does after a run parks.
	waitFor(t, "slot to free after completion", func() bool {
		if err := svc.StartRun(ctx, "session-a"); err != nil {
			t.Fatalf("restart StartRun: %v", err)
		}
		return runner.callCount() >= 3
	})
}
