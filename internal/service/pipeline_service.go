package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/hibiken/asynq"
)

// TaskTypePipelineAdvance is the asynq task that drives one session run.
const TaskTypePipelineAdvance = "pipeline:advance"

// QueuePipeline is the queue session runs are enqueued on.
const QueuePipeline = "pipeline"

// PipelineTaskPayload is the task body for a session run.
type PipelineTaskPayload struct {
	SessionID string `json:"sessionId"`
}

// Runner executes a session run to completion or until it blocks. The
// background worker implements this; it also serves as the in-process
// fallback when no task queue is configured.
type Runner interface {
	RunSession(ctx context.Context, sessionID string) error
}

// PipelineService hands session runs to the background queue. At most one
// run per session id is in flight at a time: a duplicate start request
// joins the run already executing instead of racing it.
type PipelineService struct {
	asynqClient *asynq.Client
	runner      Runner

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPipelineService creates a pipeline service. asynqClient may be nil, in
// which case runs execute on an in-process goroutine via runner.
func NewPipelineService(asynqClient *asynq.Client, runner Runner) *PipelineService {
	return &PipelineService{
		asynqClient: asynqClient,
		runner:      runner,
		inflight:    make(map[string]struct{}),
	}
}

// StartRun schedules an advance-to-completion run for the session. Starting
// a session whose run is already in flight is a no-op, not an error.
func (s *PipelineService) StartRun(ctx context.Context, sessionID string) error {
	if s.asynqClient == nil {
		s.mu.Lock()
		if _, running := s.inflight[sessionID]; running {
			s.mu.Unlock()
			return nil
		}
		s.inflight[sessionID] = struct{}{}
		s.mu.Unlock()

		go func() {
			defer func() {
				s.mu.Lock()
				delete(s.inflight, sessionID)
				s.mu.Unlock()
			}()
			if err := s.runner.RunSession(context.Background(), sessionID); err != nil {
				log.Printf("[pipeline] inline run for session %s: %v", sessionID, err)
			}
		}()
		return nil
	}

	payload, err := json.Marshal(PipelineTaskPayload{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TaskTypePipelineAdvance, payload)
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue(QueuePipeline),
		// The orchestrator owns retries; a re-delivered task would race the
		// in-flight run.
		asynq.MaxRetry(0),
		// The task id pins one queued or active run per session. The id is
		// released on completion, so the next start request (for example
		// after the audio upload) enqueues normally.
		asynq.TaskID(sessionID),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}
