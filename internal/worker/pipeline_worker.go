package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/newsmelody/api/internal/model"
	"github.com/newsmelody/api/internal/pipeline"
	"github.com/newsmelody/api/internal/service"
	"github.com/newsmelody/api/internal/websocket"
)

// PipelineWorker executes session runs from the task queue and streams
// progress to websocket subscribers.
type PipelineWorker struct {
	orchestrator *pipeline.Orchestrator
	hub          *websocket.Hub
}

// NewPipelineWorker creates a new pipeline worker. The worker installs
// itself as the orchestrator's stage callback.
func NewPipelineWorker(orchestrator *pipeline.Orchestrator, hub *websocket.Hub) *PipelineWorker {
	w := &PipelineWorker{
		orchestrator: orchestrator,
		hub:          hub,
	}
	orchestrator.OnStage = w.broadcastStage
	return w
}

// ProcessTask handles a pipeline advance task
func (w *PipelineWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.PipelineTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	return w.RunSession(ctx, payload.SessionID)
}

// RunSession drives one session as far as it can go. Waiting on the audio
// artifact is a normal stop, not a task failure.
func (w *PipelineWorker) RunSession(ctx context.Context, sessionID string) error {
	log.Printf("Starting pipeline run for session %s", sessionID)

	session, err := w.orchestrator.Run(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotYetReady) {
			log.Printf("Session %s waiting for audio artifact", sessionID)
			return nil
		}

		status := model.SessionStatus("")
		if session != nil {
			status = session.Status
		}
		w.hub.BroadcastError(sessionID, status, err.Error())
		log.Printf("Pipeline run for session %s failed: %v", sessionID, err)
		return err
	}

	w.hub.BroadcastComplete(sessionID, session.Status)
	log.Printf("Pipeline run for session %s finished at %s", sessionID, session.Status)
	return nil
}

func (w *PipelineWorker) broadcastStage(sessionID string, status model.SessionStatus) {
	w.hub.BroadcastStage(sessionID, status)
}
