package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/newsmelody/api/internal/model"
	"github.com/newsmelody/api/internal/pipeline"
	"github.com/newsmelody/api/internal/service"
	"github.com/newsmelody/api/internal/store"
	"github.com/newsmelody/api/pkg/response"
)

type SessionHandler struct {
	store     store.Store
	workspace store.Workspace
	pipeline  *service.PipelineService
	validator *validator.Validate
}

func NewSessionHandler(s store.Store, ws store.Workspace, pipeline *service.PipelineService, v *validator.Validate) *SessionHandler {
	return &SessionHandler{
		store:     s,
		workspace: ws,
		pipeline:  pipeline,
		validator: v,
	}
}

// Create handles POST /api/sessions
// @Summary      Create session
// @Description  Register a news item and create a pipeline session for it
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        request body model.CreateSessionRequest true "News item"
// @Success      201 {object} model.CreateSessionResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions [post]
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req model.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	now := time.Now().UTC()
	session := &model.Session{
		ID:     store.NewID(now),
		Status: model.StatusCreated,
		News: model.NewsItem{
			Title:  req.Title,
			Body:   req.Body,
			Source: req.Source,
			Date:   req.Date,
		},
		CreatedAt: now,
	}

	if err := h.store.Create(c.Context(), session); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, model.CreateSessionResponse{
		SessionID: session.ID,
		Status:    session.Status,
	})
}

// List handles GET /api/sessions
// @Summary      List sessions
// @Description  List sessions newest first, optionally filtered by status
// @Tags         Sessions
// @Produce      json
// @Param        status query string false "Filter by lifecycle status"
// @Param        limit  query int    false "Maximum number of sessions"
// @Success      200 {object} model.ListSessionsResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions [get]
func (h *SessionHandler) List(c *fiber.Ctx) error {
	status := model.SessionStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		return response.ValidationError(c, "Unknown status filter", nil)
	}
	limit := c.QueryInt("limit", 0)

	sessions, err := h.store.List(c.Context(), status, limit)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.ListSessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// Get handles GET /api/sessions/:id
// @Summary      Get session
// @Description  Fetch the full record of one session
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} model.Session
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id} [get]
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	session, err := h.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, session)
}

// Advance handles POST /api/sessions/:id/advance
// @Summary      Advance session
// @Description  Queue a background run that advances the session as far as it can go
// @Tags         Sessions
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      200 {object} response.ErrorResponse "Session is waiting for its audio artifact"
// @Success      202 {object} model.AdvanceSessionResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/advance [post]
func (h *SessionHandler) Advance(c *fiber.Ctx) error {
	session, err := h.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.ServiceError(c, err.Error())
	}

	if session.Status.IsTerminal() {
		return response.Conflict(c, "Session already finished")
	}

	// A session parked at lyrics_ready cannot move until its audio file
	// arrives, so report that instead of queueing a run that would park again.
	if pipeline.AwaitingAudio(h.workspace, session) {
		return response.NotYetReady(c, fiber.Map{
			"sessionId": session.ID,
			"status":    session.Status,
		})
	}

	if err := h.pipeline.StartRun(c.Context(), session.ID); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.AdvanceSessionResponse{
		SessionID: session.ID,
		Status:    session.Status,
		Enqueued:  true,
	})
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
