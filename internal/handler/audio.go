package handler

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/newsmelody/api/internal/model"
	"github.com/newsmelody/api/internal/service"
	"github.com/newsmelody/api/internal/store"
	"github.com/newsmelody/api/pkg/response"
)

const maxAudioSize = 100 * 1024 * 1024 // 100MB

// audioExtensions maps accepted content types to the canonical file name
// inside the session directory.
var audioExtensions = map[string]string{
	"audio/mpeg":  "audio.mp3",
	"audio/mp3":   "audio.mp3",
	"audio/wav":   "audio.wav",
	"audio/x-wav": "audio.wav",
	"audio/wave":  "audio.wav",
	"audio/mp4":   "audio.m4a",
	"audio/x-m4a": "audio.m4a",
}

// AudioHandler receives the externally produced song audio for a session.
type AudioHandler struct {
	store     store.Store
	workspace store.Workspace
	pipeline  *service.PipelineService
}

func NewAudioHandler(s store.Store, ws store.Workspace, pipeline *service.PipelineService) *AudioHandler {
	return &AudioHandler{
		store:     s,
		workspace: ws,
		pipeline:  pipeline,
	}
}

// Put handles PUT /api/sessions/:id/audio
// @Summary      Place session audio
// @Description  Upload the produced song audio for a session waiting at lyrics_ready, then resume its run
// @Tags         Sessions
// @Accept       multipart/form-data
// @Produce      json
// @Param        id   path     string true "Session ID"
// @Param        file formData file   true "Audio file (MP3, WAV, M4A; max 100MB)"
// @Success      200 {object} model.AudioUploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/sessions/{id}/audio [put]
func (h *AudioHandler) Put(c *fiber.Ctx) error {
	session, err := h.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.ServiceError(c, err.Error())
	}

	if session.Status != model.StatusLyricsReady {
		return response.Conflict(c, fmt.Sprintf("Session is %s, audio is only accepted at %s",
			session.Status, model.StatusLyricsReady))
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}
	if file.Size == 0 {
		return response.ValidationError(c, "File is empty", nil)
	}
	if file.Size > maxAudioSize {
		return response.ValidationError(c, "File size exceeds 100MB limit", map[string]interface{}{
			"maxSize":  maxAudioSize,
			"fileSize": file.Size,
		})
	}

	name, ok := audioExtensions[file.Header.Get("Content-Type")]
	if !ok {
		return response.ValidationError(c, "Invalid file type. Supported: MP3, WAV, M4A", map[string]interface{}{
			"contentType": file.Header.Get("Content-Type"),
		})
	}

	if _, err := h.workspace.EnsureDir(session.ID); err != nil {
		return response.ServiceError(c, err.Error())
	}
	path := h.workspace.Path(session.ID, name)
	if err := c.SaveFile(file, path); err != nil {
		return response.ServiceError(c, "Failed to store file")
	}

	// Register the artifact location; the orchestrator validates playability
	// and moves the status when the run resumes.
	if _, err := h.store.Update(c.Context(), session.ID, func(s *model.Session) error {
		s.SetArtifact(model.ArtifactAudio, path)
		return nil
	}); err != nil {
		_ = os.Remove(path)
		return response.ServiceError(c, err.Error())
	}

	if err := h.pipeline.StartRun(c.Context(), session.ID); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.AudioUploadResponse{
		SessionID: session.ID,
		Path:      path,
		Size:      file.Size,
	})
}
