// Package api provides HTTP handlers for the API.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sentiq/sentiq-api/internal/api/shared"
	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/platform/logger"
	"github.com/sentiq/sentiq-api/internal/service"
)

// multipartMemoryLimit bounds how much of an upload is held in memory
// before spilling to temp files.
const multipartMemoryLimit = 4 << 20

// RunSingleRequest is the body for single-text submissions.
type RunSingleRequest struct {
	Text string `json:"text" validate:"required"`
}

// TaskHandler handles task submission and result retrieval requests.
type TaskHandler struct {
	taskService  service.TaskService
	maxFileBytes int64
	logger       *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, maxFileBytes int64, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}
	if taskService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskService cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService:  taskService,
		maxFileBytes: maxFileBytes,
		logger:       logger.With(slog.String("component", "task_handler")),
	}
}

// RunSingle handles POST /task/run/single requests. The text is validated
// synchronously; scoring happens in the background and the accepted task
// is returned immediately.
func (h *TaskHandler) RunSingle(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID := shared.GetUserID(r.Context())
	if userID == "" {
		log.Warn("user ID not found in request context")
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Session not established")
		return
	}

	var req RunSingleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("invalid request body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	task, err := h.taskService.CreateSingle(r.Context(), userID, req.Text)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("single task accepted", slog.String("task_id", task.TaskID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToView(task))
}

// RunBatch handles POST /task/run/batch requests. The multipart "file"
// part carries the review file; it is validated synchronously and scored
// in the background.
func (h *TaskHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID := shared.GetUserID(r.Context())
	if userID == "" {
		log.Warn("user ID not found in request context")
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Session not established")
		return
	}

	// Cap the whole request body so oversized uploads fail fast instead
	// of being read to completion. The slack covers multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileBytes+multipartMemoryLimit)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		log.Debug("invalid multipart body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to read upload", err)
		return
	}

	task, err := h.taskService.CreateBatch(r.Context(), userID, content, header.Filename)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("batch task accepted",
		slog.String("task_id", task.TaskID.String()),
		slog.String("file_name", header.Filename))
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToView(task))
}

// ResultSingle handles POST /task/result/single requests, returning the
// caller's newest single task in whatever state it is in. Clients poll
// this until the status turns terminal.
func (h *TaskHandler) ResultSingle(w http.ResponseWriter, r *http.Request) {
	h.latestTask(w, r, domain.TaskTypeSingle)
}

// ResultBatch handles POST /task/result/batch requests.
func (h *TaskHandler) ResultBatch(w http.ResponseWriter, r *http.Request) {
	h.latestTask(w, r, domain.TaskTypeBatch)
}

func (h *TaskHandler) latestTask(w http.ResponseWriter, r *http.Request, taskType domain.TaskType) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID := shared.GetUserID(r.Context())
	if userID == "" {
		log.Warn("user ID not found in request context")
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Session not established")
		return
	}

	task, err := h.taskService.GetLast(r.Context(), userID, taskType)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToView(task))
}
