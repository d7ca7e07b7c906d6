package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentiq/sentiq-api/internal/api/shared"
	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockTaskService implements service.TaskService for handler tests.
type mockTaskService struct {
	CreateSingleFn func(ctx context.Context, userID, text string) (*domain.Task, error)
	CreateBatchFn  func(ctx context.Context, userID string, content []byte, filename string) (*domain.Task, error)
	GetLastFn      func(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error)
}

func (m *mockTaskService) CreateSingle(ctx context.Context, userID, text string) (*domain.Task, error) {
	if m.CreateSingleFn != nil {
		return m.CreateSingleFn(ctx, userID, text)
	}
	return domain.NewSingleTask(userID, text)
}

func (m *mockTaskService) CreateBatch(
	ctx context.Context,
	userID string,
	content []byte,
	filename string,
) (*domain.Task, error) {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(ctx, userID, content, filename)
	}
	return domain.NewBatchTask(userID, filename, "/spool/"+filename, int64(len(content)))
}

func (m *mockTaskService) GetLast(
	ctx context.Context,
	userID string,
	taskType domain.TaskType,
) (*domain.Task, error) {
	if m.GetLastFn != nil {
		return m.GetLastFn(ctx, userID, taskType)
	}
	return nil, service.ErrTaskNotFound
}

func (m *mockTaskService) UpdateStatus(
	ctx context.Context,
	taskID string,
	status domain.TaskStatus,
	taskErr *domain.TaskError,
) (*domain.Task, error) {
	return nil, service.ErrTaskNotFound
}

var _ service.TaskService = (*mockTaskService)(nil)

const testMaxFileBytes = 10 << 20

// newSessionRequest builds a request with a user ID already on the
// context, as the session middleware would leave it.
func newSessionRequest(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	return req.WithContext(shared.WithUserID(req.Context(), "user-1"))
}

func decodeTaskView(t *testing.T, body *bytes.Buffer) TaskView {
	t.Helper()

	var view TaskView
	require.NoError(t, json.NewDecoder(body).Decode(&view))
	return view
}

func TestRunSingle(t *testing.T) {
	t.Parallel()

	t.Run("accepts valid text", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskHandler(&mockTaskService{}, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/run/single",
			strings.NewReader(`{"text": "great product"}`))
		rec := httptest.NewRecorder()
		handler.RunSingle(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)

		view := decodeTaskView(t, rec.Body)
		assert.NotEmpty(t, view.TaskID)
		assert.Equal(t, "single", view.Type)
		assert.Equal(t, "accepted", view.Status)
		assert.NotZero(t, view.Start)
		assert.Zero(t, view.End)
		assert.Nil(t, view.Result)
		assert.Nil(t, view.Error)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskHandler(&mockTaskService{}, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/run/single",
			strings.NewReader(`{"text": `))
		rec := httptest.NewRecorder()
		handler.RunSingle(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing text", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskHandler(&mockTaskService{}, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/run/single",
			strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		handler.RunSingle(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps validation errors to 400", func(t *testing.T) {
		t.Parallel()

		svc := &mockTaskService{
			CreateSingleFn: func(ctx context.Context, userID, text string) (*domain.Task, error) {
				return nil, fmt.Errorf("%w: text exceeds maximum length", domain.ErrValidation)
			},
		}
		handler := NewTaskHandler(svc, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/run/single",
			strings.NewReader(`{"text": "way too long"}`))
		rec := httptest.NewRecorder()
		handler.RunSingle(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fails without a session", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskHandler(&mockTaskService{}, testMaxFileBytes, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/task/run/single",
			strings.NewReader(`{"text": "hello"}`))
		rec := httptest.NewRecorder()
		handler.RunSingle(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func multipartBody(t *testing.T, fieldName, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestRunBatch(t *testing.T) {
	t.Parallel()

	t.Run("accepts a file upload", func(t *testing.T) {
		t.Parallel()

		var gotFilename string
		var gotContent []byte
		svc := &mockTaskService{
			CreateBatchFn: func(ctx context.Context, userID string, content []byte, filename string) (*domain.Task, error) {
				gotFilename = filename
				gotContent = content
				return domain.NewBatchTask(userID, filename, "/spool/x.csv", int64(len(content)))
			},
		}
		handler := NewTaskHandler(svc, testMaxFileBytes, testLogger())

		body, contentType := multipartBody(t, "file", "reviews.csv", []byte("review\ngreat\n"))
		req := newSessionRequest(t, http.MethodPost, "/task/run/batch", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.RunBatch(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "reviews.csv", gotFilename)
		assert.Equal(t, []byte("review\ngreat\n"), gotContent)

		view := decodeTaskView(t, rec.Body)
		assert.Equal(t, "batch", view.Type)
		assert.Equal(t, "accepted", view.Status)
	})

	t.Run("rejects missing file part", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskHandler(&mockTaskService{}, testMaxFileBytes, testLogger())

		body, contentType := multipartBody(t, "document", "reviews.csv", []byte("data"))
		req := newSessionRequest(t, http.MethodPost, "/task/run/batch", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.RunBatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps file too large to 413", func(t *testing.T) {
		t.Parallel()

		svc := &mockTaskService{
			CreateBatchFn: func(ctx context.Context, userID string, content []byte, filename string) (*domain.Task, error) {
				return nil, fmt.Errorf("%w: 12345678 bytes", domain.ErrFileTooLarge)
			},
		}
		handler := NewTaskHandler(svc, testMaxFileBytes, testLogger())

		body, contentType := multipartBody(t, "file", "reviews.csv", []byte("data"))
		req := newSessionRequest(t, http.MethodPost, "/task/run/batch", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.RunBatch(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("maps unsupported format to 415", func(t *testing.T) {
		t.Parallel()

		svc := &mockTaskService{
			CreateBatchFn: func(ctx context.Context, userID string, content []byte, filename string) (*domain.Task, error) {
				return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, "xlsx")
			},
		}
		handler := NewTaskHandler(svc, testMaxFileBytes, testLogger())

		body, contentType := multipartBody(t, "file", "reviews.xlsx", []byte("data"))
		req := newSessionRequest(t, http.MethodPost, "/task/run/batch", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.RunBatch(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("rejects non-multipart body", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskHandler(&mockTaskService{}, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/run/batch",
			strings.NewReader("plain text"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		handler.RunBatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResultEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("no task yet yields 404", func(t *testing.T) {
		t.Parallel()

		handler := NewTaskHandler(&mockTaskService{}, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/result/single", nil)
		rec := httptest.NewRecorder()
		handler.ResultSingle(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ready task carries its result", func(t *testing.T) {
		t.Parallel()

		task, err := domain.NewSingleTask("user-1", "great")
		require.NoError(t, err)
		require.NoError(t, task.TransitionTo(domain.TaskStatusQueued))
		require.NoError(t, task.TransitionTo(domain.TaskStatusReady))
		task.SingleResult = &domain.SingleResult{
			Sentiment:  domain.SentimentPositive,
			Confidence: 0.85,
		}

		svc := &mockTaskService{
			GetLastFn: func(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error) {
				assert.Equal(t, "user-1", userID)
				assert.Equal(t, domain.TaskTypeSingle, taskType)
				return task, nil
			},
		}
		handler := NewTaskHandler(svc, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/result/single", nil)
		rec := httptest.NewRecorder()
		handler.ResultSingle(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		view := decodeTaskView(t, rec.Body)
		assert.Equal(t, "ready", view.Status)
		assert.NotZero(t, view.End)
		require.NotNil(t, view.Result)
		assert.Equal(t, "positive", view.Result.Sentiment)
		assert.Equal(t, 0.85, view.Result.Confidence)
	})

	t.Run("failed batch task carries its error payload", func(t *testing.T) {
		t.Parallel()

		task, err := domain.NewBatchTask("user-1", "reviews.csv", "/spool/x.csv", 42)
		require.NoError(t, err)
		require.NoError(t, task.TransitionTo(domain.TaskStatusQueued))
		require.NoError(t, task.TransitionTo(domain.TaskStatusError))
		task.Error = &domain.TaskError{
			Code:        domain.ErrorCodeProcessing,
			Description: "scoring failed",
		}

		svc := &mockTaskService{
			GetLastFn: func(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error) {
				return task, nil
			},
		}
		handler := NewTaskHandler(svc, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/result/batch", nil)
		rec := httptest.NewRecorder()
		handler.ResultBatch(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		view := decodeTaskView(t, rec.Body)
		assert.Equal(t, "error", view.Status)
		require.NotNil(t, view.Error)
		assert.Equal(t, "01", view.Error.Code)
		assert.Equal(t, "scoring failed", view.Error.Description)
		assert.Nil(t, view.Result)
		assert.Nil(t, view.BatchResult)
	})

	t.Run("store failure yields sanitized 500", func(t *testing.T) {
		t.Parallel()

		svc := &mockTaskService{
			GetLastFn: func(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error) {
				return nil, fmt.Errorf("pq: connection to postgres://user:pass@db:5432 failed")
			},
		}
		handler := NewTaskHandler(svc, testMaxFileBytes, testLogger())

		req := newSessionRequest(t, http.MethodPost, "/task/result/single", nil)
		rec := httptest.NewRecorder()
		handler.ResultSingle(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "postgres://")
		assert.Contains(t, rec.Body.String(), "unexpected error")
	})
}
