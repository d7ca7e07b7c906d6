package api

import (
	"github.com/sentiq/sentiq-api/internal/domain"
)

// TaskView is the client-facing representation of a task. The internal
// surrogate key and file paths never leave the server; exactly one of
// Result/BatchResult/Error is set once the task is terminal.
type TaskView struct {
	TaskID string `json:"task_id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Start  int64  `json:"start"`
	End    int64  `json:"end,omitempty"`

	Result      *SingleResultView `json:"result,omitempty"`
	BatchResult *BatchResultView  `json:"batch_result,omitempty"`
	Error       *TaskErrorView    `json:"error,omitempty"`
}

// SingleResultView is the single-task outcome payload.
type SingleResultView struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// BatchResultView is the batch-task outcome payload.
type BatchResultView struct {
	TotalReviews int     `json:"total_reviews"`
	Positive     int     `json:"positive"`
	Negative     int     `json:"negative"`
	Neutral      int     `json:"neutral"`
	PositivePct  float64 `json:"positive_percentage"`
	NegativePct  float64 `json:"negative_percentage"`
	NeutralPct   float64 `json:"neutral_percentage"`
}

// TaskErrorView is the failure payload with its stable code.
type TaskErrorView struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// taskToView converts a domain task to its API representation.
func taskToView(task *domain.Task) TaskView {
	view := TaskView{
		TaskID: task.TaskID.String(),
		Type:   string(task.Type),
		Status: string(task.Status),
		Start:  task.Start,
		End:    task.End,
	}

	if task.SingleResult != nil {
		view.Result = &SingleResultView{
			Sentiment:  string(task.SingleResult.Sentiment),
			Confidence: task.SingleResult.Confidence,
		}
	}

	if task.BatchResult != nil {
		view.BatchResult = &BatchResultView{
			TotalReviews: task.BatchResult.TotalReviews,
			Positive:     task.BatchResult.Positive,
			Negative:     task.BatchResult.Negative,
			Neutral:      task.BatchResult.Neutral,
			PositivePct:  task.BatchResult.PositivePct,
			NegativePct:  task.BatchResult.NegativePct,
			NeutralPct:   task.BatchResult.NeutralPct,
		}
	}

	if task.Error != nil {
		view.Error = &TaskErrorView{
			Code:        string(task.Error.Code),
			Description: task.Error.Description,
		}
	}

	return view
}
