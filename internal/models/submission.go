package models

import "time"

// SubmissionStatus tracks the grading lifecycle of a sent solution.
type SubmissionStatus string

const (
	SubmissionNew       SubmissionStatus = "NEW"
	SubmissionInProcess SubmissionStatus = "IN_PROCESS"
	SubmissionOK        SubmissionStatus = "OK"
	SubmissionFailed    SubmissionStatus = "FAILED"
)

// Submission is one elder-initiated send of a team's code for a task.
// Status transitions beyond NEW are driven by the external grading
// runner and reported back asynchronously.
type Submission struct {
	ID             int64            `json:"id" db:"id"`
	TeamID         int64            `json:"team_id" db:"team_id"`
	TaskID         int64            `json:"task_id" db:"task_id"`
	Code           string           `json:"code" db:"code"`
	Language       string           `json:"language" db:"language"`
	Status         SubmissionStatus `json:"status" db:"status"`
	CompletionTime *time.Duration   `json:"completion_time,omitempty" db:"completion_time"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}
