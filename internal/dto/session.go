package dto

import (
	"time"

	"github.com/noah-isme/club-collab-api/internal/models"
)

// EventItem is the REST/broadcast projection of a stored event.
type EventItem struct {
	ID           int64        `json:"id"`
	Time         time.Time    `json:"time"`
	Type         string       `json:"type"`
	ClassID      *int64       `json:"class_id,omitempty"`
	TeamID       *int64       `json:"team_id,omitempty"`
	TaskID       *int64       `json:"task_id,omitempty"`
	SubmissionID *int64       `json:"submission_id,omitempty"`
	ActorID      *int64       `json:"actor_id,omitempty"`
	ActorRole    *models.Role `json:"actor_role,omitempty"`
}

// EventItemFromModel projects a stored event for the wire.
func EventItemFromModel(e *models.Event) EventItem {
	return EventItem{
		ID:           e.ID,
		Time:         e.Time,
		Type:         string(e.Type),
		ClassID:      e.ClassID,
		TeamID:       e.TeamID,
		TaskID:       e.TaskID,
		SubmissionID: e.SubmissionID,
		ActorID:      e.ActorID,
		ActorRole:    e.ActorRole,
	}
}

// BlockTeamRequest is the REST body for the block toggle.
type BlockTeamRequest struct {
	Blocked bool `json:"blocked"`
}

// SelectTaskRequest is the REST body for task selection.
type SelectTaskRequest struct {
	TaskID int64 `json:"task_id" validate:"required"`
}

// SubmitRequest is the REST body for sending a solution.
type SubmitRequest struct {
	TaskID   int64  `json:"task_id" validate:"required"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// GradingResultRequest is the callback body from the external runner.
type GradingResultRequest struct {
	SubmissionID    int64  `json:"submission_id" validate:"required"`
	Passed          bool   `json:"passed"`
	DurationSeconds int64  `json:"duration_seconds"`
	Detail          string `json:"detail"`
}

// JoinedCuratorsResponse lists curators currently joined to a team.
type JoinedCuratorsResponse struct {
	TeamID     int64   `json:"team_id"`
	CuratorIDs []int64 `json:"curator_ids"`
}

// CuratorMembershipResponse answers "is this curator joined here".
type CuratorMembershipResponse struct {
	TeamID    int64 `json:"team_id"`
	CuratorID int64 `json:"curator_id"`
	Joined    bool  `json:"joined"`
}

// ExportLinkResponse returns a signed download token for a generated
// event-history artifact.
type ExportLinkResponse struct {
	File      string    `json:"file"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
