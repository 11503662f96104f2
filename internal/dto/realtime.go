package dto

import (
	"encoding/json"

	"github.com/noah-isme/club-collab-api/internal/models"
)

// Actions a client may send on the realtime channel.
const (
	ActionJoinClass    = "join_class"
	ActionLeaveClass   = "leave_class"
	ActionJoinTeam     = "join_team"
	ActionLeaveTeam    = "leave_team"
	ActionToggleBlock  = "toggle_block"
	ActionToggleHand   = "toggle_hand"
	ActionSelectTask   = "select_task"
	ActionCodeChange   = "code_change"
	ActionSyncRequest  = "sync_request"
	ActionSyncResponse = "sync_response"
	ActionSubmit       = "submit"
)

// Frame kinds the server pushes back to clients.
const (
	FrameEvent        = "EVENT"
	FrameCodeChange   = "CODE_CHANGE"
	FrameSyncRequest  = "SYNC_REQUEST"
	FrameSyncResponse = "SYNC_RESPONSE"
	FrameSyncSnapshot = "SYNC_SNAPSHOT"
	FrameError        = "ERROR"
)

// ClientEnvelope is the inbound message wrapper on the websocket.
type ClientEnvelope struct {
	Action  string          `json:"action" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// ServerFrame is the outbound message wrapper.
type ServerFrame struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

// JoinClassPayload covers join_class and leave_class.
type JoinClassPayload struct {
	ClassID int64 `json:"class_id" validate:"required"`
}

// JoinTeamPayload covers join_team and leave_team.
type JoinTeamPayload struct {
	TeamID int64 `json:"team_id" validate:"required"`
}

// ToggleBlockPayload sets a team's submission block flag.
type ToggleBlockPayload struct {
	TeamID  int64 `json:"team_id" validate:"required"`
	Blocked bool  `json:"blocked"`
}

// ToggleHandPayload flips a team's raised hand.
type ToggleHandPayload struct {
	TeamID int64 `json:"team_id" validate:"required"`
}

// SelectTaskPayload picks the team's active task.
type SelectTaskPayload struct {
	TeamID int64 `json:"team_id" validate:"required"`
	TaskID int64 `json:"task_id" validate:"required"`
}

// CodeChangeMessage carries a full-document replacement for the
// author's own area. Receivers overwrite or create the author's area.
type CodeChangeMessage struct {
	TeamID     int64       `json:"team_id" validate:"required"`
	AuthorID   int64       `json:"author_id"`
	AuthorRole models.Role `json:"author_role"`
	Code       string      `json:"code"`
}

// SyncRequestMessage asks every other subscriber of the team's sync
// topic to publish their current code.
type SyncRequestMessage struct {
	TeamID      int64 `json:"team_id" validate:"required"`
	RequesterID int64 `json:"requester_id"`
}

// SyncResponseMessage is one peer's answer, addressed to the
// original requester.
type SyncResponseMessage struct {
	TeamID      int64       `json:"team_id" validate:"required"`
	FromID      int64       `json:"from_id"`
	FromRole    models.Role `json:"from_role"`
	RequesterID int64       `json:"requester_id"`
	Code        string      `json:"code"`
}

// SyncSnapshot is delivered to the requester when the collection
// window closes: one area per distinct responder.
type SyncSnapshot struct {
	TeamID int64             `json:"team_id"`
	Areas  []models.CodeArea `json:"areas"`
}

// SubmitPayload sends the elder's solution for grading.
type SubmitPayload struct {
	TeamID int64  `json:"team_id" validate:"required"`
	TaskID int64  `json:"task_id" validate:"required"`
	Code   string `json:"code"`
}

// ErrorFrame is returned to the acting client only, never broadcast.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
