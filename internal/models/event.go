package models

import "time"

// EventType enumerates every fact the engine records.
type EventType string

const (
	EventStudentJoinedClass EventType = "STUDENT_JOINED_CLASS"
	EventStudentLeftClass   EventType = "STUDENT_LEFT_CLASS"
	EventCuratorJoinedClass EventType = "CURATOR_JOINED_CLASS"
	EventCuratorLeftClass   EventType = "CURATOR_LEFT_CLASS"
	EventCuratorJoinedTeam  EventType = "CURATOR_JOINED_TEAM"
	EventCuratorLeftTeam    EventType = "CURATOR_LEFT_TEAM"

	EventCuratorBlockedTeam   EventType = "CURATOR_BLOCKED_TEAM"
	EventCuratorUnblockedTeam EventType = "CURATOR_UNBLOCKED_TEAM"
	EventTeamRaisedHand       EventType = "TEAM_RAISED_HAND"
	EventTeamLoweredHand      EventType = "TEAM_LOWERED_HAND"
	EventTeamBeganTask        EventType = "TEAM_BEGAN_TO_COMPLETE_TASK"

	EventTeamSentSolution EventType = "TEAM_SENT_SOLUTION"
	EventResultOfSolution EventType = "RESULT_OF_SOLUTION"
)

// Event is an immutable, append-only fact. The event log is the only
// durable record of session history; presence and team state are
// rebuildable caches over it.
type Event struct {
	ID           int64     `json:"id" db:"id"`
	Time         time.Time `json:"time" db:"time"`
	Type         EventType `json:"type" db:"type"`
	ClassID      *int64    `json:"class_id,omitempty" db:"class_id"`
	TeamID       *int64    `json:"team_id,omitempty" db:"team_id"`
	TaskID       *int64    `json:"task_id,omitempty" db:"task_id"`
	SubmissionID *int64    `json:"submission_id,omitempty" db:"submission_id"`
	ActorID      *int64    `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole    *Role     `json:"actor_role,omitempty" db:"actor_role"`
}

// EventFilter narrows event history queries.
type EventFilter struct {
	ClassID  int64
	TeamID   int64
	Since    *time.Time
	Page     int
	PageSize int
}

// Int64Ptr is a small helper for the nullable reference columns.
func Int64Ptr(v int64) *int64 { return &v }

// RolePtr mirrors Int64Ptr for the actor role column.
func RolePtr(r Role) *Role { return &r }
