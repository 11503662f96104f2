package models

import "time"

// Role distinguishes the three kinds of participants inside a live
// class. Elder is a student with extra authority over their team.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleCurator Role = "CURATOR"
	RoleElder   Role = "ELDER"
)

// Class is the read-only view of a scheduled class owned by the CRUD
// subsystem. Only the time window matters to this engine.
type Class struct {
	ID        int64     `json:"id" db:"id"`
	GroupID   int64     `json:"group_id" db:"group_id"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
}

// InSession reports whether the class window contains the instant.
func (c *Class) InSession(now time.Time) bool {
	return !now.Before(c.StartTime) && now.Before(c.EndTime)
}

// Team is the read-only view of a fixed student group with one elder,
// attached to exactly one class.
type Team struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	ClassID int64  `json:"class_id" db:"class_id"`
	ElderID int64  `json:"elder_id" db:"elder_id"`
}

// TeamStatus is the queryable control-state snapshot for a team.
type TeamStatus struct {
	TeamID         int64  `json:"team_id"`
	IsBlocked      bool   `json:"is_blocked"`
	HandRaised     bool   `json:"hand_raised"`
	SelectedTaskID *int64 `json:"selected_task_id"`
}

// Pagination describes list slicing in responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
