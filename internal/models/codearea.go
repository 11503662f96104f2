package models

import "time"

// CodeArea is one participant's self-owned text buffer inside a
// team's shared view. Content is always the last full document its
// owner published; areas are never merged from two sources.
type CodeArea struct {
	TeamID    int64     `json:"team_id"`
	OwnerID   int64     `json:"owner_id"`
	OwnerRole Role      `json:"owner_role"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EditableBy reports whether the given participant may mutate the
// area. Only the owner ever can; everyone else holds a read-only view.
func (a *CodeArea) EditableBy(participantID int64) bool {
	return a.OwnerID == participantID
}
