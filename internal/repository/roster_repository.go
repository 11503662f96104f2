package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/club-collab-api/internal/models"
)

// RosterRepository reads the tables owned by the CRUD subsystem:
// class windows, team membership, elder identity and task bindings.
// This service never writes them.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a new repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// FindClass returns the class or nil when absent.
func (r *RosterRepository) FindClass(ctx context.Context, id int64) (*models.Class, error) {
	query := `SELECT id, group_id, start_time, end_time FROM class WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// FindTeam returns the team or nil when absent.
func (r *RosterRepository) FindTeam(ctx context.Context, id int64) (*models.Team, error) {
	query := `SELECT id, name, class_id, elder_id FROM team WHERE id = $1`
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find team: %w", err)
	}
	return &team, nil
}

// IsTeamMember reports whether the student belongs to the team.
func (r *RosterRepository) IsTeamMember(ctx context.Context, teamID, studentID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_team WHERE team_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teamID, studentID); err != nil {
		return false, fmt.Errorf("check team membership: %w", err)
	}
	return exists, nil
}

// StudentTeamInClass returns the id of the team the student belongs
// to inside the given class, or nil when unassigned.
func (r *RosterRepository) StudentTeamInClass(ctx context.Context, classID, studentID int64) (*int64, error) {
	query := `SELECT t.id FROM team t
JOIN user_team ut ON ut.team_id = t.id
WHERE t.class_id = $1 AND ut.user_id = $2`
	var teamID int64
	if err := r.db.GetContext(ctx, &teamID, query, classID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find student team in class: %w", err)
	}
	return &teamID, nil
}

// TaskInClass reports whether the task is attached to the class.
func (r *RosterRepository) TaskInClass(ctx context.Context, classID, taskID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM class_task WHERE class_id = $1 AND task_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, classID, taskID); err != nil {
		return false, fmt.Errorf("check task binding: %w", err)
	}
	return exists, nil
}
