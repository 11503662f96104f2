package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/club-collab-api/internal/models"
)

// SubmissionRepository persists elder-sent solutions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a new repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a new submission in status NEW.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = models.SubmissionNew
	}
	query := `INSERT INTO submission (team_id, task_id, code, language, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		sub.TeamID, sub.TaskID, sub.Code, sub.Language, sub.Status, sub.CreatedAt, sub.UpdatedAt,
	).Scan(&sub.ID); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID fetches one submission.
func (r *SubmissionRepository) FindByID(ctx context.Context, id int64) (*models.Submission, error) {
	query := `SELECT id, team_id, task_id, code, language, status, completion_time, created_at, updated_at
FROM submission WHERE id = $1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// UpdateStatus moves the submission along its lifecycle; completion
// is only recorded with a terminal status.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id int64, status models.SubmissionStatus, completion *time.Duration) error {
	query := `UPDATE submission SET status = $2, completion_time = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, completion, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByTeam returns a team's submissions newest-first.
func (r *SubmissionRepository) ListByTeam(ctx context.Context, teamID int64) ([]models.Submission, error) {
	query := `SELECT id, team_id, task_id, code, language, status, completion_time, created_at, updated_at
FROM submission WHERE team_id = $1 ORDER BY created_at DESC, id DESC`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, teamID); err != nil {
		return nil, fmt.Errorf("list submissions by team: %w", err)
	}
	return subs, nil
}
