package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/club-collab-api/internal/models"
)

// EventRepository is the append-only store behind the event log.
// Rows are never updated or deleted.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs a new repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts one event, assigning its id and timestamp.
func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	query := `INSERT INTO app_event (time, type, class_id, team_id, task_id, submission_id, actor_id, actor_role)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		event.Time, event.Type, event.ClassID, event.TeamID,
		event.TaskID, event.SubmissionID, event.ActorID, event.ActorRole,
	).Scan(&event.ID); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByClass returns a class's events newest-first with pagination.
func (r *EventRepository) ListByClass(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	where := []string{"class_id = $1"}
	args := []interface{}{filter.ClassID}
	if filter.Since != nil {
		where = append(where, fmt.Sprintf("time >= $%d", len(args)+1))
		args = append(args, *filter.Since)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, time, type, class_id, team_id, task_id, submission_id, actor_id, actor_role
FROM app_event WHERE %s ORDER BY time DESC, id DESC LIMIT %d OFFSET %d`, whereClause, size, offset)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events by class: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM app_event WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count events by class: %w", err)
	}
	return events, total, nil
}

// ListByTeam returns a team's events newest-first.
func (r *EventRepository) ListByTeam(ctx context.Context, teamID int64, since *time.Time) ([]models.Event, error) {
	where := []string{"team_id = $1"}
	args := []interface{}{teamID}
	if since != nil {
		where = append(where, fmt.Sprintf("time >= $%d", len(args)+1))
		args = append(args, *since)
	}
	query := fmt.Sprintf(`SELECT id, time, type, class_id, team_id, task_id, submission_id, actor_id, actor_role
FROM app_event WHERE %s ORDER BY time DESC, id DESC`, strings.Join(where, " AND "))
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events by team: %w", err)
	}
	return events, nil
}

// LastByTeamAndTypes returns the newest event of any of the given
// types for a team, or nil when none exists. State hydration reads
// the current flag value off this single row.
func (r *EventRepository) LastByTeamAndTypes(ctx context.Context, teamID int64, types []models.EventType, since *time.Time) (*models.Event, error) {
	where := []string{"team_id = $1", "type = ANY($2)"}
	args := []interface{}{teamID, pq.Array(eventTypeStrings(types))}
	if since != nil {
		where = append(where, fmt.Sprintf("time >= $%d", len(args)+1))
		args = append(args, *since)
	}
	query := fmt.Sprintf(`SELECT id, time, type, class_id, team_id, task_id, submission_id, actor_id, actor_role
FROM app_event WHERE %s ORDER BY time DESC, id DESC LIMIT 1`, strings.Join(where, " AND "))
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last event by team and types: %w", err)
	}
	return &event, nil
}

// LastByTeamActorAndTypes narrows LastByTeamAndTypes to one actor.
func (r *EventRepository) LastByTeamActorAndTypes(ctx context.Context, teamID, actorID int64, types []models.EventType, since *time.Time) (*models.Event, error) {
	where := []string{"team_id = $1", "actor_id = $2", "type = ANY($3)"}
	args := []interface{}{teamID, actorID, pq.Array(eventTypeStrings(types))}
	if since != nil {
		where = append(where, fmt.Sprintf("time >= $%d", len(args)+1))
		args = append(args, *since)
	}
	query := fmt.Sprintf(`SELECT id, time, type, class_id, team_id, task_id, submission_id, actor_id, actor_role
FROM app_event WHERE %s ORDER BY time DESC, id DESC LIMIT 1`, strings.Join(where, " AND "))
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last event by team, actor and types: %w", err)
	}
	return &event, nil
}

// DistinctActorsByTeamAndTypes lists every actor id that produced any
// of the given event types for a team. Presence rebuild filters the
// result down to actors whose newest event is a join.
func (r *EventRepository) DistinctActorsByTeamAndTypes(ctx context.Context, teamID int64, types []models.EventType, since *time.Time) ([]int64, error) {
	where := []string{"team_id = $1", "type = ANY($2)", "actor_id IS NOT NULL"}
	args := []interface{}{teamID, pq.Array(eventTypeStrings(types))}
	if since != nil {
		where = append(where, fmt.Sprintf("time >= $%d", len(args)+1))
		args = append(args, *since)
	}
	query := fmt.Sprintf("SELECT DISTINCT actor_id FROM app_event WHERE %s", strings.Join(where, " AND "))
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("distinct actors by team and types: %w", err)
	}
	return ids, nil
}

func eventTypeStrings(types []models.EventType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
