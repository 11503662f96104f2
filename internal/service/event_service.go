package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/pkg/bus"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

type eventRepository interface {
	Append(ctx context.Context, event *models.Event) error
	ListByClass(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	ListByTeam(ctx context.Context, teamID int64, since *time.Time) ([]models.Event, error)
	LastByTeamAndTypes(ctx context.Context, teamID int64, types []models.EventType, since *time.Time) (*models.Event, error)
	LastByTeamActorAndTypes(ctx context.Context, teamID, actorID int64, types []models.EventType, since *time.Time) (*models.Event, error)
	DistinctActorsByTeamAndTypes(ctx context.Context, teamID int64, types []models.EventType, since *time.Time) ([]int64, error)
}

// EventService appends facts to the durable log and fans them out on
// the broadcast fabric. The append is the single ordering point for a
// team's (and class's) stream.
type EventService struct {
	repo    eventRepository
	bus     bus.Bus
	logger  *zap.Logger
	metrics *MetricsService
}

// NewEventService constructs the service.
func NewEventService(repo eventRepository, b bus.Bus, metrics *MetricsService, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, bus: b, metrics: metrics, logger: logger}
}

// Append persists the event and publishes it to the class topic and,
// when team-scoped, the team topic. Durability comes first: a failed
// broadcast is logged, never rolled back.
func (s *EventService) Append(ctx context.Context, event *models.Event) error {
	if err := s.repo.Append(ctx, event); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append event")
	}
	if s.metrics != nil {
		s.metrics.ObserveEventAppended(string(event.Type))
	}

	item := dto.EventItemFromModel(event)
	frame := dto.ServerFrame{Kind: dto.FrameEvent, Payload: item}
	if event.ClassID != nil {
		if err := s.bus.Publish(ctx, bus.ClassEventsTopic(*event.ClassID), frame); err != nil {
			s.logger.Warn("class event broadcast failed", zap.Int64("class_id", *event.ClassID), zap.Error(err))
		}
	}
	if event.TeamID != nil {
		if err := s.bus.Publish(ctx, bus.TeamEventsTopic(*event.TeamID), frame); err != nil {
			s.logger.Warn("team event broadcast failed", zap.Int64("team_id", *event.TeamID), zap.Error(err))
		}
	}
	return nil
}

// History returns a class's events newest-first, paginated.
func (s *EventService) History(ctx context.Context, classID int64, page, pageSize int) ([]dto.EventItem, *models.Pagination, error) {
	filter := models.EventFilter{ClassID: classID, Page: page, PageSize: pageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	events, total, err := s.repo.ListByClass(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	items := make([]dto.EventItem, len(events))
	for i := range events {
		items[i] = dto.EventItemFromModel(&events[i])
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return items, pagination, nil
}

// HistorySince returns every event of a class from the given instant,
// newest-first. The log is read page by page until the window is
// exhausted; report export consumes this.
func (s *EventService) HistorySince(ctx context.Context, classID int64, since time.Time) ([]models.Event, error) {
	const pageSize = 500
	var all []models.Event
	for page := 1; ; page++ {
		filter := models.EventFilter{ClassID: classID, Since: &since, Page: page, PageSize: pageSize}
		events, total, err := s.repo.ListByClass(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
		}
		all = append(all, events...)
		if len(events) < pageSize || len(all) >= total {
			break
		}
	}
	return all, nil
}
