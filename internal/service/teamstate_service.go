package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

type curatorMembership interface {
	IsCuratorJoined(ctx context.Context, teamID, curatorID int64) (bool, error)
}

// teamControl is one team's mutable flags. sessionStart records which
// session window the flags were hydrated for; a new window resets
// them to defaults on first reference (lazy reset).
type teamControl struct {
	mu             sync.Mutex
	blocked        bool
	handRaised     bool
	selectedTaskID *int64
	taskSelectedAt *time.Time
	sessionStart   time.Time
	hydrated       bool
}

// TeamStateService owns the blocked / hand-raised / selected-task
// flags governing a team during a live class. Three independent
// sub-machines behind one per-team mutex; every transition appends
// an event. Re-sending an already-true value is not an error and
// re-emits the event.
type TeamStateService struct {
	roster   rosterReader
	events   eventAppender
	log      eventRepository
	presence curatorMembership
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	state map[int64]*teamControl
}

// NewTeamStateService constructs the service.
func NewTeamStateService(roster rosterReader, events eventAppender, log eventRepository, presence curatorMembership, logger *zap.Logger) *TeamStateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamStateService{
		roster:   roster,
		events:   events,
		log:      log,
		presence: presence,
		logger:   logger,
		now:      time.Now,
		state:    make(map[int64]*teamControl),
	}
}

// ToggleBlock sets the submission block flag. Only a curator joined
// to the team may flip it in either direction.
func (s *TeamStateService) ToggleBlock(ctx context.Context, teamID int64, blocked bool, curatorID int64) error {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return err
	}
	joined, err := s.presence.IsCuratorJoined(ctx, teamID, curatorID)
	if err != nil {
		return err
	}
	if !joined {
		return appErrors.Clone(appErrors.ErrNotAuthorized, "curator is not joined to this team")
	}

	control, err := s.control(ctx, team, class)
	if err != nil {
		return err
	}
	control.mu.Lock()
	defer control.mu.Unlock()

	eventType := models.EventCuratorUnblockedTeam
	if blocked {
		eventType = models.EventCuratorBlockedTeam
	}
	event := &models.Event{
		Type:      eventType,
		ClassID:   models.Int64Ptr(team.ClassID),
		TeamID:    models.Int64Ptr(teamID),
		ActorID:   models.Int64Ptr(curatorID),
		ActorRole: models.RolePtr(models.RoleCurator),
	}
	if err := s.events.Append(ctx, event); err != nil {
		return err
	}
	control.blocked = blocked
	return nil
}

// ToggleHand flips the team's raised hand. Raising is elder-only;
// lowering may also be done by a joined curator (acknowledging).
func (s *TeamStateService) ToggleHand(ctx context.Context, teamID, actorID int64) error {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return err
	}
	control, err := s.control(ctx, team, class)
	if err != nil {
		return err
	}
	control.mu.Lock()
	defer control.mu.Unlock()

	isElder := team.ElderID == actorID
	actorRole := models.RoleElder
	if !control.handRaised {
		if !isElder {
			return appErrors.Clone(appErrors.ErrNotElder, "only the team elder can raise the hand")
		}
	} else if !isElder {
		joined, err := s.presence.IsCuratorJoined(ctx, teamID, actorID)
		if err != nil {
			return err
		}
		if !joined {
			return appErrors.Clone(appErrors.ErrNotAuthorized, "only the elder or a joined curator can lower the hand")
		}
		actorRole = models.RoleCurator
	}

	raised := !control.handRaised
	eventType := models.EventTeamLoweredHand
	if raised {
		eventType = models.EventTeamRaisedHand
	}
	event := &models.Event{
		Type:      eventType,
		ClassID:   models.Int64Ptr(team.ClassID),
		TeamID:    models.Int64Ptr(teamID),
		ActorID:   models.Int64Ptr(actorID),
		ActorRole: models.RolePtr(actorRole),
	}
	if err := s.events.Append(ctx, event); err != nil {
		return err
	}
	control.handRaised = raised
	return nil
}

// SelectTask picks the team's active task. Elder-only; overwrites any
// previous selection, history lives only in the event log.
func (s *TeamStateService) SelectTask(ctx context.Context, teamID, taskID, actorID int64) error {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.ElderID != actorID {
		return appErrors.Clone(appErrors.ErrNotElder, "only the team elder can select tasks")
	}
	assigned, err := s.roster.TaskInClass(ctx, team.ClassID, taskID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check task binding")
	}
	if !assigned {
		return appErrors.Clone(appErrors.ErrNotFound, "task is not assigned to this class")
	}

	control, err := s.control(ctx, team, class)
	if err != nil {
		return err
	}
	control.mu.Lock()
	defer control.mu.Unlock()

	event := &models.Event{
		Type:      models.EventTeamBeganTask,
		ClassID:   models.Int64Ptr(team.ClassID),
		TeamID:    models.Int64Ptr(teamID),
		TaskID:    models.Int64Ptr(taskID),
		ActorID:   models.Int64Ptr(actorID),
		ActorRole: models.RolePtr(models.RoleElder),
	}
	if err := s.events.Append(ctx, event); err != nil {
		return err
	}
	control.selectedTaskID = models.Int64Ptr(taskID)
	selectedAt := event.Time
	control.taskSelectedAt = &selectedAt
	return nil
}

// Status returns the team's current control-state snapshot.
func (s *TeamStateService) Status(ctx context.Context, teamID int64) (*models.TeamStatus, error) {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	control, err := s.control(ctx, team, class)
	if err != nil {
		return nil, err
	}
	control.mu.Lock()
	defer control.mu.Unlock()
	status := &models.TeamStatus{
		TeamID:     teamID,
		IsBlocked:  control.blocked,
		HandRaised: control.handRaised,
	}
	if control.selectedTaskID != nil {
		status.SelectedTaskID = models.Int64Ptr(*control.selectedTaskID)
	}
	return status, nil
}

// IsBlocked is the submission gate's view of the block flag.
func (s *TeamStateService) IsBlocked(ctx context.Context, teamID int64) (bool, error) {
	status, err := s.Status(ctx, teamID)
	if err != nil {
		return false, err
	}
	return status.IsBlocked, nil
}

// TaskSelectedAt reports when the current task selection happened,
// used to measure submission completion time.
func (s *TeamStateService) TaskSelectedAt(ctx context.Context, teamID int64) (*time.Time, error) {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	control, err := s.control(ctx, team, class)
	if err != nil {
		return nil, err
	}
	control.mu.Lock()
	defer control.mu.Unlock()
	if control.taskSelectedAt == nil {
		return nil, nil
	}
	at := *control.taskSelectedAt
	return &at, nil
}

func (s *TeamStateService) liveTeam(ctx context.Context, teamID int64) (*models.Team, *models.Class, error) {
	team, err := s.roster.FindTeam(ctx, teamID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if team == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
	}
	class, err := s.roster.FindClass(ctx, team.ClassID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !class.InSession(s.now()) {
		return nil, nil, appErrors.ErrNotInSession
	}
	return team, class, nil
}

// control returns the team's flag struct, hydrating it from the event
// log when first referenced, or re-hydrating with defaults when a new
// session window has started since the last hydration.
func (s *TeamStateService) control(ctx context.Context, team *models.Team, class *models.Class) (*teamControl, error) {
	s.mu.Lock()
	control, ok := s.state[team.ID]
	if !ok {
		control = &teamControl{}
		s.state[team.ID] = control
	}
	s.mu.Unlock()

	control.mu.Lock()
	fresh := control.hydrated && control.sessionStart.Equal(class.StartTime)
	control.mu.Unlock()
	if fresh {
		return control, nil
	}

	since := class.StartTime
	lastBlock, err := s.log.LastByTeamAndTypes(ctx, team.ID,
		[]models.EventType{models.EventCuratorBlockedTeam, models.EventCuratorUnblockedTeam}, &since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hydrate block flag")
	}
	lastHand, err := s.log.LastByTeamAndTypes(ctx, team.ID,
		[]models.EventType{models.EventTeamRaisedHand, models.EventTeamLoweredHand}, &since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hydrate hand flag")
	}
	lastTask, err := s.log.LastByTeamAndTypes(ctx, team.ID,
		[]models.EventType{models.EventTeamBeganTask}, &since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hydrate task selection")
	}

	control.mu.Lock()
	defer control.mu.Unlock()
	if control.hydrated && control.sessionStart.Equal(class.StartTime) {
		return control, nil
	}
	control.blocked = lastBlock != nil && lastBlock.Type == models.EventCuratorBlockedTeam
	control.handRaised = lastHand != nil && lastHand.Type == models.EventTeamRaisedHand
	control.selectedTaskID = nil
	control.taskSelectedAt = nil
	if lastTask != nil && lastTask.TaskID != nil {
		control.selectedTaskID = models.Int64Ptr(*lastTask.TaskID)
		at := lastTask.Time
		control.taskSelectedAt = &at
	}
	control.sessionStart = class.StartTime
	control.hydrated = true
	return control, nil
}
