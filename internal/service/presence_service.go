package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

type rosterReader interface {
	FindClass(ctx context.Context, id int64) (*models.Class, error)
	FindTeam(ctx context.Context, id int64) (*models.Team, error)
	IsTeamMember(ctx context.Context, teamID, studentID int64) (bool, error)
	StudentTeamInClass(ctx context.Context, classID, studentID int64) (*int64, error)
	TaskInClass(ctx context.Context, classID, taskID int64) (bool, error)
}

type eventAppender interface {
	Append(ctx context.Context, event *models.Event) error
}

type classSession struct {
	mu       sync.Mutex
	students map[int64]struct{}
	curators map[int64]struct{}
}

// PresenceService is the process-wide registry of who is attached to
// which class and team. The in-memory tables are caches; the event
// log remains the durable record. Team membership of curators is
// lazily rehydrated from the log after a restart because the control
// state guards depend on it; class present-sets simply refill as
// clients reconnect.
type PresenceService struct {
	roster rosterReader
	events eventAppender
	log    eventRepository
	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	sessions     map[int64]*classSession
	curatorTeam  map[int64]int64
	teamCurators map[int64]map[int64]struct{}
	hydrated     map[int64]struct{}
}

// NewPresenceService constructs the registry.
func NewPresenceService(roster rosterReader, events eventAppender, log eventRepository, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{
		roster:       roster,
		events:       events,
		log:          log,
		logger:       logger,
		now:          time.Now,
		sessions:     make(map[int64]*classSession),
		curatorTeam:  make(map[int64]int64),
		teamCurators: make(map[int64]map[int64]struct{}),
		hydrated:     make(map[int64]struct{}),
	}
}

// JoinClass attaches a participant to a live class session.
func (s *PresenceService) JoinClass(ctx context.Context, classID, participantID int64, role models.Role) error {
	class, err := s.liveClass(ctx, classID)
	if err != nil {
		return err
	}

	var eventType models.EventType
	switch role {
	case models.RoleCurator:
		eventType = models.EventCuratorJoinedClass
	case models.RoleStudent, models.RoleElder:
		// A student must be assigned to a team in this class.
		teamID, err := s.roster.StudentTeamInClass(ctx, classID, participantID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student team")
		}
		if teamID == nil {
			return appErrors.Clone(appErrors.ErrNotAuthorized, "student is not assigned to any team in this class")
		}
		eventType = models.EventStudentJoinedClass
	default:
		return appErrors.Clone(appErrors.ErrNotAuthorized, "unknown participant role")
	}

	session := s.session(classID)
	session.mu.Lock()
	defer session.mu.Unlock()

	present := session.students
	if role == models.RoleCurator {
		present = session.curators
	}
	if _, ok := present[participantID]; ok {
		return appErrors.ErrAlreadyJoined
	}

	event := &models.Event{
		Type:      eventType,
		ClassID:   models.Int64Ptr(class.ID),
		ActorID:   models.Int64Ptr(participantID),
		ActorRole: models.RolePtr(role),
	}
	if err := s.events.Append(ctx, event); err != nil {
		return err
	}
	present[participantID] = struct{}{}

	s.logger.Info("participant joined class",
		zap.Int64("class_id", classID),
		zap.Int64("participant_id", participantID),
		zap.String("role", string(role)))
	return nil
}

// LeaveClass detaches a participant. Idempotent: leaving while not
// present is a no-op so duplicate disconnect signals emit exactly one
// event.
func (s *PresenceService) LeaveClass(ctx context.Context, classID, participantID int64, role models.Role) error {
	class, err := s.roster.FindClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	session := s.session(classID)
	session.mu.Lock()
	present := session.students
	eventType := models.EventStudentLeftClass
	if role == models.RoleCurator {
		present = session.curators
		eventType = models.EventCuratorLeftClass
	}
	if _, ok := present[participantID]; !ok {
		session.mu.Unlock()
		return nil
	}
	delete(present, participantID)
	empty := len(session.students) == 0 && len(session.curators) == 0
	session.mu.Unlock()

	event := &models.Event{
		Type:      eventType,
		ClassID:   models.Int64Ptr(classID),
		ActorID:   models.Int64Ptr(participantID),
		ActorRole: models.RolePtr(role),
	}
	if err := s.events.Append(ctx, event); err != nil {
		return err
	}

	if empty {
		s.archiveSession(classID)
	}
	return nil
}

// JoinTeam attaches a curator to a team. A curator may be joined to
// at most one team system-wide; a conflicting membership is NOT
// auto-released, the caller must leave first.
func (s *PresenceService) JoinTeam(ctx context.Context, teamID, curatorID int64) error {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.hydrateTeam(ctx, team, class); err != nil {
		return err
	}

	// Check and reserve under one lock acquisition: a concurrent join
	// for the same curator must observe the reservation.
	s.mu.Lock()
	if current, ok := s.curatorTeam[curatorID]; ok {
		s.mu.Unlock()
		if current == teamID {
			return appErrors.ErrAlreadyJoined
		}
		return appErrors.ErrAlreadyInAnotherTeam
	}
	s.curatorTeam[curatorID] = teamID
	if s.teamCurators[teamID] == nil {
		s.teamCurators[teamID] = make(map[int64]struct{})
	}
	s.teamCurators[teamID][curatorID] = struct{}{}
	s.mu.Unlock()

	event := &models.Event{
		Type:      models.EventCuratorJoinedTeam,
		ClassID:   models.Int64Ptr(team.ClassID),
		TeamID:    models.Int64Ptr(teamID),
		ActorID:   models.Int64Ptr(curatorID),
		ActorRole: models.RolePtr(models.RoleCurator),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.mu.Lock()
		if s.curatorTeam[curatorID] == teamID {
			delete(s.curatorTeam, curatorID)
			delete(s.teamCurators[teamID], curatorID)
		}
		s.mu.Unlock()
		return err
	}

	s.logger.Info("curator joined team", zap.Int64("team_id", teamID), zap.Int64("curator_id", curatorID))
	return nil
}

// LeaveTeam detaches a curator from a team. Idempotent.
func (s *PresenceService) LeaveTeam(ctx context.Context, teamID, curatorID int64) error {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if err := s.hydrateTeam(ctx, team, class); err != nil {
		return err
	}

	s.mu.Lock()
	current, ok := s.curatorTeam[curatorID]
	if !ok || current != teamID {
		s.mu.Unlock()
		return nil
	}
	delete(s.curatorTeam, curatorID)
	delete(s.teamCurators[teamID], curatorID)
	s.mu.Unlock()

	event := &models.Event{
		Type:      models.EventCuratorLeftTeam,
		ClassID:   models.Int64Ptr(team.ClassID),
		TeamID:    models.Int64Ptr(teamID),
		ActorID:   models.Int64Ptr(curatorID),
		ActorRole: models.RolePtr(models.RoleCurator),
	}
	return s.events.Append(ctx, event)
}

// Disconnect releases every presence entry the participant holds, as
// if the client had called leave explicitly. Duplicate disconnect
// signals are harmless.
func (s *PresenceService) Disconnect(ctx context.Context, participantID int64, role models.Role) {
	if role == models.RoleCurator {
		s.mu.Lock()
		teamID, joined := s.curatorTeam[participantID]
		s.mu.Unlock()
		if joined {
			if err := s.LeaveTeam(ctx, teamID, participantID); err != nil {
				s.logger.Warn("disconnect team leave failed",
					zap.Int64("team_id", teamID), zap.Int64("participant_id", participantID), zap.Error(err))
			}
		}
	}

	s.mu.Lock()
	classIDs := make([]int64, 0, len(s.sessions))
	for classID, session := range s.sessions {
		session.mu.Lock()
		_, asStudent := session.students[participantID]
		_, asCurator := session.curators[participantID]
		session.mu.Unlock()
		if (role == models.RoleCurator && asCurator) || (role != models.RoleCurator && asStudent) {
			classIDs = append(classIDs, classID)
		}
	}
	s.mu.Unlock()

	for _, classID := range classIDs {
		if err := s.LeaveClass(ctx, classID, participantID, role); err != nil {
			s.logger.Warn("disconnect class leave failed",
				zap.Int64("class_id", classID), zap.Int64("participant_id", participantID), zap.Error(err))
		}
	}
}

// IsCuratorJoined reports whether the curator is currently joined to
// the team.
func (s *PresenceService) IsCuratorJoined(ctx context.Context, teamID, curatorID int64) (bool, error) {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return false, err
	}
	if err := s.hydrateTeam(ctx, team, class); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.teamCurators[teamID][curatorID]
	return ok, nil
}

// JoinedCurators lists curator ids currently joined to the team.
func (s *PresenceService) JoinedCurators(ctx context.Context, teamID int64) ([]int64, error) {
	team, class, err := s.liveTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrateTeam(ctx, team, class); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.teamCurators[teamID]))
	for id := range s.teamCurators[teamID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *PresenceService) session(classID int64) *classSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[classID]
	if !ok {
		session = &classSession{
			students: make(map[int64]struct{}),
			curators: make(map[int64]struct{}),
		}
		s.sessions[classID] = session
	}
	return session
}

func (s *PresenceService) archiveSession(classID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, classID)
	s.logger.Info("class session archived", zap.Int64("class_id", classID))
}

func (s *PresenceService) liveClass(ctx context.Context, classID int64) (*models.Class, error) {
	class, err := s.roster.FindClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !class.InSession(s.now()) {
		return nil, appErrors.ErrNotInSession
	}
	return class, nil
}

func (s *PresenceService) liveTeam(ctx context.Context, teamID int64) (*models.Team, *models.Class, error) {
	team, err := s.roster.FindTeam(ctx, teamID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if team == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
	}
	class, err := s.liveClass(ctx, team.ClassID)
	if err != nil {
		return nil, nil, err
	}
	return team, class, nil
}

// hydrateTeam rebuilds a team's joined-curator set from the event
// log on first reference after a restart, scoped to the live session
// window. A curator counts as joined when their newest join/leave
// event inside the window is a join.
func (s *PresenceService) hydrateTeam(ctx context.Context, team *models.Team, class *models.Class) error {
	s.mu.Lock()
	if _, done := s.hydrated[team.ID]; done {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	types := []models.EventType{models.EventCuratorJoinedTeam, models.EventCuratorLeftTeam}
	since := class.StartTime
	ids, err := s.log.DistinctActorsByTeamAndTypes(ctx, team.ID, types, &since)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rebuild team presence")
	}

	joined := make([]int64, 0, len(ids))
	for _, id := range ids {
		last, err := s.log.LastByTeamActorAndTypes(ctx, team.ID, id, types, &since)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rebuild team presence")
		}
		if last != nil && last.Type == models.EventCuratorJoinedTeam {
			joined = append(joined, id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.hydrated[team.ID]; done {
		return nil
	}
	if s.teamCurators[team.ID] == nil {
		s.teamCurators[team.ID] = make(map[int64]struct{})
	}
	for _, id := range joined {
		// An in-memory membership elsewhere wins over a stale log row.
		if _, busy := s.curatorTeam[id]; busy {
			continue
		}
		s.curatorTeam[id] = team.ID
		s.teamCurators[team.ID][id] = struct{}{}
	}
	s.hydrated[team.ID] = struct{}{}
	return nil
}
