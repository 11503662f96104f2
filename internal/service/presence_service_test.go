package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

type rosterStub struct {
	classes     map[int64]*models.Class
	teams       map[int64]*models.Team
	studentTeam map[int64]int64
	classTasks  map[int64]map[int64]bool
	err         error
}

func newRosterStub() *rosterStub {
	return &rosterStub{
		classes:     map[int64]*models.Class{},
		teams:       map[int64]*models.Team{},
		studentTeam: map[int64]int64{},
		classTasks:  map[int64]map[int64]bool{},
	}
}

func (r *rosterStub) FindClass(ctx context.Context, id int64) (*models.Class, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.classes[id], nil
}

func (r *rosterStub) FindTeam(ctx context.Context, id int64) (*models.Team, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.teams[id], nil
}

func (r *rosterStub) IsTeamMember(ctx context.Context, teamID, studentID int64) (bool, error) {
	return r.studentTeam[studentID] == teamID, nil
}

func (r *rosterStub) StudentTeamInClass(ctx context.Context, classID, studentID int64) (*int64, error) {
	teamID, ok := r.studentTeam[studentID]
	if !ok {
		return nil, nil
	}
	team, ok := r.teams[teamID]
	if !ok || team.ClassID != classID {
		return nil, nil
	}
	return &teamID, nil
}

func (r *rosterStub) TaskInClass(ctx context.Context, classID, taskID int64) (bool, error) {
	return r.classTasks[classID][taskID], nil
}

// eventLogStub backs both the append side and the query side of the
// event log in service tests.
type eventLogStub struct {
	mu     sync.Mutex
	nextID int64
	events []models.Event
	err    error
}

func (l *eventLogStub) Append(ctx context.Context, event *models.Event) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	event.ID = l.nextID
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	l.events = append(l.events, *event)
	return nil
}

func (l *eventLogStub) ListByClass(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []models.Event
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if e.ClassID == nil || *e.ClassID != filter.ClassID {
			continue
		}
		if filter.Since != nil && e.Time.Before(*filter.Since) {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		if offset >= total {
			return nil, total, nil
		}
		end := offset + filter.PageSize
		if end > total {
			end = total
		}
		matched = matched[offset:end]
	}
	return matched, total, nil
}

func (l *eventLogStub) ListByTeam(ctx context.Context, teamID int64, since *time.Time) ([]models.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []models.Event
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if e.TeamID == nil || *e.TeamID != teamID {
			continue
		}
		if since != nil && e.Time.Before(*since) {
			continue
		}
		matched = append(matched, e)
	}
	return matched, nil
}

func (l *eventLogStub) LastByTeamAndTypes(ctx context.Context, teamID int64, types []models.EventType, since *time.Time) (*models.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if e.TeamID == nil || *e.TeamID != teamID || !typeIn(e.Type, types) {
			continue
		}
		if since != nil && e.Time.Before(*since) {
			continue
		}
		return &e, nil
	}
	return nil, nil
}

func (l *eventLogStub) LastByTeamActorAndTypes(ctx context.Context, teamID, actorID int64, types []models.EventType, since *time.Time) (*models.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if e.TeamID == nil || *e.TeamID != teamID || !typeIn(e.Type, types) {
			continue
		}
		if e.ActorID == nil || *e.ActorID != actorID {
			continue
		}
		if since != nil && e.Time.Before(*since) {
			continue
		}
		return &e, nil
	}
	return nil, nil
}

func (l *eventLogStub) DistinctActorsByTeamAndTypes(ctx context.Context, teamID int64, types []models.EventType, since *time.Time) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := map[int64]struct{}{}
	var ids []int64
	for _, e := range l.events {
		if e.TeamID == nil || *e.TeamID != teamID || !typeIn(e.Type, types) || e.ActorID == nil {
			continue
		}
		if since != nil && e.Time.Before(*since) {
			continue
		}
		if _, ok := seen[*e.ActorID]; ok {
			continue
		}
		seen[*e.ActorID] = struct{}{}
		ids = append(ids, *e.ActorID)
	}
	return ids, nil
}

func (l *eventLogStub) ofType(t models.EventType) []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func typeIn(t models.EventType, types []models.EventType) bool {
	for _, candidate := range types {
		if t == candidate {
			return true
		}
	}
	return false
}

func liveClassFixture(id int64) *models.Class {
	now := time.Now().UTC()
	return &models.Class{
		ID:        id,
		GroupID:   1,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}
}

func newPresenceFixture() (*PresenceService, *rosterStub, *eventLogStub) {
	roster := newRosterStub()
	log := &eventLogStub{}
	svc := NewPresenceService(roster, log, log, nil)
	return svc, roster, log
}

func TestJoinClassStudentWithoutTeam(t *testing.T) {
	svc, roster, _ := newPresenceFixture()
	roster.classes[1] = liveClassFixture(1)

	err := svc.JoinClass(context.Background(), 1, 10, models.RoleStudent)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotAuthorized.Code, appErr.Code)
}

func TestJoinClassDuplicate(t *testing.T) {
	svc, roster, log := newPresenceFixture()
	roster.classes[1] = liveClassFixture(1)
	roster.teams[5] = &models.Team{ID: 5, ClassID: 1, ElderID: 10}
	roster.studentTeam[10] = 5

	require.NoError(t, svc.JoinClass(context.Background(), 1, 10, models.RoleStudent))
	err := svc.JoinClass(context.Background(), 1, 10, models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyJoined.Code, appErrors.FromError(err).Code)
	assert.Len(t, log.ofType(models.EventStudentJoinedClass), 1)
}

func TestJoinClassOutsideSessionWindow(t *testing.T) {
	svc, roster, _ := newPresenceFixture()
	class := liveClassFixture(1)
	class.StartTime = time.Now().Add(-3 * time.Hour)
	class.EndTime = time.Now().Add(-2 * time.Hour)
	roster.classes[1] = class

	err := svc.JoinClass(context.Background(), 1, 10, models.RoleCurator)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotInSession.Code, appErrors.FromError(err).Code)
}

func TestCuratorJoinsAtMostOneTeam(t *testing.T) {
	svc, roster, log := newPresenceFixture()
	roster.classes[1] = liveClassFixture(1)
	roster.teams[5] = &models.Team{ID: 5, ClassID: 1, ElderID: 10}
	roster.teams[6] = &models.Team{ID: 6, ClassID: 1, ElderID: 11}
	ctx := context.Background()

	require.NoError(t, svc.JoinTeam(ctx, 5, 100))

	err := svc.JoinTeam(ctx, 6, 100)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyInAnotherTeam.Code, appErrors.FromError(err).Code)

	err = svc.JoinTeam(ctx, 5, 100)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyJoined.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.LeaveTeam(ctx, 5, 100))
	require.NoError(t, svc.JoinTeam(ctx, 6, 100))

	assert.Len(t, log.ofType(models.EventCuratorJoinedTeam), 2)
	assert.Len(t, log.ofType(models.EventCuratorLeftTeam), 1)
}

// gatedAppender parks every append until released, holding callers at
// the point where the membership decision is already made.
type gatedAppender struct {
	log     *eventLogStub
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAppender) Append(ctx context.Context, event *models.Event) error {
	g.entered <- struct{}{}
	<-g.release
	return g.log.Append(ctx, event)
}

func TestConcurrentTeamJoinsKeepSingleMembership(t *testing.T) {
	roster := newRosterStub()
	roster.classes[1] = liveClassFixture(1)
	roster.teams[5] = &models.Team{ID: 5, ClassID: 1, ElderID: 10}
	roster.teams[6] = &models.Team{ID: 6, ClassID: 1, ElderID: 11}
	log := &eventLogStub{}
	gate := &gatedAppender{log: log, entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := NewPresenceService(roster, gate, log, nil)
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- svc.JoinTeam(ctx, 5, 100) }()
	go func() { errs <- svc.JoinTeam(ctx, 6, 100) }()

	// One join reaches the append; the other must already be rejected
	// while the winner's event is still in flight.
	<-gate.entered
	first := <-errs
	require.Error(t, first)
	assert.Equal(t, appErrors.ErrAlreadyInAnotherTeam.Code, appErrors.FromError(first).Code)

	close(gate.release)
	require.NoError(t, <-errs)

	joined5, err := svc.IsCuratorJoined(ctx, 5, 100)
	require.NoError(t, err)
	joined6, err := svc.IsCuratorJoined(ctx, 6, 100)
	require.NoError(t, err)
	assert.True(t, joined5 != joined6, "curator must hold exactly one membership")
	assert.Len(t, log.ofType(models.EventCuratorJoinedTeam), 1)

	// The surviving membership still releases normally.
	winner := int64(5)
	if joined6 {
		winner = 6
	}
	require.NoError(t, svc.LeaveTeam(ctx, winner, 100))
	assert.Len(t, log.ofType(models.EventCuratorLeftTeam), 1)
}

func TestJoinTeamRollsBackWhenAppendFails(t *testing.T) {
	svc, roster, log := newPresenceFixture()
	roster.classes[1] = liveClassFixture(1)
	roster.teams[5] = &models.Team{ID: 5, ClassID: 1, ElderID: 10}
	ctx := context.Background()

	log.err = assert.AnError
	require.Error(t, svc.JoinTeam(ctx, 5, 100))

	log.err = nil
	joined, err := svc.IsCuratorJoined(ctx, 5, 100)
	require.NoError(t, err)
	assert.False(t, joined)

	// The slot is free again.
	require.NoError(t, svc.JoinTeam(ctx, 5, 100))
}

func TestLeaveClassIdempotent(t *testing.T) {
	svc, roster, log := newPresenceFixture()
	roster.classes[1] = liveClassFixture(1)
	ctx := context.Background()

	require.NoError(t, svc.JoinClass(ctx, 1, 100, models.RoleCurator))
	require.NoError(t, svc.LeaveClass(ctx, 1, 100, models.RoleCurator))
	require.NoError(t, svc.LeaveClass(ctx, 1, 100, models.RoleCurator))

	assert.Len(t, log.ofType(models.EventCuratorLeftClass), 1)
}

func TestLeaveTeamIdempotent(t *testing.T) {
	svc, roster, log := newPresenceFixture()
	roster.classes[1] = liveClassFixture(1)
	roster.teams[5] = &models.Team{ID: 5, ClassID: 1, ElderID: 10}
	ctx := context.Background()

	require.NoError(t, svc.JoinTeam(ctx, 5, 100))
	require.NoError(t, svc.LeaveTeam(ctx, 5, 100))
	require.NoError(t, svc.LeaveTeam(ctx, 5, 100))

	assert.Len(t, log.ofType(models.EventCuratorLeftTeam), 1)
}

func TestDisconnectReleasesEverything(t *testing.T) {
	svc, roster, log := newPresenceFixture()
	roster.classes[1] = liveClassFixture(1)
	roster.teams[5] = &models.Team{ID: 5, ClassID: 1, ElderID: 10}
	ctx := context.Background()

	require.NoError(t, svc.JoinClass(ctx, 1, 100, models.RoleCurator))
	require.NoError(t, svc.JoinTeam(ctx, 5, 100))

	svc.Disconnect(ctx, 100, models.RoleCurator)
	assert.Len(t, log.ofType(models.EventCuratorLeftTeam), 1)
	assert.Len(t, log.ofType(models.EventCuratorLeftClass), 1)

	// Duplicate disconnect signals emit nothing further.
	svc.Disconnect(ctx, 100, models.RoleCurator)
	assert.Len(t, log.ofType(models.EventCuratorLeftTeam), 1)
	assert.Len(t, log.ofType(models.EventCuratorLeftClass), 1)
}

func TestTeamMembershipRebuiltFromLog(t *testing.T) {
	roster := newRosterStub()
	roster.classes[1] = liveClassFixture(1)
	roster.teams[5] = &models.Team{ID: 5, ClassID: 1, ElderID: 10}
	log := &eventLogStub{}
	ctx := context.Background()

	// A previous process recorded one curator joining and another
	// joining then leaving inside the current session window.
	seed := NewPresenceService(roster, log, log, nil)
	require.NoError(t, seed.JoinTeam(ctx, 5, 100))
	require.NoError(t, seed.JoinTeam(ctx, 5, 101))
	require.NoError(t, seed.LeaveTeam(ctx, 5, 101))

	svc := NewPresenceService(roster, log, log, nil)
	joined, err := svc.IsCuratorJoined(ctx, 5, 100)
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = svc.IsCuratorJoined(ctx, 5, 101)
	require.NoError(t, err)
	assert.False(t, joined)

	curators, err := svc.JoinedCurators(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, curators)
}
