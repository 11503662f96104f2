package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/pkg/bus"
)

type teamAreas struct {
	mu    sync.Mutex
	areas map[int64]*models.CodeArea
}

// syncCollection buffers peer responses for one requester until the
// collection window closes. One-shot: late responses only reach the
// requester as ordinary code-change broadcasts afterwards.
type syncCollection struct {
	teamID      int64
	requesterID int64
	responses   map[int64]dto.SyncResponseMessage
	timer       *time.Timer
	deliver     func(dto.SyncSnapshot)
}

// CodeSyncService owns the per-team arena of code areas and the
// late-joiner recovery protocol. There is no central document: each
// area is authoritative only for its owner and is replaced wholesale
// by the owner's publishes (last writer wins per participant).
type CodeSyncService struct {
	bus     bus.Bus
	logger  *zap.Logger
	metrics *MetricsService
	window  time.Duration

	mu      sync.Mutex
	teams   map[int64]*teamAreas
	pending map[int64]*syncCollection
}

// NewCodeSyncService constructs the synchronizer. window is the
// collection interval late joiners wait for peer responses.
func NewCodeSyncService(b bus.Bus, window time.Duration, metrics *MetricsService, logger *zap.Logger) *CodeSyncService {
	if window <= 0 {
		window = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeSyncService{
		bus:     b,
		logger:  logger,
		metrics: metrics,
		window:  window,
		teams:   make(map[int64]*teamAreas),
		pending: make(map[int64]*syncCollection),
	}
}

// PublishFullCode replaces the caller's own area and broadcasts the
// full document to every subscriber of the team's code topic.
func (s *CodeSyncService) PublishFullCode(ctx context.Context, teamID, authorID int64, role models.Role, code string) error {
	s.upsertArea(teamID, authorID, role, code)

	msg := dto.CodeChangeMessage{TeamID: teamID, AuthorID: authorID, AuthorRole: role, Code: code}
	frame := dto.ServerFrame{Kind: dto.FrameCodeChange, Payload: msg}
	if err := s.bus.Publish(ctx, bus.TeamCodeTopic(teamID), frame); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveBusPublish()
	}
	return nil
}

// ApplyRemoteCode records a code change that originated on another
// gateway instance so the local arena stays current.
func (s *CodeSyncService) ApplyRemoteCode(msg dto.CodeChangeMessage) {
	s.upsertArea(msg.TeamID, msg.AuthorID, msg.AuthorRole, msg.Code)
}

// RequestSync broadcasts a sync request on the team topic and opens
// the requester's one-shot collection window. deliver is invoked with
// the materialized snapshot when the window closes; it is never
// invoked after CancelSync.
func (s *CodeSyncService) RequestSync(ctx context.Context, teamID, requesterID int64, deliver func(dto.SyncSnapshot)) error {
	collection := &syncCollection{
		teamID:      teamID,
		requesterID: requesterID,
		responses:   make(map[int64]dto.SyncResponseMessage),
		deliver:     deliver,
	}

	// The window must be open before the request goes out: a peer on
	// the same instance may respond before Publish returns.
	s.mu.Lock()
	if previous, ok := s.pending[requesterID]; ok {
		previous.timer.Stop()
	}
	collection.timer = time.AfterFunc(s.window, func() { s.closeWindow(collection) })
	s.pending[requesterID] = collection
	s.mu.Unlock()

	msg := dto.SyncRequestMessage{TeamID: teamID, RequesterID: requesterID}
	frame := dto.ServerFrame{Kind: dto.FrameSyncRequest, Payload: msg}
	if err := s.bus.Publish(ctx, bus.TeamSyncRequestTopic(teamID), frame); err != nil {
		s.mu.Lock()
		if s.pending[requesterID] == collection {
			delete(s.pending, requesterID)
		}
		s.mu.Unlock()
		collection.timer.Stop()
		return err
	}
	return nil
}

// RespondToSync answers a peer's sync request on behalf of the given
// locally connected participants: each one with a current area (other
// than the requester) publishes it on the response topic.
func (s *CodeSyncService) RespondToSync(ctx context.Context, teamID, requesterID int64, localParticipants []int64) {
	team := s.team(teamID)
	team.mu.Lock()
	responses := make([]dto.SyncResponseMessage, 0, len(localParticipants))
	for _, id := range localParticipants {
		if id == requesterID {
			continue
		}
		area, ok := team.areas[id]
		if !ok {
			continue
		}
		responses = append(responses, dto.SyncResponseMessage{
			TeamID:      teamID,
			FromID:      area.OwnerID,
			FromRole:    area.OwnerRole,
			RequesterID: requesterID,
			Code:        area.Content,
		})
	}
	team.mu.Unlock()

	for _, resp := range responses {
		frame := dto.ServerFrame{Kind: dto.FrameSyncResponse, Payload: resp}
		if err := s.bus.Publish(ctx, bus.TeamSyncResponseTopic(teamID), frame); err != nil {
			s.logger.Warn("sync response publish failed",
				zap.Int64("team_id", teamID), zap.Int64("from", resp.FromID), zap.Error(err))
		}
	}
}

// HandleSyncResponse buffers a response for a local requester's open
// window and keeps the arena current for the responder's area.
// Responses for requesters without an open window are ignored — the
// window is a bootstrap, not a standing reconciliation loop.
func (s *CodeSyncService) HandleSyncResponse(msg dto.SyncResponseMessage) {
	s.upsertArea(msg.TeamID, msg.FromID, msg.FromRole, msg.Code)

	s.mu.Lock()
	collection, ok := s.pending[msg.RequesterID]
	if !ok || collection.teamID != msg.TeamID {
		s.mu.Unlock()
		return
	}
	if msg.FromID != msg.RequesterID {
		collection.responses[msg.FromID] = msg
	}
	s.mu.Unlock()
}

// CancelSync drops the requester's open window, if any. Called when
// the requester disconnects before the window elapses.
func (s *CodeSyncService) CancelSync(requesterID int64) {
	s.mu.Lock()
	collection, ok := s.pending[requesterID]
	if ok {
		delete(s.pending, requesterID)
	}
	s.mu.Unlock()
	if ok {
		collection.timer.Stop()
	}
}

// Area returns a copy of one participant's area, or nil when the
// participant has never published in this team.
func (s *CodeSyncService) Area(teamID, participantID int64) *models.CodeArea {
	team := s.team(teamID)
	team.mu.Lock()
	defer team.mu.Unlock()
	area, ok := team.areas[participantID]
	if !ok {
		return nil
	}
	copied := *area
	return &copied
}

// Areas returns copies of every area in the team.
func (s *CodeSyncService) Areas(teamID int64) []models.CodeArea {
	team := s.team(teamID)
	team.mu.Lock()
	defer team.mu.Unlock()
	out := make([]models.CodeArea, 0, len(team.areas))
	for _, area := range team.areas {
		out = append(out, *area)
	}
	return out
}

// ClearTeam drops a team's arena when its class session ends.
func (s *CodeSyncService) ClearTeam(teamID int64) {
	s.mu.Lock()
	delete(s.teams, teamID)
	s.mu.Unlock()
}

func (s *CodeSyncService) closeWindow(collection *syncCollection) {
	s.mu.Lock()
	current, ok := s.pending[collection.requesterID]
	if !ok || current != collection {
		s.mu.Unlock()
		return
	}
	delete(s.pending, collection.requesterID)
	responses := make([]dto.SyncResponseMessage, 0, len(collection.responses))
	for _, resp := range collection.responses {
		responses = append(responses, resp)
	}
	s.mu.Unlock()

	// Materialize one area per distinct responder. Zero responses
	// simply means the requester keeps only its own area.
	now := time.Now().UTC()
	snapshot := dto.SyncSnapshot{TeamID: collection.teamID}
	for _, resp := range responses {
		s.upsertArea(collection.teamID, resp.FromID, resp.FromRole, resp.Code)
		snapshot.Areas = append(snapshot.Areas, models.CodeArea{
			TeamID:    collection.teamID,
			OwnerID:   resp.FromID,
			OwnerRole: resp.FromRole,
			Content:   resp.Code,
			UpdatedAt: now,
		})
	}
	if s.metrics != nil {
		s.metrics.ObserveSyncWindow(len(responses))
	}
	collection.deliver(snapshot)
}

func (s *CodeSyncService) team(teamID int64) *teamAreas {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[teamID]
	if !ok {
		team = &teamAreas{areas: make(map[int64]*models.CodeArea)}
		s.teams[teamID] = team
	}
	return team
}

func (s *CodeSyncService) upsertArea(teamID, ownerID int64, role models.Role, code string) {
	team := s.team(teamID)
	team.mu.Lock()
	defer team.mu.Unlock()
	area, ok := team.areas[ownerID]
	if !ok {
		area = &models.CodeArea{TeamID: teamID, OwnerID: ownerID, OwnerRole: role}
		team.areas[ownerID] = area
	}
	area.OwnerRole = role
	area.Content = code
	area.UpdatedAt = time.Now().UTC()
}
