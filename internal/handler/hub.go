package handler

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/service"
	"github.com/noah-isme/club-collab-api/pkg/bus"
)

// Hub bridges broadcast-fabric topics to locally connected websocket
// clients. One fabric subscription exists per topic regardless of how
// many local clients listen; it is released when the last one leaves.
// Team code and sync traffic is additionally fed to the synchronizer
// so the local arena stays current and sync requests get answered on
// behalf of local participants.
type Hub struct {
	bus      bus.Bus
	codesync *service.CodeSyncService
	logger   *zap.Logger

	mu          sync.Mutex
	bridges     map[string]*topicBridge
	teamClients map[int64]map[*Client]struct{}
	closed      bool
}

type topicBridge struct {
	sub     bus.Subscription
	clients map[*Client]struct{}
}

// NewHub constructs the bridge.
func NewHub(b bus.Bus, codesync *service.CodeSyncService, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bus:         b,
		codesync:    codesync,
		logger:      logger,
		bridges:     make(map[string]*topicBridge),
		teamClients: make(map[int64]map[*Client]struct{}),
	}
}

// Subscribe attaches the client to a topic, opening the fabric
// subscription on first use.
func (h *Hub) Subscribe(ctx context.Context, client *Client, topic string) error {
	h.mu.Lock()
	if bridge, ok := h.bridges[topic]; ok {
		bridge.clients[client] = struct{}{}
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	sub, err := h.bus.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if existing, ok := h.bridges[topic]; ok {
		// Lost the race; reuse the winner's subscription.
		existing.clients[client] = struct{}{}
		h.mu.Unlock()
		_ = sub.Close()
		return nil
	}
	bridge := &topicBridge{sub: sub, clients: map[*Client]struct{}{client: {}}}
	h.bridges[topic] = bridge
	h.mu.Unlock()

	go h.pump(topic, bridge)
	return nil
}

// Unsubscribe detaches the client; the fabric subscription is closed
// when no local client remains on the topic.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	bridge, ok := h.bridges[topic]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(bridge.clients, client)
	var stale bus.Subscription
	if len(bridge.clients) == 0 {
		delete(h.bridges, topic)
		stale = bridge.sub
	}
	h.mu.Unlock()
	if stale != nil {
		_ = stale.Close()
	}
}

// EnterTeam registers the client as a local participant of the team
// and attaches it to the team's topics.
func (h *Hub) EnterTeam(ctx context.Context, client *Client, teamID int64) error {
	topics := []string{
		bus.TeamEventsTopic(teamID),
		bus.TeamCodeTopic(teamID),
		bus.TeamSyncRequestTopic(teamID),
		bus.TeamSyncResponseTopic(teamID),
	}
	for _, topic := range topics {
		if err := h.Subscribe(ctx, client, topic); err != nil {
			return err
		}
	}
	h.mu.Lock()
	if h.teamClients[teamID] == nil {
		h.teamClients[teamID] = make(map[*Client]struct{})
	}
	h.teamClients[teamID][client] = struct{}{}
	h.mu.Unlock()
	return nil
}

// ExitTeam removes the client from the team's room. A drained room
// drops the local arena; the next joiner rebuilds it through the sync
// handshake.
func (h *Hub) ExitTeam(client *Client, teamID int64) {
	h.mu.Lock()
	drained := false
	if clients, ok := h.teamClients[teamID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.teamClients, teamID)
			drained = true
		}
	}
	h.mu.Unlock()
	if drained {
		h.codesync.ClearTeam(teamID)
	}

	h.Unsubscribe(client, bus.TeamEventsTopic(teamID))
	h.Unsubscribe(client, bus.TeamCodeTopic(teamID))
	h.Unsubscribe(client, bus.TeamSyncRequestTopic(teamID))
	h.Unsubscribe(client, bus.TeamSyncResponseTopic(teamID))
}

// TeamParticipants lists participant ids currently connected to this
// instance for the team.
func (h *Hub) TeamParticipants(teamID int64) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int64, 0, len(h.teamClients[teamID]))
	for client := range h.teamClients[teamID] {
		ids = append(ids, client.participantID)
	}
	return ids
}

// RemoveClient drops the client from every topic and team room.
func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	var stale []bus.Subscription
	for topic, bridge := range h.bridges {
		delete(bridge.clients, client)
		if len(bridge.clients) == 0 {
			delete(h.bridges, topic)
			stale = append(stale, bridge.sub)
		}
	}
	var drained []int64
	for teamID, clients := range h.teamClients {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.teamClients, teamID)
			drained = append(drained, teamID)
		}
	}
	h.mu.Unlock()
	for _, sub := range stale {
		_ = sub.Close()
	}
	for _, teamID := range drained {
		h.codesync.ClearTeam(teamID)
	}
}

// pump forwards fabric messages for one topic to its local clients,
// feeding code and sync traffic through the synchronizer first.
func (h *Hub) pump(topic string, bridge *topicBridge) {
	for msg := range bridge.sub.C() {
		frame, forward := h.route(msg)
		if !forward {
			continue
		}
		h.mu.Lock()
		clients := make([]*Client, 0, len(bridge.clients))
		for client := range bridge.clients {
			clients = append(clients, client)
		}
		h.mu.Unlock()
		for _, client := range clients {
			client.Send(frame)
		}
	}
}

// route inspects a fabric message. Sync handshake traffic is consumed
// here; everything else is forwarded to clients as-is.
func (h *Hub) route(msg bus.Message) (json.RawMessage, bool) {
	var frame struct {
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(msg.Payload, &frame); err != nil {
		h.logger.Warn("undecodable fabric message", zap.String("topic", msg.Topic), zap.Error(err))
		return nil, false
	}

	switch frame.Kind {
	case dto.FrameCodeChange:
		var change dto.CodeChangeMessage
		if err := json.Unmarshal(frame.Payload, &change); err == nil {
			h.codesync.ApplyRemoteCode(change)
		}
		return msg.Payload, true
	case dto.FrameSyncRequest:
		var req dto.SyncRequestMessage
		if err := json.Unmarshal(frame.Payload, &req); err == nil {
			h.codesync.RespondToSync(context.Background(), req.TeamID, req.RequesterID, h.TeamParticipants(req.TeamID))
		}
		return nil, false
	case dto.FrameSyncResponse:
		var resp dto.SyncResponseMessage
		if err := json.Unmarshal(frame.Payload, &resp); err == nil {
			h.codesync.HandleSyncResponse(resp)
		}
		return nil, false
	default:
		return msg.Payload, true
	}
}
