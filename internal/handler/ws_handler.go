package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/internal/service"
	"github.com/noah-isme/club-collab-api/pkg/bus"
	"github.com/noah-isme/club-collab-api/pkg/config"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

const maxMessageSize = 1 << 20

// WSHandler is the realtime gateway: one websocket per participant,
// every collaboration action available as a message, dropped
// connections treated as an implicit leave of everything.
type WSHandler struct {
	hub         *Hub
	presence    *service.PresenceService
	state       *service.TeamStateService
	codesync    *service.CodeSyncService
	submissions *service.SubmissionService
	roster      *service.RosterFacade
	metrics     *service.MetricsService
	logger      *zap.Logger
	cfg         config.CollabConfig
	upgrader    websocket.Upgrader
}

// NewWSHandler constructs the gateway.
func NewWSHandler(
	hub *Hub,
	presence *service.PresenceService,
	state *service.TeamStateService,
	codesync *service.CodeSyncService,
	submissions *service.SubmissionService,
	roster *service.RosterFacade,
	metrics *service.MetricsService,
	cfg config.CollabConfig,
	logger *zap.Logger,
) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		hub:         hub,
		presence:    presence,
		state:       state,
		codesync:    codesync,
		submissions: submissions,
		roster:      roster,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect godoc
// @Summary Open the realtime collaboration channel
// @Tags realtime
// @Param token query string false "Access token when no Authorization header can be set"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /ws [get]
func (h *WSHandler) Connect(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn, claims, h.cfg.SendBuffer, h.cfg.WriteTimeout, h.cfg.PongTimeout, h.logger)
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
	go client.writePump()
	h.readPump(client)
}

func (h *WSHandler) readPump(client *Client) {
	defer h.teardown(client)

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(client.pongTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(client.pongTimeout))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly",
					zap.Int64("participant_id", client.participantID), zap.Error(err))
			}
			return
		}
		var envelope dto.ClientEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			client.SendError(appErrors.ErrValidation.Code, "undecodable message")
			continue
		}
		if h.metrics != nil {
			h.metrics.ObserveWSMessage(envelope.Action)
		}
		h.dispatch(context.Background(), client, envelope)
	}
}

// teardown is the implicit-leave path: a dropped connection releases
// presence, open sync windows, and every hub subscription.
func (h *WSHandler) teardown(client *Client) {
	h.codesync.CancelSync(client.participantID)
	h.presence.Disconnect(context.Background(), client.participantID, client.role)
	h.hub.RemoveClient(client)
	client.close()
	client.conn.Close()
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

func (h *WSHandler) dispatch(ctx context.Context, client *Client, envelope dto.ClientEnvelope) {
	var err error
	switch envelope.Action {
	case dto.ActionJoinClass:
		err = h.joinClass(ctx, client, envelope.Payload)
	case dto.ActionLeaveClass:
		err = h.leaveClass(ctx, client, envelope.Payload)
	case dto.ActionJoinTeam:
		err = h.joinTeam(ctx, client, envelope.Payload)
	case dto.ActionLeaveTeam:
		err = h.leaveTeam(ctx, client, envelope.Payload)
	case dto.ActionToggleBlock:
		err = h.toggleBlock(ctx, client, envelope.Payload)
	case dto.ActionToggleHand:
		err = h.toggleHand(ctx, client, envelope.Payload)
	case dto.ActionSelectTask:
		err = h.selectTask(ctx, client, envelope.Payload)
	case dto.ActionCodeChange:
		err = h.codeChange(ctx, client, envelope.Payload)
	case dto.ActionSyncRequest:
		err = h.syncRequest(ctx, client, envelope.Payload)
	case dto.ActionSyncResponse:
		err = h.syncResponse(ctx, client, envelope.Payload)
	case dto.ActionSubmit:
		err = h.submit(ctx, client, envelope.Payload)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, "unknown action "+envelope.Action)
	}
	if err != nil {
		appErr := appErrors.FromError(err)
		client.SendError(appErr.Code, appErr.Message)
	}
}

func (h *WSHandler) joinClass(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.JoinClassPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ClassID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid join_class payload")
	}
	if err := h.presence.JoinClass(ctx, payload.ClassID, client.participantID, client.role); err != nil {
		return err
	}
	if err := h.hub.Subscribe(ctx, client, bus.ClassEventsTopic(payload.ClassID)); err != nil {
		return err
	}
	client.trackClass(payload.ClassID)

	// Students land in their team room immediately; the sync window
	// bootstraps their view of everyone's areas.
	if client.role != models.RoleCurator {
		teamID, err := h.roster.StudentTeam(ctx, payload.ClassID, client.participantID)
		if err != nil || teamID == nil {
			return err
		}
		return h.enterTeamRoom(ctx, client, *teamID)
	}
	return nil
}

func (h *WSHandler) leaveClass(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.JoinClassPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.ClassID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid leave_class payload")
	}
	if err := h.presence.LeaveClass(ctx, payload.ClassID, client.participantID, client.role); err != nil {
		return err
	}
	h.hub.Unsubscribe(client, bus.ClassEventsTopic(payload.ClassID))
	client.untrackClass(payload.ClassID)
	for _, teamID := range client.teams() {
		h.hub.ExitTeam(client, teamID)
		client.untrackTeam(teamID)
	}
	return nil
}

func (h *WSHandler) joinTeam(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.JoinTeamPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid join_team payload")
	}
	if client.role != models.RoleCurator {
		return appErrors.Clone(appErrors.ErrNotAuthorized, "only curators join teams explicitly")
	}
	if err := h.presence.JoinTeam(ctx, payload.TeamID, client.participantID); err != nil {
		return err
	}
	return h.enterTeamRoom(ctx, client, payload.TeamID)
}

func (h *WSHandler) leaveTeam(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.JoinTeamPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid leave_team payload")
	}
	if err := h.presence.LeaveTeam(ctx, payload.TeamID, client.participantID); err != nil {
		return err
	}
	h.hub.ExitTeam(client, payload.TeamID)
	client.untrackTeam(payload.TeamID)
	return nil
}

func (h *WSHandler) enterTeamRoom(ctx context.Context, client *Client, teamID int64) error {
	if err := h.hub.EnterTeam(ctx, client, teamID); err != nil {
		return err
	}
	client.trackTeam(teamID)
	return h.codesync.RequestSync(ctx, teamID, client.participantID, func(snapshot dto.SyncSnapshot) {
		client.SendFrame(dto.ServerFrame{Kind: dto.FrameSyncSnapshot, Payload: snapshot})
	})
}

func (h *WSHandler) toggleBlock(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.ToggleBlockPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid toggle_block payload")
	}
	if client.role != models.RoleCurator {
		return appErrors.Clone(appErrors.ErrNotAuthorized, "only curators can block teams")
	}
	return h.state.ToggleBlock(ctx, payload.TeamID, payload.Blocked, client.participantID)
}

func (h *WSHandler) toggleHand(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.ToggleHandPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid toggle_hand payload")
	}
	return h.state.ToggleHand(ctx, payload.TeamID, client.participantID)
}

func (h *WSHandler) selectTask(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.SelectTaskPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 || payload.TaskID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid select_task payload")
	}
	return h.state.SelectTask(ctx, payload.TeamID, payload.TaskID, client.participantID)
}

func (h *WSHandler) codeChange(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.CodeChangeMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid code_change payload")
	}
	return h.codesync.PublishFullCode(ctx, payload.TeamID, client.participantID, client.role, payload.Code)
}

func (h *WSHandler) syncRequest(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.SyncRequestMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid sync_request payload")
	}
	return h.codesync.RequestSync(ctx, payload.TeamID, client.participantID, func(snapshot dto.SyncSnapshot) {
		client.SendFrame(dto.ServerFrame{Kind: dto.FrameSyncSnapshot, Payload: snapshot})
	})
}

// syncResponse lets a client answer a peer's sync request with its
// own editor content instead of the server's arena copy.
func (h *WSHandler) syncResponse(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.SyncResponseMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid sync_response payload")
	}
	payload.FromID = client.participantID
	payload.FromRole = client.role
	frame := dto.ServerFrame{Kind: dto.FrameSyncResponse, Payload: payload}
	return h.hub.bus.Publish(ctx, bus.TeamSyncResponseTopic(payload.TeamID), frame)
}

func (h *WSHandler) submit(ctx context.Context, client *Client, raw json.RawMessage) error {
	var payload dto.SubmitPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TeamID <= 0 || payload.TaskID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "invalid submit payload")
	}
	_, err := h.submissions.Submit(ctx, payload.TeamID, client.participantID, dto.SubmitRequest{
		TaskID: payload.TaskID,
		Code:   payload.Code,
	})
	return err
}
