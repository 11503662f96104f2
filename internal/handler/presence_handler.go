package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/pkg/response"
)

type presenceService interface {
	JoinClass(ctx context.Context, classID, participantID int64, role models.Role) error
	LeaveClass(ctx context.Context, classID, participantID int64, role models.Role) error
	JoinTeam(ctx context.Context, teamID, curatorID int64) error
	LeaveTeam(ctx context.Context, teamID, curatorID int64) error
	JoinedCurators(ctx context.Context, teamID int64) ([]int64, error)
	IsCuratorJoined(ctx context.Context, teamID, curatorID int64) (bool, error)
}

// PresenceHandler exposes the join/leave surface for classes and
// teams. The same operations are reachable over the realtime channel;
// REST exists for non-interactive clients and recovery flows.
type PresenceHandler struct {
	presence presenceService
}

// NewPresenceHandler constructs the handler.
func NewPresenceHandler(presence presenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// JoinClass godoc
// @Summary Join a live class session
// @Tags presence
// @Produce json
// @Param id path int true "Class ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/join [post]
func (h *PresenceHandler) JoinClass(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	classID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.presence.JoinClass(c.Request.Context(), classID, claims.ParticipantID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// LeaveClass godoc
// @Summary Leave a class session
// @Tags presence
// @Produce json
// @Param id path int true "Class ID"
// @Success 204
// @Router /classes/{id}/leave [post]
func (h *PresenceHandler) LeaveClass(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	classID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.presence.LeaveClass(c.Request.Context(), classID, claims.ParticipantID, claims.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// JoinTeam godoc
// @Summary Join a team as curator
// @Tags presence
// @Produce json
// @Param id path int true "Team ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /teams/{id}/join [post]
func (h *PresenceHandler) JoinTeam(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	teamID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.presence.JoinTeam(c.Request.Context(), teamID, claims.ParticipantID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// LeaveTeam godoc
// @Summary Leave a team
// @Tags presence
// @Produce json
// @Param id path int true "Team ID"
// @Success 204
// @Router /teams/{id}/leave [post]
func (h *PresenceHandler) LeaveTeam(c *gin.Context) {
	claims, err := currentClaims(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	teamID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.presence.LeaveTeam(c.Request.Context(), teamID, claims.ParticipantID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// JoinedCurators godoc
// @Summary List curators joined to a team
// @Tags presence
// @Produce json
// @Param id path int true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/curators [get]
func (h *PresenceHandler) JoinedCurators(c *gin.Context) {
	teamID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	ids, err := h.presence.JoinedCurators(c.Request.Context(), teamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.JoinedCuratorsResponse{TeamID: teamID, CuratorIDs: ids}, nil)
}

// CuratorMembership godoc
// @Summary Check whether a curator is joined to a team
// @Tags presence
// @Produce json
// @Param id path int true "Team ID"
// @Param curatorID path int true "Curator ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/curators/{curatorID} [get]
func (h *PresenceHandler) CuratorMembership(c *gin.Context) {
	teamID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	curatorID, err := idParam(c, "curatorID")
	if err != nil {
		response.Error(c, err)
		return
	}
	joined, err := h.presence.IsCuratorJoined(c.Request.Context(), teamID, curatorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CuratorMembershipResponse{TeamID: teamID, CuratorID: curatorID, Joined: joined}, nil)
}
