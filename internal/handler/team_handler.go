package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
	"github.com/noah-isme/club-collab-api/pkg/response"
)

type teamStateService interface {
	ToggleBlock(ctx context.Context, teamID int64, blocked bool, curatorID int64) error
	ToggleHand(ctx context.Context, teamID, actorID int64) error
	SelectTask(ctx context.Context, teamID, taskID, actorID int64) error
	Status(ctx context.Context, teamID int64) (*models.TeamStatus, error)
}

// TeamHandler exposes the team control flags.
type TeamHandler struct {
	state teamStateService
}

// NewTeamHandler constructs the handler.
func NewTeamHandler(state teamStateService) *TeamHandler {
	return &TeamHandler{state: state}
}

// ToggleBlock godoc
// @Summary Block or unblock a team's submissions
// @Tags teams
// @Accept json
// @Produce json
// @Param id path int true "Team ID"
// @Param payload body dto.BlockTeamRequest true "Block flag"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/block [post]
func (h *TeamHandler) ToggleBlock(c *gin.Context) {
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
	var req dto.BlockTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims.Role != models.RoleCurator {
		response.Error(c, appErrors.Clone(appErrors.ErrNotAuthorized, "only curators can block teams"))
		return
	}
	if err := h.state.ToggleBlock(c.Request.Context(), teamID, req.Blocked, claims.ParticipantID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ToggleHand godoc
// @Summary Raise or lower the team's hand
// @Tags teams
// @Produce json
// @Param id path int true "Team ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/hand [post]
func (h *TeamHandler) ToggleHand(c *gin.Context) {
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
	if err := h.state.ToggleHand(c.Request.Context(), teamID, claims.ParticipantID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SelectTask godoc
// @Summary Select the team's active task
// @Tags teams
// @Accept json
// @Produce json
// @Param id path int true "Team ID"
// @Param payload body dto.SelectTaskRequest true "Task selection"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teams/{id}/task [post]
func (h *TeamHandler) SelectTask(c *gin.Context) {
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
	var req dto.SelectTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TaskID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	if err := h.state.SelectTask(c.Request.Context(), teamID, req.TaskID, claims.ParticipantID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary Get the team's control-state snapshot
// @Tags teams
// @Produce json
// @Param id path int true "Team ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teams/{id}/status [get]
func (h *TeamHandler) Status(c *gin.Context) {
	teamID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.state.Status(c.Request.Context(), teamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
