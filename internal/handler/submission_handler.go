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

type submissionService interface {
	Submit(ctx context.Context, teamID, actorID int64, req dto.SubmitRequest) (*models.Submission, error)
	ReportResult(ctx context.Context, req dto.GradingResultRequest) (*models.Submission, error)
	GetSubmission(ctx context.Context, id int64) (*models.Submission, error)
	ListTeamSubmissions(ctx context.Context, teamID int64) ([]models.Submission, error)
}

// SubmissionHandler exposes the solution-sending surface and the
// grading runner's callback.
type SubmissionHandler struct {
	submissions submissionService
	callbackKey string
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions submissionService, callbackKey string) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, callbackKey: callbackKey}
}

// Submit godoc
// @Summary Send the team's solution for grading
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path int true "Team ID"
// @Param payload body dto.SubmitRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /teams/{id}/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
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
	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TaskID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	sub, err := h.submissions.Submit(c.Request.Context(), teamID, claims.ParticipantID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// ListByTeam godoc
// @Summary List a team's submissions newest-first
// @Tags submissions
// @Produce json
// @Param id path int true "Team ID"
// @Success 200 {object} response.Envelope
// @Router /teams/{id}/submissions [get]
func (h *SubmissionHandler) ListByTeam(c *gin.Context) {
	teamID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	subs, err := h.submissions.ListTeamSubmissions(c.Request.Context(), teamID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// Get godoc
// @Summary Fetch one submission
// @Tags submissions
// @Produce json
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	sub, err := h.submissions.GetSubmission(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// GradingResult godoc
// @Summary Grading runner callback
// @Tags submissions
// @Accept json
// @Produce json
// @Param payload body dto.GradingResultRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /grading/results [post]
func (h *SubmissionHandler) GradingResult(c *gin.Context) {
	if h.callbackKey != "" && c.GetHeader("X-Callback-Key") != h.callbackKey {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid callback key"))
		return
	}
	var req dto.GradingResultRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SubmissionID <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	sub, err := h.submissions.ReportResult(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}
