package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

type submissionServiceMock struct {
	submitResp *models.Submission
	submitErr  error
	reportResp *models.Submission
	reportErr  error

	lastTeamID  int64
	lastActorID int64
	lastSubmit  dto.SubmitRequest
	lastReport  dto.GradingResultRequest
}

func (m *submissionServiceMock) Submit(ctx context.Context, teamID, actorID int64, req dto.SubmitRequest) (*models.Submission, error) {
	m.lastTeamID = teamID
	m.lastActorID = actorID
	m.lastSubmit = req
	return m.submitResp, m.submitErr
}

func (m *submissionServiceMock) ReportResult(ctx context.Context, req dto.GradingResultRequest) (*models.Submission, error) {
	m.lastReport = req
	return m.reportResp, m.reportErr
}

func (m *submissionServiceMock) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	if m.submitResp != nil && m.submitResp.ID == id {
		return m.submitResp, nil
	}
	return nil, appErrors.ErrNotFound
}

func (m *submissionServiceMock) ListTeamSubmissions(ctx context.Context, teamID int64) ([]models.Submission, error) {
	m.lastTeamID = teamID
	if m.submitResp == nil {
		return nil, nil
	}
	return []models.Submission{*m.submitResp}, nil
}

func TestSubmissionHandlerSubmit(t *testing.T) {
	mockSvc := &submissionServiceMock{
		submitResp: &models.Submission{ID: 1, TeamID: 5, TaskID: 77, Status: models.SubmissionInProcess},
	}
	h := NewSubmissionHandler(mockSvc, "")

	claims := &models.JWTClaims{ParticipantID: 10, Role: models.RoleElder}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/submissions", `{"task_id":77,"code":"print(1)"}`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(5), mockSvc.lastTeamID)
	assert.Equal(t, int64(10), mockSvc.lastActorID)
	assert.Equal(t, "print(1)", mockSvc.lastSubmit.Code)
}

func TestSubmissionHandlerSubmitBlocked(t *testing.T) {
	mockSvc := &submissionServiceMock{submitErr: appErrors.ErrSubmissionBlocked}
	h := NewSubmissionHandler(mockSvc, "")

	claims := &models.JWTClaims{ParticipantID: 10, Role: models.RoleElder}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/submissions", `{"task_id":77}`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.Submit(c)
	require.Equal(t, http.StatusLocked, w.Code)
	assert.Contains(t, w.Body.String(), "SUBMISSION_BLOCKED")
}

func TestSubmissionHandlerSubmitInvalidBody(t *testing.T) {
	mockSvc := &submissionServiceMock{}
	h := NewSubmissionHandler(mockSvc, "")

	claims := &models.JWTClaims{ParticipantID: 10, Role: models.RoleElder}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/submissions", `{"task_id":0}`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mockSvc.lastTeamID)
}

func TestSubmissionHandlerGradingResult(t *testing.T) {
	mockSvc := &submissionServiceMock{
		reportResp: &models.Submission{ID: 9, Status: models.SubmissionOK},
	}
	h := NewSubmissionHandler(mockSvc, "runner-key")

	c, w := jsonContext(t, http.MethodPost, "/grading/results", `{"submission_id":9,"passed":true}`, nil)
	c.Request.Header.Set("X-Callback-Key", "runner-key")

	h.GradingResult(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(9), mockSvc.lastReport.SubmissionID)
	assert.True(t, mockSvc.lastReport.Passed)
}

func TestSubmissionHandlerGradingResultBadKey(t *testing.T) {
	mockSvc := &submissionServiceMock{}
	h := NewSubmissionHandler(mockSvc, "runner-key")

	c, w := jsonContext(t, http.MethodPost, "/grading/results", `{"submission_id":9}`, nil)
	c.Request.Header.Set("X-Callback-Key", "wrong")

	h.GradingResult(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, mockSvc.lastReport.SubmissionID)
}

func TestSubmissionHandlerGet(t *testing.T) {
	mockSvc := &submissionServiceMock{
		submitResp: &models.Submission{ID: 9, TeamID: 5, Status: models.SubmissionOK},
	}
	h := NewSubmissionHandler(mockSvc, "")

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := jsonContext(t, http.MethodGet, "/submissions/9", "", claims,
		gin.Param{Key: "id", Value: "9"})

	h.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"OK"`)
}

func TestSubmissionHandlerGetNotFound(t *testing.T) {
	h := NewSubmissionHandler(&submissionServiceMock{}, "")

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := jsonContext(t, http.MethodGet, "/submissions/9", "", claims,
		gin.Param{Key: "id", Value: "9"})

	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
