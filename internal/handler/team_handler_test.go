package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/club-collab-api/internal/middleware"
	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

type teamStateServiceMock struct {
	toggleBlockErr error
	toggleHandErr  error
	selectTaskErr  error
	status         *models.TeamStatus

	lastTeamID  int64
	lastBlocked bool
	lastTaskID  int64
	lastActorID int64
}

func (m *teamStateServiceMock) ToggleBlock(ctx context.Context, teamID int64, blocked bool, curatorID int64) error {
	m.lastTeamID = teamID
	m.lastBlocked = blocked
	m.lastActorID = curatorID
	return m.toggleBlockErr
}

func (m *teamStateServiceMock) ToggleHand(ctx context.Context, teamID, actorID int64) error {
	m.lastTeamID = teamID
	m.lastActorID = actorID
	return m.toggleHandErr
}

func (m *teamStateServiceMock) SelectTask(ctx context.Context, teamID, taskID, actorID int64) error {
	m.lastTeamID = teamID
	m.lastTaskID = taskID
	m.lastActorID = actorID
	return m.selectTaskErr
}

func (m *teamStateServiceMock) Status(ctx context.Context, teamID int64) (*models.TeamStatus, error) {
	m.lastTeamID = teamID
	if m.status == nil {
		return nil, appErrors.ErrNotFound
	}
	return m.status, nil
}

func jsonContext(t *testing.T, method, target, body string, claims *models.JWTClaims, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestTeamHandlerToggleBlock(t *testing.T) {
	mockSvc := &teamStateServiceMock{}
	h := NewTeamHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 100, Role: models.RoleCurator}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/block", `{"blocked":true}`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.ToggleBlock(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(5), mockSvc.lastTeamID)
	assert.True(t, mockSvc.lastBlocked)
	assert.Equal(t, int64(100), mockSvc.lastActorID)
}

func TestTeamHandlerToggleBlockStudentForbidden(t *testing.T) {
	mockSvc := &teamStateServiceMock{}
	h := NewTeamHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/block", `{"blocked":true}`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.ToggleBlock(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, mockSvc.lastTeamID)
}

func TestTeamHandlerToggleBlockInvalidBody(t *testing.T) {
	h := NewTeamHandler(&teamStateServiceMock{})

	claims := &models.JWTClaims{ParticipantID: 100, Role: models.RoleCurator}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/block", `{"blocked":`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.ToggleBlock(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTeamHandlerToggleHandForbidden(t *testing.T) {
	mockSvc := &teamStateServiceMock{toggleHandErr: appErrors.ErrNotElder}
	h := NewTeamHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/hand", "", claims,
		gin.Param{Key: "id", Value: "5"})

	h.ToggleHand(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_ELDER")
}

func TestTeamHandlerSelectTask(t *testing.T) {
	mockSvc := &teamStateServiceMock{}
	h := NewTeamHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 10, Role: models.RoleElder}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/task", `{"task_id":77}`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.SelectTask(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(77), mockSvc.lastTaskID)
}

func TestTeamHandlerSelectTaskMissingTask(t *testing.T) {
	mockSvc := &teamStateServiceMock{}
	h := NewTeamHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 10, Role: models.RoleElder}
	c, w := jsonContext(t, http.MethodPost, "/teams/5/task", `{}`, claims,
		gin.Param{Key: "id", Value: "5"})

	h.SelectTask(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, mockSvc.lastTaskID)
}

func TestTeamHandlerStatus(t *testing.T) {
	taskID := int64(77)
	mockSvc := &teamStateServiceMock{
		status: &models.TeamStatus{TeamID: 5, IsBlocked: true, SelectedTaskID: &taskID},
	}
	h := NewTeamHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := jsonContext(t, http.MethodGet, "/teams/5/status", "", claims,
		gin.Param{Key: "id", Value: "5"})

	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_blocked":true`)
	assert.Contains(t, w.Body.String(), `"selected_task_id":77`)
}
