package handler

import (
	"context"
	"encoding/json"
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

type presenceServiceMock struct {
	joinClassErr error
	joinTeamErr  error
	curators     []int64
	joined       bool

	lastClassID int64
	lastTeamID  int64
	lastActorID int64
	lastRole    models.Role
}

func (m *presenceServiceMock) JoinClass(ctx context.Context, classID, participantID int64, role models.Role) error {
	m.lastClassID = classID
	m.lastActorID = participantID
	m.lastRole = role
	return m.joinClassErr
}

func (m *presenceServiceMock) LeaveClass(ctx context.Context, classID, participantID int64, role models.Role) error {
	m.lastClassID = classID
	m.lastActorID = participantID
	return nil
}

func (m *presenceServiceMock) JoinTeam(ctx context.Context, teamID, curatorID int64) error {
	m.lastTeamID = teamID
	m.lastActorID = curatorID
	return m.joinTeamErr
}

func (m *presenceServiceMock) LeaveTeam(ctx context.Context, teamID, curatorID int64) error {
	m.lastTeamID = teamID
	m.lastActorID = curatorID
	return nil
}

func (m *presenceServiceMock) JoinedCurators(ctx context.Context, teamID int64) ([]int64, error) {
	m.lastTeamID = teamID
	return m.curators, nil
}

func (m *presenceServiceMock) IsCuratorJoined(ctx context.Context, teamID, curatorID int64) (bool, error) {
	m.lastTeamID = teamID
	return m.joined, nil
}

func testContext(t *testing.T, method, target string, claims *models.JWTClaims, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestPresenceHandlerJoinClass(t *testing.T) {
	mockSvc := &presenceServiceMock{}
	h := NewPresenceHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := testContext(t, http.MethodPost, "/classes/1/join", claims, gin.Param{Key: "id", Value: "1"})

	h.JoinClass(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(1), mockSvc.lastClassID)
	assert.Equal(t, int64(7), mockSvc.lastActorID)
	assert.Equal(t, models.RoleStudent, mockSvc.lastRole)
}

func TestPresenceHandlerJoinClassOutsideSession(t *testing.T) {
	mockSvc := &presenceServiceMock{joinClassErr: appErrors.ErrNotInSession}
	h := NewPresenceHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := testContext(t, http.MethodPost, "/classes/1/join", claims, gin.Param{Key: "id", Value: "1"})

	h.JoinClass(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_IN_SESSION")
}

func TestPresenceHandlerJoinClassWithoutClaims(t *testing.T) {
	h := NewPresenceHandler(&presenceServiceMock{})

	c, w := testContext(t, http.MethodPost, "/classes/1/join", nil, gin.Param{Key: "id", Value: "1"})

	h.JoinClass(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPresenceHandlerJoinClassBadID(t *testing.T) {
	h := NewPresenceHandler(&presenceServiceMock{})

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := testContext(t, http.MethodPost, "/classes/abc/join", claims, gin.Param{Key: "id", Value: "abc"})

	h.JoinClass(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresenceHandlerJoinTeamConflict(t *testing.T) {
	mockSvc := &presenceServiceMock{joinTeamErr: appErrors.ErrAlreadyInAnotherTeam}
	h := NewPresenceHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 100, Role: models.RoleCurator}
	c, w := testContext(t, http.MethodPost, "/teams/5/join", claims, gin.Param{Key: "id", Value: "5"})

	h.JoinTeam(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_IN_ANOTHER_TEAM")
}

func TestPresenceHandlerJoinedCurators(t *testing.T) {
	mockSvc := &presenceServiceMock{curators: []int64{100, 101}}
	h := NewPresenceHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := testContext(t, http.MethodGet, "/teams/5/curators", claims, gin.Param{Key: "id", Value: "5"})

	h.JoinedCurators(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			TeamID     int64   `json:"team_id"`
			CuratorIDs []int64 `json:"curator_ids"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.Data.TeamID)
	assert.Equal(t, []int64{100, 101}, body.Data.CuratorIDs)
}

func TestPresenceHandlerCuratorMembership(t *testing.T) {
	mockSvc := &presenceServiceMock{joined: true}
	h := NewPresenceHandler(mockSvc)

	claims := &models.JWTClaims{ParticipantID: 7, Role: models.RoleStudent}
	c, w := testContext(t, http.MethodGet, "/teams/5/curators/100", claims,
		gin.Param{Key: "id", Value: "5"}, gin.Param{Key: "curatorID", Value: "100"})

	h.CuratorMembership(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"joined":true`)
}
