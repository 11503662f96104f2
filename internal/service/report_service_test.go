package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
	"github.com/noah-isme/club-collab-api/pkg/storage"
)

func newReportFixture(t *testing.T) (*ReportService, *rosterStub, *eventLogStub) {
	t.Helper()
	roster := newRosterStub()
	roster.classes[1] = liveClassFixture(1)
	log := &eventLogStub{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	svc := NewReportService(&historyStub{log: log}, roster, store, signer, nil)
	return svc, roster, log
}

// historyStub adapts the log stub to the exporter's read interface.
type historyStub struct {
	log *eventLogStub
}

func (h *historyStub) HistorySince(ctx context.Context, classID int64, since time.Time) ([]models.Event, error) {
	events, _, err := h.log.ListByClass(ctx, models.EventFilter{ClassID: classID, Since: &since})
	return events, err
}

func TestExportClassHistoryCuratorOnly(t *testing.T) {
	svc, _, _ := newReportFixture(t)

	_, err := svc.ExportClassHistory(context.Background(), 1, ReportFormatCSV, models.RoleStudent)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotAuthorized.Code, appErrors.FromError(err).Code)
}

func TestExportClassHistoryCSVRoundTrip(t *testing.T) {
	svc, _, log := newReportFixture(t)
	require.NoError(t, log.Append(context.Background(), &models.Event{
		Type:      models.EventTeamRaisedHand,
		ClassID:   models.Int64Ptr(1),
		TeamID:    models.Int64Ptr(5),
		ActorID:   models.Int64Ptr(10),
		ActorRole: models.RolePtr(models.RoleElder),
	}))

	link, err := svc.ExportClassHistory(context.Background(), 1, ReportFormatCSV, models.RoleCurator)
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.True(t, strings.HasSuffix(link.File, ".csv"))

	file, name, err := svc.OpenExport(link.Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, link.File, name)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), string(models.EventTeamRaisedHand))
}

func TestExportClassHistoryUnknownFormat(t *testing.T) {
	svc, _, _ := newReportFixture(t)

	_, err := svc.ExportClassHistory(context.Background(), 1, ReportFormat("xml"), models.RoleCurator)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOpenExportRejectsBadToken(t *testing.T) {
	svc, _, _ := newReportFixture(t)

	_, _, err := svc.OpenExport("not-a-token")
	assert.Error(t, err)
}
