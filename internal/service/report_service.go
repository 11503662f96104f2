package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
	"github.com/noah-isme/club-collab-api/pkg/export"
	"github.com/noah-isme/club-collab-api/pkg/storage"
)

type eventHistoryReader interface {
	HistorySince(ctx context.Context, classID int64, since time.Time) ([]models.Event, error)
}

// ReportFormat selects the artifact encoding.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportService renders a class's event history into downloadable
// artifacts. Curators use these for after-session review.
type ReportService struct {
	events  eventHistoryReader
	roster  rosterReader
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
}

// NewReportService constructs the exporter.
func NewReportService(events eventHistoryReader, roster rosterReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		events:  events,
		roster:  roster,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		storage: store,
		signer:  signer,
		logger:  logger,
	}
}

// ExportClassHistory renders the class's session events to a file and
// returns a signed download link. Only curators may export.
func (s *ReportService) ExportClassHistory(ctx context.Context, classID int64, format ReportFormat, role models.Role) (*dto.ExportLinkResponse, error) {
	if role != models.RoleCurator {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only curators may export session history")
	}
	class, err := s.roster.FindClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	events, err := s.events.HistorySince(ctx, classID, class.StartTime)
	if err != nil {
		return nil, err
	}

	data := historyDataset(events)
	var rendered []byte
	switch format {
	case ReportFormatPDF:
		rendered, err = s.pdf.Render(data, fmt.Sprintf("Class %d session history", classID))
	case ReportFormatCSV, "":
		format = ReportFormatCSV
		rendered, err = s.csv.Render(data)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("class-%d-%s.%s", classID, uuid.NewString(), format)
	if _, err := s.storage.Save(filename, rendered); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(strconv.FormatInt(classID, 10), filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	return &dto.ExportLinkResponse{File: filename, Token: token, ExpiresAt: expiresAt}, nil
}

// OpenExport resolves a signed token back to the stored file.
func (s *ReportService) OpenExport(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, relPath, nil
}

func historyDataset(events []models.Event) export.Dataset {
	headers := []string{"id", "time", "type", "team_id", "task_id", "submission_id", "actor_id", "actor_role"}
	rows := make([]map[string]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, map[string]string{
			"id":            strconv.FormatInt(e.ID, 10),
			"time":          e.Time.UTC().Format(time.RFC3339),
			"type":          string(e.Type),
			"team_id":       formatID(e.TeamID),
			"task_id":       formatID(e.TaskID),
			"submission_id": formatID(e.SubmissionID),
			"actor_id":      formatID(e.ActorID),
			"actor_role":    formatRole(e.ActorRole),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatID(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatRole(r *models.Role) string {
	if r == nil {
		return ""
	}
	return string(*r)
}
