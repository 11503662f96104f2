package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/internal/service"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
	"github.com/noah-isme/club-collab-api/pkg/response"
)

type reportService interface {
	ExportClassHistory(ctx context.Context, classID int64, format service.ReportFormat, role models.Role) (*dto.ExportLinkResponse, error)
	OpenExport(token string) (*os.File, string, error)
}

// ReportHandler exposes event-history exports.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Export godoc
// @Summary Export a class's session history
// @Tags reports
// @Produce json
// @Param id path int true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /classes/{id}/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
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
	format := service.ReportFormat(c.DefaultQuery("format", "csv"))
	link, err := h.reports.ExportClassHistory(c.Request.Context(), classID, format, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a previously exported artifact
// @Tags reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Router /exports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.reports.OpenExport(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(name)+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	http.ServeContent(c.Writer, c.Request, filepath.Base(name), fileModTime(file), file)
}

func fileModTime(f *os.File) time.Time {
	info, err := f.Stat()
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}
