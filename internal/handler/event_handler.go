package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
	"github.com/noah-isme/club-collab-api/pkg/response"
)

type eventHistoryService interface {
	History(ctx context.Context, classID int64, page, pageSize int) ([]dto.EventItem, *models.Pagination, error)
}

// EventHandler exposes the class event history.
type EventHandler struct {
	events eventHistoryService
}

// NewEventHandler constructs the handler.
func NewEventHandler(events eventHistoryService) *EventHandler {
	return &EventHandler{events: events}
}

// History godoc
// @Summary List a class's events newest-first
// @Tags events
// @Produce json
// @Param id path int true "Class ID"
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(100)
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/events [get]
func (h *EventHandler) History(c *gin.Context) {
	classID, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 100)

	items, pagination, err := h.events.History(c.Request.Context(), classID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
