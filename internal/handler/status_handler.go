package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/service"
	"github.com/straywatch/straywatch-api/pkg/response"
)

// StatusHandler wires HTTP endpoints to the dashboard read side.
type StatusHandler struct {
	service *service.StatusService
}

// NewStatusHandler creates a new handler.
func NewStatusHandler(svc *service.StatusService) *StatusHandler {
	return &StatusHandler{service: svc}
}

// Snapshot godoc
// @Summary Dashboard snapshot
// @Description Aggregated incident, animal and assignment totals
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /status/snapshot [get]
func (h *StatusHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// MapMarkers godoc
// @Summary Dispatch map markers
// @Description Open incidents positioned for the dispatch map
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /status/map [get]
func (h *StatusHandler) MapMarkers(c *gin.Context) {
	markers, err := h.service.MapMarkers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, markers, nil)
}

// Trend godoc
// @Summary Monthly incident trend
// @Tags Status
// @Produce json
// @Param months query int false "Window size in months (default 12)"
// @Success 200 {object} response.Envelope
// @Router /status/trend [get]
func (h *StatusHandler) Trend(c *gin.Context) {
	trend, err := h.service.Trend(c.Request.Context(), intParam(c, "months", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trend, nil)
}
