package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/service"
	"github.com/straywatch/straywatch-api/pkg/response"
)

// ExportHandler serves rendered register downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// IncidentRegister godoc
// @Summary Export incident register
// @Description Download the incident register as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf (default csv)"
// @Param date_from query string false "RFC3339 lower bound"
// @Param date_to query string false "RFC3339 upper bound"
// @Success 200 {file} binary
// @Router /exports/incidents [get]
func (h *ExportHandler) IncidentRegister(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	var dateFrom, dateTo *time.Time
	if from, ok := timeParam(c, "date_from"); ok {
		dateFrom = &from
	}
	if to, ok := timeParam(c, "date_to"); ok {
		dateTo = &to
	}

	result, err := h.service.IncidentRegister(c.Request.Context(), format, dateFrom, dateTo)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

// AnimalRegister godoc
// @Summary Export animal register
// @Description Download the animal custody register as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} binary
// @Router /exports/animals [get]
func (h *ExportHandler) AnimalRegister(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.service.AnimalRegister(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
