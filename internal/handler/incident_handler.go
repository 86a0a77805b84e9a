package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/internal/service"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/response"
)

// IncidentHandler wires HTTP endpoints to the incident lifecycle service.
type IncidentHandler struct {
	service *service.IncidentService
}

// NewIncidentHandler creates a new handler.
func NewIncidentHandler(svc *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{service: svc}
}

// Submit godoc
// @Summary Submit incident report
// @Description Create a new incident report. Anonymous submissions are accepted.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param payload body service.SubmitIncidentRequest true "Incident payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /incidents [post]
func (h *IncidentHandler) Submit(c *gin.Context) {
	var req service.SubmitIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid incident payload"))
		return
	}

	var reporterID *string
	if claims := claimsFromContext(c); claims != nil {
		reporterID = &claims.UserID
	}

	incident, err := h.service.Submit(c.Request.Context(), req, reporterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, incident)
}

type transitionPayload struct {
	Event string `json:"event" binding:"required"`
}

// Transition godoc
// @Summary Apply lifecycle event
// @Description Apply approve, reject, dispatch or close to an incident
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param payload body transitionPayload true "Lifecycle event"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /incidents/{id}/transitions [post]
func (h *IncidentHandler) Transition(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload transitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "event required"))
		return
	}

	result, err := h.service.Transition(c.Request.Context(), c.Param("id"), models.IncidentEvent(payload.Event), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

type priorityPayload struct {
	Priority string `json:"priority" binding:"required"`
}

// SetPriority godoc
// @Summary Reassign incident priority
// @Description Change the response priority of an open incident
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param payload body priorityPayload true "New priority"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /incidents/{id}/priority [patch]
func (h *IncidentHandler) SetPriority(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload priorityPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "priority required"))
		return
	}

	incident, err := h.service.SetPriority(c.Request.Context(), c.Param("id"), models.IncidentPriority(payload.Priority), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incident, nil)
}

// Get godoc
// @Summary Get incident report
// @Tags Incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /incidents/{id} [get]
func (h *IncidentHandler) Get(c *gin.Context) {
	incident, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incident, nil)
}

// List godoc
// @Summary List incident reports
// @Tags Incidents
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Comma separated types"
// @Param priority query string false "Comma separated priorities"
// @Param reporter_id query string false "Reporter ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /incidents [get]
func (h *IncidentHandler) List(c *gin.Context) {
	req := service.IncidentListRequest{
		Statuses:   splitParam(c.Query("status")),
		Types:      splitParam(c.Query("type")),
		Priorities: splitParam(c.Query("priority")),
		ReporterID: c.Query("reporter_id"),
		Page:       intParam(c, "page", 1),
		PageSize:   intParam(c, "page_size", 50),
	}
	if from, ok := timeParam(c, "date_from"); ok {
		req.DateFrom = &from
	}
	if to, ok := timeParam(c, "date_to"); ok {
		req.DateTo = &to
	}

	incidents, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, incidents, pagination)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func intParam(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func timeParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, false
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return value, true
}
