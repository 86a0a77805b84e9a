package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/service"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/response"
)

// PatrolHandler wires HTTP endpoints to the patrol dispatch service.
type PatrolHandler struct {
	service *service.PatrolService
}

// NewPatrolHandler creates a new handler.
func NewPatrolHandler(svc *service.PatrolService) *PatrolHandler {
	return &PatrolHandler{service: svc}
}

// Assign godoc
// @Summary Dispatch patrol
// @Description Assign a catcher to a verified incident, or re-dispatch one whose previous patrol completed without a capture
// @Tags Patrols
// @Accept json
// @Produce json
// @Param payload body service.AssignRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /patrols [post]
func (h *PatrolHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.service.Assign(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UpdateStatus godoc
// @Summary Update patrol status
// @Description Advance an assignment through its lifecycle. Completing requires an outcome.
// @Tags Patrols
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /patrols/{id}/status [patch]
func (h *PatrolHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	assignment, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Get godoc
// @Summary Get assignment
// @Tags Patrols
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /patrols/{id} [get]
func (h *PatrolHandler) Get(c *gin.Context) {
	assignment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// List godoc
// @Summary List assignments
// @Tags Patrols
// @Produce json
// @Param incident_id query string false "Incident ID"
// @Param staff_id query string false "Staff ID"
// @Param active_only query bool false "Only active assignments"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /patrols [get]
func (h *PatrolHandler) List(c *gin.Context) {
	req := service.PatrolListRequest{
		IncidentID: c.Query("incident_id"),
		StaffID:    c.Query("staff_id"),
		ActiveOnly: c.Query("active_only") == "true",
		Page:       intParam(c, "page", 1),
		PageSize:   intParam(c, "page_size", 50),
	}

	assignments, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}
