package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/service"
	"github.com/straywatch/straywatch-api/pkg/response"
)

// AuditHandler exposes the transition audit trail.
type AuditHandler struct {
	service *service.AuditService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{service: svc}
}

// Trail godoc
// @Summary Get audit trail
// @Description Lists recorded transitions for an incident, animal or assignment
// @Tags Audit
// @Produce json
// @Param entity_type path string true "incident, animal or assignment"
// @Param id path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /audit/{entity_type}/{id} [get]
func (h *AuditHandler) Trail(c *gin.Context) {
	entries, err := h.service.Trail(c.Request.Context(), c.Param("entity_type"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
