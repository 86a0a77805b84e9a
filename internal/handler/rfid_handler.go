package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/service"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/response"
)

// RFIDHandler wires HTTP endpoints to the pet tag registry.
type RFIDHandler struct {
	service *service.RFIDService
}

// NewRFIDHandler creates a new handler.
func NewRFIDHandler(svc *service.RFIDService) *RFIDHandler {
	return &RFIDHandler{service: svc}
}

// Resolve godoc
// @Summary Resolve RFID tag
// @Description Look a 9-digit pet tag up in the registry
// @Tags RFID
// @Produce json
// @Param tag path string true "RFID tag"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rfid/{tag} [get]
func (h *RFIDHandler) Resolve(c *gin.Context) {
	result, err := h.service.Resolve(c.Request.Context(), c.Param("tag"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Register godoc
// @Summary Register RFID tag
// @Description Bind a 9-digit tag to a pet owner
// @Tags RFID
// @Accept json
// @Produce json
// @Param payload body service.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rfid [post]
func (h *RFIDHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	binding, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, binding)
}
