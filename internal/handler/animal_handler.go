package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/service"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/response"
)

// AnimalHandler wires HTTP endpoints to the animal custody service.
type AnimalHandler struct {
	service *service.AnimalService
}

// NewAnimalHandler creates a new handler.
func NewAnimalHandler(svc *service.AnimalService) *AnimalHandler {
	return &AnimalHandler{service: svc}
}

// Intake godoc
// @Summary Register captured animal
// @Description Take a captured animal into shelter custody
// @Tags Animals
// @Accept json
// @Produce json
// @Param payload body service.IntakeRequest true "Intake payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /animals [post]
func (h *AnimalHandler) Intake(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.IntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid intake payload"))
		return
	}

	animal, err := h.service.Intake(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, animal)
}

type observationPayload struct {
	Note string `json:"note" binding:"required"`
}

// MoveToObservation godoc
// @Summary Move animal under observation
// @Tags Animals
// @Accept json
// @Produce json
// @Param id path string true "Animal ID"
// @Param payload body observationPayload true "Observation note"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /animals/{id}/observe [post]
func (h *AnimalHandler) MoveToObservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload observationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "note required"))
		return
	}

	animal, err := h.service.MoveToObservation(c.Request.Context(), c.Param("id"), payload.Note, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, animal, nil)
}

// ReturnToCaptured godoc
// @Summary Return animal from observation
// @Tags Animals
// @Produce json
// @Param id path string true "Animal ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /animals/{id}/release-observation [post]
func (h *AnimalHandler) ReturnToCaptured(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	animal, err := h.service.ReturnToCaptured(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, animal, nil)
}

type listForAdoptionPayload struct {
	Override bool `json:"override"`
}

// ListForAdoption godoc
// @Summary Publish animal for adoption
// @Description Move a captured animal onto the adoption catalog. Animals with a registered owner are refused unless an admin overrides.
// @Tags Animals
// @Accept json
// @Produce json
// @Param id path string true "Animal ID"
// @Param payload body listForAdoptionPayload false "Override flag"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /animals/{id}/list-for-adoption [post]
func (h *AnimalHandler) ListForAdoption(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload listForAdoptionPayload
	_ = c.ShouldBindJSON(&payload)

	animal, err := h.service.ListForAdoption(c.Request.Context(), c.Param("id"), payload.Override, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, animal, nil)
}

type redeemPayload struct {
	OwnerContact string `json:"owner_contact" binding:"required"`
}

// Redeem godoc
// @Summary Redeem animal to owner
// @Tags Animals
// @Accept json
// @Produce json
// @Param id path string true "Animal ID"
// @Param payload body redeemPayload true "Owner contact"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /animals/{id}/redeem [post]
func (h *AnimalHandler) Redeem(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload redeemPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "owner contact required"))
		return
	}

	animal, err := h.service.Redeem(c.Request.Context(), c.Param("id"), payload.OwnerContact, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, animal, nil)
}

// Adopt godoc
// @Summary Complete adoption
// @Tags Animals
// @Produce json
// @Param id path string true "Animal ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /animals/{id}/adopt [post]
func (h *AnimalHandler) Adopt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	animal, err := h.service.Adopt(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, animal, nil)
}

// Observations godoc
// @Summary Get observation log
// @Tags Animals
// @Produce json
// @Param id path string true "Animal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /animals/{id}/observations [get]
func (h *AnimalHandler) Observations(c *gin.Context) {
	entries, err := h.service.Observations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Get godoc
// @Summary Get animal
// @Tags Animals
// @Produce json
// @Param id path string true "Animal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /animals/{id} [get]
func (h *AnimalHandler) Get(c *gin.Context) {
	animal, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, animal, nil)
}

// List godoc
// @Summary List animals
// @Tags Animals
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param species query string false "Species"
// @Param rfid_only query bool false "Only tagged animals"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /animals [get]
func (h *AnimalHandler) List(c *gin.Context) {
	req := service.AnimalListRequest{
		Statuses: splitParam(c.Query("status")),
		Species:  c.Query("species"),
		RFIDOnly: c.Query("rfid_only") == "true",
		Page:     intParam(c, "page", 1),
		PageSize: intParam(c, "page_size", 50),
	}

	animals, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, animals, pagination)
}
