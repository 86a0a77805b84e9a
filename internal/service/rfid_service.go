package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/straywatch/straywatch-api/internal/dto"
	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

type rfidRepository interface {
	FindByTag(ctx context.Context, tag string) (*models.RFIDBinding, error)
	Create(ctx context.Context, binding *models.RFIDBinding) error
}

// RFIDService resolves registered pet tags to their owners. Tags are 9-digit
// strings; anything else is rejected before touching the registry.
type RFIDService struct {
	repo   rfidRepository
	logger *zap.Logger
}

// NewRFIDService constructs the service.
func NewRFIDService(repo rfidRepository, logger *zap.Logger) *RFIDService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RFIDService{repo: repo, logger: logger}
}

// Resolve looks a tag up in the registry.
func (s *RFIDService) Resolve(ctx context.Context, tag string) (*dto.RFIDLookupResponse, error) {
	if !rfidPattern.MatchString(tag) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rfid tag must be exactly 9 digits")
	}
	binding, err := s.repo.FindByTag(ctx, tag)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no registration found for tag")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve tag")
	}
	return &dto.RFIDLookupResponse{
		RFID:       binding.RFID,
		PetName:    binding.PetName,
		Species:    binding.Species,
		Breed:      binding.Breed,
		OwnerID:    binding.OwnerID,
		OwnerName:  binding.OwnerName,
		OwnerPhone: binding.OwnerPhone,
		OwnerEmail: binding.OwnerEmail,
	}, nil
}

// RegisterRequest describes a new tag registration.
type RegisterRequest struct {
	RFID       string `json:"rfid" validate:"required"`
	PetName    string `json:"pet_name" validate:"required"`
	Species    string `json:"species" validate:"required"`
	Breed      string `json:"breed"`
	OwnerID    string `json:"owner_id" validate:"required"`
	OwnerName  string `json:"owner_name" validate:"required"`
	OwnerPhone string `json:"owner_phone"`
	OwnerEmail string `json:"owner_email" validate:"omitempty,email"`
}

// Register binds a tag to an owner. A tag already in the registry conflicts.
func (s *RFIDService) Register(ctx context.Context, req RegisterRequest) (*models.RFIDBinding, error) {
	if !rfidPattern.MatchString(req.RFID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rfid tag must be exactly 9 digits")
	}
	if _, err := s.repo.FindByTag(ctx, req.RFID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tag is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check tag")
	}

	binding := &models.RFIDBinding{
		RFID:       req.RFID,
		PetName:    req.PetName,
		Species:    req.Species,
		Breed:      req.Breed,
		OwnerID:    req.OwnerID,
		OwnerName:  req.OwnerName,
		OwnerPhone: req.OwnerPhone,
		OwnerEmail: req.OwnerEmail,
	}
	if err := s.repo.Create(ctx, binding); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register tag")
	}
	return binding, nil
}
