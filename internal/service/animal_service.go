package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/straywatch/straywatch-api/internal/events"
	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/locks"
)

type animalRepository interface {
	Create(ctx context.Context, animal *models.Animal) error
	GetByID(ctx context.Context, id string) (*models.Animal, error)
	UpdateStatus(ctx context.Context, id string, from, to models.AnimalStatus, ownerContact *string, transitionedAt time.Time) (bool, error)
	AppendObservation(ctx context.Context, entry *models.ObservationEntry) error
	ListObservations(ctx context.Context, animalID string) ([]models.ObservationEntry, error)
	List(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, int, error)
}

type rfidLookup interface {
	FindByTag(ctx context.Context, rfid string) (*models.RFIDBinding, error)
}

// AnimalService governs the captured-animal state machine and its append-only
// observation log.
type AnimalService struct {
	repo      animalRepository
	rfid      rfidLookup
	audit     auditAppender
	locker    locks.Locker
	bus       *events.Bus
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnimalService constructs the service.
func NewAnimalService(repo animalRepository, rfid rfidLookup, audit auditAppender, locker locks.Locker, bus *events.Bus, validate *validator.Validate, logger *zap.Logger) *AnimalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AnimalService{
		repo:      repo,
		rfid:      rfid,
		audit:     audit,
		locker:    locker,
		bus:       bus,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	registerEnumValidators(svc.validator)
	return svc
}

// IntakeRequest describes a manual intake at the shelter.
type IntakeRequest struct {
	RFID            string `json:"rfid" validate:"omitempty,rfid"`
	Name            string `json:"name"`
	Species         string `json:"species" validate:"required"`
	Breed           string `json:"breed"`
	Sex             string `json:"sex" validate:"required,animal_sex"`
	Color           string `json:"color"`
	Markings        string `json:"markings"`
	Neutered        bool   `json:"neutered"`
	CaptureLocation string `json:"capture_location" validate:"required"`
}

// Intake registers a captured animal. When the tag resolves to a registered
// pet, the owner is notified through the fan-out layer.
func (s *AnimalService) Intake(ctx context.Context, req IntakeRequest, actor models.Actor) (*models.Animal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid intake payload")
	}
	animal := &models.Animal{
		Name:            req.Name,
		Species:         req.Species,
		Breed:           req.Breed,
		Sex:             models.AnimalSex(req.Sex),
		Color:           req.Color,
		Markings:        req.Markings,
		Neutered:        req.Neutered,
		Status:          models.AnimalCaptured,
		CaptureLocation: req.CaptureLocation,
		CapturedBy:      actor.ID,
	}
	if req.RFID != "" {
		rfid := req.RFID
		animal.RFID = &rfid
	}
	return s.createAnimal(ctx, animal, actor)
}

// IntakeFromIncident seeds an animal record from a resolved incident's
// description fields. Used by the dispatcher when a patrol reports a capture.
func (s *AnimalService) IntakeFromIncident(ctx context.Context, incident *models.IncidentReport, actor models.Actor) (*models.Animal, error) {
	animal := &models.Animal{
		Species:         "unknown",
		Sex:             models.AnimalSexUnknown,
		Markings:        incident.AnimalDetails,
		Status:          models.AnimalCaptured,
		CaptureLocation: incident.Address,
		CapturedBy:      actor.ID,
		IncidentID:      &incident.ID,
	}
	return s.createAnimal(ctx, animal, actor)
}

func (s *AnimalService) createAnimal(ctx context.Context, animal *models.Animal, actor models.Actor) (*models.Animal, error) {
	ownerID, err := s.ownerBinding(ctx, animal)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, animal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create animal")
	}

	if err := s.audit.Append(ctx, &models.AuditEntry{
		EntityType: models.AuditEntityAnimal,
		EntityID:   animal.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Event:      "intake",
		ToStatus:   string(models.AnimalCaptured),
		CreatedAt:  animal.CreatedAt,
	}); err != nil {
		s.logger.Warn("failed to append audit entry", zap.String("animal_id", animal.ID), zap.Error(err))
	}

	s.bus.Publish(ctx, events.Event{
		Type:        events.AnimalIntake,
		SourceType:  models.SourceAnimal,
		SourceID:    animal.ID,
		Actor:       actor,
		OccurredAt:  animal.CreatedAt,
		RFIDOwnerID: ownerID,
	})
	return animal, nil
}

// MoveToObservation moves a captured animal under observation and appends an
// observation log entry.
func (s *AnimalService) MoveToObservation(ctx context.Context, animalID, note string, actor models.Actor) (*models.Animal, error) {
	return s.observationShift(ctx, animalID, note, actor, models.AnimalCaptured, models.AnimalUnderObservation, "move_to_observation")
}

// ReturnToCaptured is the inverse of MoveToObservation and is always legal
// from under_observation.
func (s *AnimalService) ReturnToCaptured(ctx context.Context, animalID string, actor models.Actor) (*models.Animal, error) {
	return s.observationShift(ctx, animalID, "returned from observation", actor, models.AnimalUnderObservation, models.AnimalCaptured, "return_to_captured")
}

func (s *AnimalService) observationShift(ctx context.Context, animalID, note string, actor models.Actor, from, to models.AnimalStatus, event string) (*models.Animal, error) {
	release, err := s.locker.Acquire(ctx, "animal:"+animalID)
	if err != nil {
		return nil, err
	}
	defer release()

	animal, err := s.getAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	if animal.Status != from {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"animal is "+string(animal.Status)+", expected "+string(from))
	}

	transitionedAt := s.now()
	if err := s.applyStatus(ctx, animal, to, nil, transitionedAt, actor, event); err != nil {
		return nil, err
	}

	if err := s.repo.AppendObservation(ctx, &models.ObservationEntry{
		AnimalID:   animalID,
		Date:       transitionedAt,
		Notes:      note,
		Status:     to,
		RecordedBy: actor.ID,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append observation")
	}

	s.bus.Publish(ctx, events.Event{
		Type:       events.AnimalObserved,
		SourceType: models.SourceAnimal,
		SourceID:   animalID,
		Actor:      actor,
		OccurredAt: transitionedAt,
	})

	animal.Status = to
	animal.TransitionedAt = transitionedAt
	return animal, nil
}

// ListForAdoption publishes a captured animal on the adoption catalog. An
// animal carrying an RFID tag is refused whether or not the registry resolves
// it; the default path for such animals is redemption, not adoption. An admin
// may override.
func (s *AnimalService) ListForAdoption(ctx context.Context, animalID string, override bool, actor models.Actor) (*models.Animal, error) {
	release, err := s.locker.Acquire(ctx, "animal:"+animalID)
	if err != nil {
		return nil, err
	}
	defer release()

	animal, err := s.getAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	if animal.Status != models.AnimalCaptured {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"animal is "+string(animal.Status)+", expected "+string(models.AnimalCaptured))
	}
	// A tag on the collar means a possible owner even when the registry has
	// no match yet, so the animal stays off the catalog until redeemed.
	if animal.RFID != nil {
		if !override || actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrOwnerBound, "animal has an owner binding, redeem instead")
		}
	}

	transitionedAt := s.now()
	if err := s.applyStatus(ctx, animal, models.AnimalAvailable, nil, transitionedAt, actor, "list_for_adoption"); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:       events.AnimalListed,
		SourceType: models.SourceAnimal,
		SourceID:   animalID,
		Actor:      actor,
		OccurredAt: transitionedAt,
	})

	animal.Status = models.AnimalAvailable
	animal.TransitionedAt = transitionedAt
	return animal, nil
}

// Redeem returns the animal to its verified owner. Legal from any non-terminal
// status; a late RFID match may pull an animal off the adoption list.
func (s *AnimalService) Redeem(ctx context.Context, animalID, ownerContact string, actor models.Actor) (*models.Animal, error) {
	if ownerContact == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "owner contact is required for redemption")
	}

	release, err := s.locker.Acquire(ctx, "animal:"+animalID)
	if err != nil {
		return nil, err
	}
	defer release()

	animal, err := s.getAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	if animal.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "animal already left custody")
	}
	ownerID, err := s.ownerBinding(ctx, animal)
	if err != nil {
		return nil, err
	}

	transitionedAt := s.now()
	if err := s.applyStatus(ctx, animal, models.AnimalRedeemed, &ownerContact, transitionedAt, actor, "redeem"); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:        events.AnimalRedeemed,
		SourceType:  models.SourceAnimal,
		SourceID:    animalID,
		Actor:       actor,
		OccurredAt:  transitionedAt,
		RFIDOwnerID: ownerID,
	})

	animal.Status = models.AnimalRedeemed
	animal.OwnerContact = &ownerContact
	animal.TransitionedAt = transitionedAt
	return animal, nil
}

// Adopt completes an adoption from the catalog.
func (s *AnimalService) Adopt(ctx context.Context, animalID string, actor models.Actor) (*models.Animal, error) {
	release, err := s.locker.Acquire(ctx, "animal:"+animalID)
	if err != nil {
		return nil, err
	}
	defer release()

	animal, err := s.getAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	if animal.Status != models.AnimalAvailable {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"animal is "+string(animal.Status)+", expected "+string(models.AnimalAvailable))
	}

	transitionedAt := s.now()
	if err := s.applyStatus(ctx, animal, models.AnimalAdopted, nil, transitionedAt, actor, "adopt"); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:       events.AnimalAdopted,
		SourceType: models.SourceAnimal,
		SourceID:   animalID,
		Actor:      actor,
		OccurredAt: transitionedAt,
		StaffID:    animal.CapturedBy,
	})

	animal.Status = models.AnimalAdopted
	animal.TransitionedAt = transitionedAt
	return animal, nil
}

func (s *AnimalService) applyStatus(ctx context.Context, animal *models.Animal, to models.AnimalStatus, ownerContact *string, transitionedAt time.Time, actor models.Actor, event string) error {
	updated, err := s.repo.UpdateStatus(ctx, animal.ID, animal.Status, to, ownerContact, transitionedAt)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist transition")
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "animal status changed concurrently")
	}
	if err := s.audit.Append(ctx, &models.AuditEntry{
		EntityType: models.AuditEntityAnimal,
		EntityID:   animal.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Event:      event,
		FromStatus: string(animal.Status),
		ToStatus:   string(to),
		CreatedAt:  transitionedAt,
	}); err != nil {
		s.logger.Warn("failed to append audit entry", zap.String("animal_id", animal.ID), zap.Error(err))
	}
	return nil
}

// Observations returns the append-only log in chronological order.
func (s *AnimalService) Observations(ctx context.Context, animalID string) ([]models.ObservationEntry, error) {
	if _, err := s.getAnimal(ctx, animalID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListObservations(ctx, animalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list observations")
	}
	return entries, nil
}

// Get returns one animal.
func (s *AnimalService) Get(ctx context.Context, animalID string) (*models.Animal, error) {
	return s.getAnimal(ctx, animalID)
}

// AnimalListRequest describes filters for listing animals.
type AnimalListRequest struct {
	Statuses []string `json:"statuses"`
	Species  string   `json:"species"`
	RFIDOnly bool     `json:"rfid_only"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// List returns animals with pagination.
func (s *AnimalService) List(ctx context.Context, req AnimalListRequest) ([]models.Animal, *models.Pagination, error) {
	filter := models.AnimalFilter{
		Species:  req.Species,
		RFIDOnly: req.RFIDOnly,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	for _, raw := range req.Statuses {
		filter.Statuses = append(filter.Statuses, models.AnimalStatus(raw))
	}
	animals, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list animals")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return animals, pagination, nil
}

func (s *AnimalService) getAnimal(ctx context.Context, animalID string) (*models.Animal, error) {
	animal, err := s.repo.GetByID(ctx, animalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "animal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch animal")
	}
	return animal, nil
}

// ownerBinding resolves the animal's tag against the registry. A tag with no
// registry match is empty without error; lookup failures surface so callers
// fail closed instead of proceeding on a silently missing owner.
func (s *AnimalService) ownerBinding(ctx context.Context, animal *models.Animal) (string, error) {
	if animal.RFID == nil || s.rfid == nil {
		return "", nil
	}
	binding, err := s.rfid.FindByTag(ctx, *animal.RFID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve rfid binding")
	}
	return binding.OwnerID, nil
}
