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

type incidentRepository interface {
	Create(ctx context.Context, incident *models.IncidentReport) error
	GetByID(ctx context.Context, id string) (*models.IncidentReport, error)
	UpdateStatus(ctx context.Context, id string, from, to models.IncidentStatus, transitionedAt time.Time) (bool, error)
	UpdatePriority(ctx context.Context, id string, priority models.IncidentPriority) error
	List(ctx context.Context, filter models.IncidentFilter) ([]models.IncidentReport, int, error)
}

type auditAppender interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}

type assignmentStaffLookup interface {
	LatestStaffID(ctx context.Context, incidentID string) (string, error)
}

// IncidentService governs the incident report state machine. Every transition
// runs under the incident's entity lock, appends an audit entry and publishes
// exactly one domain event after the status write commits.
type IncidentService struct {
	repo        incidentRepository
	audit       auditAppender
	assignments assignmentStaffLookup
	locker      locks.Locker
	bus         *events.Bus
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewIncidentService constructs the service.
func NewIncidentService(repo incidentRepository, audit auditAppender, assignments assignmentStaffLookup, locker locks.Locker, bus *events.Bus, validate *validator.Validate, logger *zap.Logger) *IncidentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &IncidentService{
		repo:        repo,
		audit:       audit,
		assignments: assignments,
		locker:      locker,
		bus:         bus,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	registerEnumValidators(svc.validator)
	return svc
}

// SubmitIncidentRequest describes the public submission payload.
type SubmitIncidentRequest struct {
	IncidentType  string    `json:"incident_type" validate:"required,incident_type"`
	Priority      string    `json:"priority" validate:"omitempty,incident_priority"`
	Address       string    `json:"address" validate:"required"`
	Latitude      float64   `json:"latitude" validate:"required"`
	Longitude     float64   `json:"longitude" validate:"required"`
	Description   string    `json:"description" validate:"required"`
	AnimalDetails string    `json:"animal_details"`
	IncidentDate  time.Time `json:"incident_date" validate:"required"`
}

// TransitionResult reports the outcome of a state machine transition.
type TransitionResult struct {
	Status         models.IncidentStatus `json:"status"`
	TransitionedAt time.Time             `json:"transitioned_at"`
}

// Submit creates a new incident report in pending_verification. A nil
// reporter records an anonymous submission.
func (s *IncidentService) Submit(ctx context.Context, req SubmitIncidentRequest, reporterID *string) (*models.IncidentReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid incident payload")
	}
	priority := models.IncidentPriority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	incident := &models.IncidentReport{
		ReporterID:    reporterID,
		IncidentType:  models.IncidentType(req.IncidentType),
		Priority:      priority,
		Status:        models.IncidentPendingVerification,
		Address:       req.Address,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Description:   req.Description,
		AnimalDetails: req.AnimalDetails,
		IncidentDate:  req.IncidentDate,
	}
	if err := s.repo.Create(ctx, incident); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create incident")
	}

	event := events.Event{
		Type:       events.IncidentSubmitted,
		SourceType: models.SourceIncident,
		SourceID:   incident.ID,
		OccurredAt: incident.SubmittedAt,
	}
	if reporterID != nil {
		event.Actor = models.Actor{ID: *reporterID, Role: models.RolePetOwner}
		event.ReporterID = *reporterID
	}
	s.bus.Publish(ctx, event)
	return incident, nil
}

// Transition applies a lifecycle event to an incident on behalf of an actor.
// Replaying an event against a state that no longer permits it fails with
// INVALID_TRANSITION; callers wanting idempotence must check status first.
func (s *IncidentService) Transition(ctx context.Context, incidentID string, event models.IncidentEvent, actor models.Actor) (*TransitionResult, error) {
	release, err := s.locker.Acquire(ctx, "incident:"+incidentID)
	if err != nil {
		return nil, err
	}
	defer release()

	incident, err := s.getIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	staffID := ""
	if event == models.IncidentEventClose && s.assignments != nil {
		if staffID, err = s.assignments.LatestStaffID(ctx, incidentID); err != nil {
			s.logger.Warn("failed to resolve assigned staff", zap.String("incident_id", incidentID), zap.Error(err))
			staffID = ""
		}
	}

	return s.transitionLocked(ctx, incident, event, actor, staffID)
}

// transitionLocked applies the transition check-and-set. The caller must hold
// the incident's entity lock.
func (s *IncidentService) transitionLocked(ctx context.Context, incident *models.IncidentReport, event models.IncidentEvent, actor models.Actor, staffID string) (*TransitionResult, error) {
	edge, ok := models.IncidentTransitions[event]
	if !ok || incident.Status != edge.From {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"event "+string(event)+" not allowed from status "+string(incident.Status))
	}
	if !roleAllowed(actor.Role, edge.AllowedRoles) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role "+string(actor.Role)+" may not "+string(event))
	}

	transitionedAt := s.now()
	updated, err := s.repo.UpdateStatus(ctx, incident.ID, edge.From, edge.To, transitionedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist transition")
	}
	if !updated {
		// Row moved between read and write despite the lock; treat as a
		// replay against a stale status.
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "incident status changed concurrently")
	}

	if err := s.audit.Append(ctx, &models.AuditEntry{
		EntityType: models.AuditEntityIncident,
		EntityID:   incident.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Event:      string(event),
		FromStatus: string(edge.From),
		ToStatus:   string(edge.To),
		CreatedAt:  transitionedAt,
	}); err != nil {
		s.logger.Warn("failed to append audit entry", zap.String("incident_id", incident.ID), zap.Error(err))
	}

	domainEvent := events.Event{
		Type:       incidentEventTypes[event],
		SourceType: models.SourceIncident,
		SourceID:   incident.ID,
		Actor:      actor,
		OccurredAt: transitionedAt,
		StaffID:    staffID,
	}
	if incident.ReporterID != nil {
		domainEvent.ReporterID = *incident.ReporterID
	}
	s.bus.Publish(ctx, domainEvent)

	return &TransitionResult{Status: edge.To, TransitionedAt: transitionedAt}, nil
}

var incidentEventTypes = map[models.IncidentEvent]events.Type{
	models.IncidentEventApprove:  events.IncidentVerified,
	models.IncidentEventReject:   events.IncidentRejected,
	models.IncidentEventDispatch: events.IncidentDispatched,
	models.IncidentEventClose:    events.IncidentResolved,
}

// SetPriority reassigns incident priority. Only veterinarians and admins may
// do this, and only while the incident is not terminal.
func (s *IncidentService) SetPriority(ctx context.Context, incidentID string, priority models.IncidentPriority, actor models.Actor) (*models.IncidentReport, error) {
	if !roleAllowed(actor.Role, []models.UserRole{models.RoleVeterinarian, models.RoleAdmin}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only veterinarians and admins may reprioritise")
	}
	switch priority {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}

	release, err := s.locker.Acquire(ctx, "incident:"+incidentID)
	if err != nil {
		return nil, err
	}
	defer release()

	incident, err := s.getIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot reprioritise a closed incident")
	}
	if err := s.repo.UpdatePriority(ctx, incidentID, priority); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update priority")
	}
	incident.Priority = priority
	return incident, nil
}

// Get returns one incident report.
func (s *IncidentService) Get(ctx context.Context, incidentID string) (*models.IncidentReport, error) {
	return s.getIncident(ctx, incidentID)
}

// IncidentListRequest describes filters for listing incident reports.
type IncidentListRequest struct {
	Statuses   []string   `json:"statuses"`
	Types      []string   `json:"types"`
	Priorities []string   `json:"priorities"`
	ReporterID string     `json:"reporter_id"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// List returns incident reports with pagination.
func (s *IncidentService) List(ctx context.Context, req IncidentListRequest) ([]models.IncidentReport, *models.Pagination, error) {
	filter := models.IncidentFilter{
		ReporterID: req.ReporterID,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	for _, raw := range req.Statuses {
		filter.Statuses = append(filter.Statuses, models.IncidentStatus(raw))
	}
	for _, raw := range req.Types {
		filter.Types = append(filter.Types, models.IncidentType(raw))
	}
	for _, raw := range req.Priorities {
		filter.Priorities = append(filter.Priorities, models.IncidentPriority(raw))
	}
	incidents, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incidents")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return incidents, pagination, nil
}

func (s *IncidentService) getIncident(ctx context.Context, incidentID string) (*models.IncidentReport, error) {
	incident, err := s.repo.GetByID(ctx, incidentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "incident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch incident")
	}
	return incident, nil
}

func roleAllowed(role models.UserRole, allowed []models.UserRole) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}
