package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/locks"
)

type patrolRepository interface {
	Create(ctx context.Context, assignment *models.PatrolAssignment) error
	GetByID(ctx context.Context, id string) (*models.PatrolAssignment, error)
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus, outcome *models.PatrolOutcome, completedAt *time.Time) error
	FindActiveByIncident(ctx context.Context, incidentID string) (*models.PatrolAssignment, error)
	CountActiveOverlapByStaff(ctx context.Context, staffID string, scheduledTime time.Time, window time.Duration) (int, error)
	List(ctx context.Context, filter models.PatrolFilter) ([]models.PatrolAssignment, int, error)
}

// staffOverlapWindow bounds how close two patrols of the same catcher may be
// scheduled before they count as overlapping.
const staffOverlapWindow = 2 * time.Hour

// PatrolService binds catchers to verified incidents and tracks patrol
// outcomes. The uniqueness check and the assignment insert both run under the
// incident's entity lock, so two concurrent assigns cannot both succeed.
type PatrolService struct {
	repo      patrolRepository
	incidents *IncidentService
	animals   *AnimalService
	audit     auditAppender
	locker    locks.Locker
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPatrolService constructs the service.
func NewPatrolService(repo patrolRepository, incidents *IncidentService, animals *AnimalService, audit auditAppender, locker locks.Locker, validate *validator.Validate, logger *zap.Logger) *PatrolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PatrolService{
		repo:      repo,
		incidents: incidents,
		animals:   animals,
		audit:     audit,
		locker:    locker,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	registerEnumValidators(svc.validator)
	return svc
}

// AssignRequest describes a dispatch request.
type AssignRequest struct {
	IncidentID    string    `json:"incident_id" validate:"required"`
	StaffID       string    `json:"staff_id" validate:"required"`
	ScheduledTime time.Time `json:"scheduled_time" validate:"required"`
}

// Assign creates a patrol assignment and moves a verified incident to
// in_progress. An in_progress incident whose previous patrol completed with a
// rescheduled or not_found outcome has no active assignment and may be
// dispatched again.
func (s *PatrolService) Assign(ctx context.Context, req AssignRequest, actor models.Actor) (*models.PatrolAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	release, err := s.locker.Acquire(ctx, "incident:"+req.IncidentID)
	if err != nil {
		return nil, err
	}
	defer release()

	incident, err := s.incidents.getIncident(ctx, req.IncidentID)
	if err != nil {
		return nil, err
	}
	switch incident.Status {
	case models.IncidentVerified, models.IncidentInProgress:
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			"incident cannot be dispatched from "+string(incident.Status))
	}
	if !roleAllowed(actor.Role, models.IncidentTransitions[models.IncidentEventDispatch].AllowedRoles) {
		return nil, appErrors.Clone(appErrors.ErrForbidden,
			"role "+string(actor.Role)+" may not "+string(models.IncidentEventDispatch))
	}

	active, err := s.repo.FindActiveByIncident(ctx, req.IncidentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active assignment")
	}
	if active != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "incident already has an active assignment")
	}

	overlaps, err := s.repo.CountActiveOverlapByStaff(ctx, req.StaffID, req.ScheduledTime, staffOverlapWindow)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check staff schedule")
	}
	if overlaps > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "staff member has an overlapping active assignment")
	}

	// The incident moves before the assignment row is written. A failed
	// insert then leaves an in_progress incident with a free slot, which a
	// retried assign picks up, never an orphan assignment blocking it.
	if incident.Status == models.IncidentVerified {
		if _, err := s.incidents.transitionLocked(ctx, incident, models.IncidentEventDispatch, actor, req.StaffID); err != nil {
			return nil, err
		}
	}

	assignment := &models.PatrolAssignment{
		IncidentID:    req.IncidentID,
		StaffID:       req.StaffID,
		ScheduledTime: req.ScheduledTime,
		Status:        models.AssignmentScheduled,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	if err := s.audit.Append(ctx, &models.AuditEntry{
		EntityType: models.AuditEntityAssignment,
		EntityID:   assignment.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Event:      "assign",
		ToStatus:   string(models.AssignmentScheduled),
		CreatedAt:  assignment.CreatedAt,
	}); err != nil {
		s.logger.Warn("failed to append audit entry", zap.String("assignment_id", assignment.ID), zap.Error(err))
	}
	return assignment, nil
}

// UpdateStatusRequest describes an assignment status change.
type UpdateStatusRequest struct {
	Status  string  `json:"status" validate:"required"`
	Outcome *string `json:"outcome" validate:"omitempty,patrol_outcome"`
}

// UpdateStatus advances an assignment through scheduled, in_progress and
// completed. Outcome is required exactly when completing. A captured outcome
// seeds a new animal record and resolves the incident; not_found leaves
// closure to the caller; rescheduled frees the incident slot for a fresh
// assignment.
func (s *PatrolService) UpdateStatus(ctx context.Context, assignmentID string, req UpdateStatusRequest, actor models.Actor) (*models.PatrolAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target := models.AssignmentStatus(req.Status)

	release, err := s.locker.Acquire(ctx, "assignment:"+assignmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	assignment, err := s.getAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && actor.ID != assignment.StaffID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned catcher or an admin may update the assignment")
	}
	if next, ok := models.AssignmentNext[assignment.Status]; !ok || next != target {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"assignment cannot move from "+string(assignment.Status)+" to "+string(target))
	}

	var outcome *models.PatrolOutcome
	var completedAt *time.Time
	if target == models.AssignmentCompleted {
		if req.Outcome == nil || *req.Outcome == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "outcome is required when completing an assignment")
		}
		value := models.PatrolOutcome(*req.Outcome)
		outcome = &value
		now := s.now()
		completedAt = &now
	} else if req.Outcome != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome is only valid when completing an assignment")
	}

	if err := s.repo.UpdateStatus(ctx, assignmentID, target, outcome, completedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}

	if err := s.audit.Append(ctx, &models.AuditEntry{
		EntityType: models.AuditEntityAssignment,
		EntityID:   assignmentID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Event:      "update_status",
		FromStatus: string(assignment.Status),
		ToStatus:   string(target),
		CreatedAt:  s.now(),
	}); err != nil {
		s.logger.Warn("failed to append audit entry", zap.String("assignment_id", assignmentID), zap.Error(err))
	}

	assignment.Status = target
	assignment.Outcome = outcome
	assignment.CompletedAt = completedAt

	if outcome != nil && *outcome == models.OutcomeCaptured {
		if err := s.closeCapturedIncident(ctx, assignment, actor); err != nil {
			return nil, err
		}
	}
	return assignment, nil
}

// closeCapturedIncident seeds an animal record from the incident and resolves
// it. Runs under the incident lock; the assignment lock is already held, and
// nothing acquires them in the opposite order.
func (s *PatrolService) closeCapturedIncident(ctx context.Context, assignment *models.PatrolAssignment, actor models.Actor) error {
	release, err := s.locker.Acquire(ctx, "incident:"+assignment.IncidentID)
	if err != nil {
		return err
	}
	defer release()

	incident, err := s.incidents.getIncident(ctx, assignment.IncidentID)
	if err != nil {
		return err
	}
	if _, err := s.animals.IntakeFromIncident(ctx, incident, models.Actor{ID: assignment.StaffID, Role: models.RoleCatcher}); err != nil {
		return err
	}
	if _, err := s.incidents.transitionLocked(ctx, incident, models.IncidentEventClose, actor, assignment.StaffID); err != nil {
		return err
	}
	return nil
}

// Get returns one assignment.
func (s *PatrolService) Get(ctx context.Context, assignmentID string) (*models.PatrolAssignment, error) {
	return s.getAssignment(ctx, assignmentID)
}

// PatrolListRequest describes filters for listing assignments.
type PatrolListRequest struct {
	IncidentID string `json:"incident_id"`
	StaffID    string `json:"staff_id"`
	ActiveOnly bool   `json:"active_only"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

// List returns assignments with pagination.
func (s *PatrolService) List(ctx context.Context, req PatrolListRequest) ([]models.PatrolAssignment, *models.Pagination, error) {
	filter := models.PatrolFilter{
		IncidentID: req.IncidentID,
		StaffID:    req.StaffID,
		ActiveOnly: req.ActiveOnly,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return assignments, pagination, nil
}

func (s *PatrolService) getAssignment(ctx context.Context, assignmentID string) (*models.PatrolAssignment, error) {
	assignment, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch assignment")
	}
	return assignment, nil
}
