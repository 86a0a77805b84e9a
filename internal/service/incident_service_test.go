package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/events"
	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
	"github.com/straywatch/straywatch-api/pkg/locks"
)

type incidentRepoStub struct {
	incidents map[string]*models.IncidentReport
	seq       int
	createErr error
	getErr    error
	updateErr error
}

func newIncidentRepoStub(seed ...*models.IncidentReport) *incidentRepoStub {
	stub := &incidentRepoStub{incidents: make(map[string]*models.IncidentReport)}
	for _, incident := range seed {
		stub.incidents[incident.ID] = incident
	}
	return stub
}

func (s *incidentRepoStub) Create(ctx context.Context, incident *models.IncidentReport) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	if incident.ID == "" {
		incident.ID = fmt.Sprintf("incident-%d", s.seq)
	}
	now := time.Now().UTC()
	if incident.SubmittedAt.IsZero() {
		incident.SubmittedAt = now
	}
	incident.TransitionedAt = incident.SubmittedAt
	incident.CreatedAt = now
	s.incidents[incident.ID] = incident
	return nil
}

func (s *incidentRepoStub) GetByID(ctx context.Context, id string) (*models.IncidentReport, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	incident, ok := s.incidents[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *incident
	return &copied, nil
}

func (s *incidentRepoStub) UpdateStatus(ctx context.Context, id string, from, to models.IncidentStatus, transitionedAt time.Time) (bool, error) {
	if s.updateErr != nil {
		return false, s.updateErr
	}
	incident, ok := s.incidents[id]
	if !ok || incident.Status != from {
		return false, nil
	}
	incident.Status = to
	incident.TransitionedAt = transitionedAt
	return true, nil
}

func (s *incidentRepoStub) UpdatePriority(ctx context.Context, id string, priority models.IncidentPriority) error {
	if incident, ok := s.incidents[id]; ok {
		incident.Priority = priority
	}
	return nil
}

func (s *incidentRepoStub) List(ctx context.Context, filter models.IncidentFilter) ([]models.IncidentReport, int, error) {
	result := make([]models.IncidentReport, 0, len(s.incidents))
	for _, incident := range s.incidents {
		result = append(result, *incident)
	}
	return result, len(result), nil
}

type auditLogStub struct {
	entries []*models.AuditEntry
	err     error
}

func (s *auditLogStub) Append(ctx context.Context, entry *models.AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

type staffLookupStub struct {
	staffID string
	err     error
}

func (s *staffLookupStub) LatestStaffID(ctx context.Context, incidentID string) (string, error) {
	return s.staffID, s.err
}

func recordedBus() (*events.Bus, *[]events.Event) {
	bus := events.NewBus(nil)
	captured := &[]events.Event{}
	bus.Subscribe(func(ctx context.Context, event events.Event) error {
		*captured = append(*captured, event)
		return nil
	})
	return bus, captured
}

func newIncidentServiceForTest(repo *incidentRepoStub, audit *auditLogStub, staff *staffLookupStub) (*IncidentService, *[]events.Event) {
	bus, captured := recordedBus()
	svc := NewIncidentService(repo, audit, staff, locks.NewMemoryLocker(time.Second), bus, nil, nil)
	return svc, captured
}

func pendingIncident(id string, reporterID *string) *models.IncidentReport {
	return &models.IncidentReport{
		ID:           id,
		ReporterID:   reporterID,
		IncidentType: models.IncidentTypeStray,
		Priority:     models.PriorityMedium,
		Status:       models.IncidentPendingVerification,
		Address:      "Jl. Merdeka 12",
		Latitude:     -6.2,
		Longitude:    106.8,
		Description:  "stray dog near the market",
		IncidentDate: time.Now().UTC().Add(-time.Hour),
		SubmittedAt:  time.Now().UTC().Add(-time.Hour),
	}
}

func TestIncidentServiceSubmitDefaultsPriority(t *testing.T) {
	repo := newIncidentRepoStub()
	svc, captured := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	reporterID := "user-1"
	incident, err := svc.Submit(context.Background(), SubmitIncidentRequest{
		IncidentType: string(models.IncidentTypeStray),
		Address:      "Jl. Merdeka 12",
		Latitude:     -6.2,
		Longitude:    106.8,
		Description:  "stray dog near the market",
		IncidentDate: time.Now().UTC(),
	}, &reporterID)

	require.NoError(t, err)
	assert.Equal(t, models.IncidentPendingVerification, incident.Status)
	assert.Equal(t, models.PriorityMedium, incident.Priority)
	require.Len(t, *captured, 1)
	event := (*captured)[0]
	assert.Equal(t, events.IncidentSubmitted, event.Type)
	assert.Equal(t, incident.ID, event.SourceID)
	assert.Equal(t, "user-1", event.ReporterID)
}

func TestIncidentServiceSubmitAnonymous(t *testing.T) {
	repo := newIncidentRepoStub()
	svc, captured := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	incident, err := svc.Submit(context.Background(), SubmitIncidentRequest{
		IncidentType: string(models.IncidentTypeBite),
		Priority:     string(models.PriorityUrgent),
		Address:      "Jl. Sudirman 3",
		Latitude:     -6.21,
		Longitude:    106.81,
		Description:  "aggressive dog bit a pedestrian",
		IncidentDate: time.Now().UTC(),
	}, nil)

	require.NoError(t, err)
	assert.Nil(t, incident.ReporterID)
	assert.Equal(t, models.PriorityUrgent, incident.Priority)
	require.Len(t, *captured, 1)
	assert.Empty(t, (*captured)[0].ReporterID)
}

func TestIncidentServiceSubmitValidation(t *testing.T) {
	svc, captured := newIncidentServiceForTest(newIncidentRepoStub(), &auditLogStub{}, nil)

	_, err := svc.Submit(context.Background(), SubmitIncidentRequest{
		IncidentType: "earthquake",
		Address:      "Jl. Merdeka 12",
		Latitude:     -6.2,
		Longitude:    106.8,
		Description:  "not an animal incident",
		IncidentDate: time.Now().UTC(),
	}, nil)

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, *captured)
}

func TestIncidentServiceApprove(t *testing.T) {
	reporterID := "user-1"
	repo := newIncidentRepoStub(pendingIncident("incident-1", &reporterID))
	audit := &auditLogStub{}
	svc, captured := newIncidentServiceForTest(repo, audit, nil)

	result, err := svc.Transition(context.Background(), "incident-1", models.IncidentEventApprove,
		models.Actor{ID: "vet-1", Role: models.RoleVeterinarian})

	require.NoError(t, err)
	assert.Equal(t, models.IncidentVerified, result.Status)
	assert.Equal(t, models.IncidentVerified, repo.incidents["incident-1"].Status)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditEntityIncident, audit.entries[0].EntityType)
	assert.Equal(t, "approve", audit.entries[0].Event)
	assert.Equal(t, string(models.IncidentPendingVerification), audit.entries[0].FromStatus)
	assert.Equal(t, string(models.IncidentVerified), audit.entries[0].ToStatus)

	require.Len(t, *captured, 1)
	event := (*captured)[0]
	assert.Equal(t, events.IncidentVerified, event.Type)
	assert.Equal(t, "user-1", event.ReporterID)
}

func TestIncidentServiceApproveRoleForbidden(t *testing.T) {
	repo := newIncidentRepoStub(pendingIncident("incident-1", nil))
	svc, captured := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	_, err := svc.Transition(context.Background(), "incident-1", models.IncidentEventApprove,
		models.Actor{ID: "catcher-1", Role: models.RoleCatcher})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, models.IncidentPendingVerification, repo.incidents["incident-1"].Status)
	assert.Empty(t, *captured)
}

func TestIncidentServiceApproveFromVerified(t *testing.T) {
	incident := pendingIncident("incident-1", nil)
	incident.Status = models.IncidentVerified
	repo := newIncidentRepoStub(incident)
	svc, captured := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	_, err := svc.Transition(context.Background(), "incident-1", models.IncidentEventApprove,
		models.Actor{ID: "vet-1", Role: models.RoleVeterinarian})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
	assert.Empty(t, *captured)
}

func TestIncidentServiceTransitionNotFound(t *testing.T) {
	svc, _ := newIncidentServiceForTest(newIncidentRepoStub(), &auditLogStub{}, nil)

	_, err := svc.Transition(context.Background(), "missing", models.IncidentEventApprove,
		models.Actor{ID: "vet-1", Role: models.RoleVeterinarian})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestIncidentServiceCloseCarriesAssignedStaff(t *testing.T) {
	reporterID := "user-1"
	incident := pendingIncident("incident-1", &reporterID)
	incident.Status = models.IncidentInProgress
	repo := newIncidentRepoStub(incident)
	svc, captured := newIncidentServiceForTest(repo, &auditLogStub{}, &staffLookupStub{staffID: "catcher-7"})

	result, err := svc.Transition(context.Background(), "incident-1", models.IncidentEventClose,
		models.Actor{ID: "admin-1", Role: models.RoleAdmin})

	require.NoError(t, err)
	assert.Equal(t, models.IncidentResolved, result.Status)
	require.Len(t, *captured, 1)
	event := (*captured)[0]
	assert.Equal(t, events.IncidentResolved, event.Type)
	assert.Equal(t, "catcher-7", event.StaffID)
	assert.Equal(t, "user-1", event.ReporterID)
}

func TestIncidentServiceTransitionBusy(t *testing.T) {
	repo := newIncidentRepoStub(pendingIncident("incident-1", nil))
	bus, _ := recordedBus()
	locker := locks.NewMemoryLocker(50 * time.Millisecond)
	svc := NewIncidentService(repo, &auditLogStub{}, nil, locker, bus, nil, nil)

	release, err := locker.Acquire(context.Background(), "incident:incident-1")
	require.NoError(t, err)
	defer release()

	_, err = svc.Transition(context.Background(), "incident-1", models.IncidentEventApprove,
		models.Actor{ID: "vet-1", Role: models.RoleVeterinarian})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusy))
}

func TestIncidentServiceSetPriority(t *testing.T) {
	repo := newIncidentRepoStub(pendingIncident("incident-1", nil))
	svc, _ := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	incident, err := svc.SetPriority(context.Background(), "incident-1", models.PriorityUrgent,
		models.Actor{ID: "vet-1", Role: models.RoleVeterinarian})

	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, incident.Priority)
	assert.Equal(t, models.PriorityUrgent, repo.incidents["incident-1"].Priority)
}

func TestIncidentServiceSetPriorityRoleGate(t *testing.T) {
	repo := newIncidentRepoStub(pendingIncident("incident-1", nil))
	svc, _ := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	_, err := svc.SetPriority(context.Background(), "incident-1", models.PriorityHigh,
		models.Actor{ID: "catcher-1", Role: models.RoleCatcher})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestIncidentServiceSetPriorityOnClosedIncident(t *testing.T) {
	incident := pendingIncident("incident-1", nil)
	incident.Status = models.IncidentResolved
	repo := newIncidentRepoStub(incident)
	svc, _ := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	_, err := svc.SetPriority(context.Background(), "incident-1", models.PriorityHigh,
		models.Actor{ID: "admin-1", Role: models.RoleAdmin})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition))
}

func TestIncidentServiceSetPriorityUnknownValue(t *testing.T) {
	svc, _ := newIncidentServiceForTest(newIncidentRepoStub(), &auditLogStub{}, nil)

	_, err := svc.SetPriority(context.Background(), "incident-1", models.IncidentPriority("extreme"),
		models.Actor{ID: "admin-1", Role: models.RoleAdmin})

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestIncidentServiceOnlyTableEdgesAreAccepted(t *testing.T) {
	statuses := []models.IncidentStatus{
		models.IncidentPendingVerification,
		models.IncidentVerified,
		models.IncidentRejected,
		models.IncidentInProgress,
		models.IncidentResolved,
	}
	incidentEvents := []models.IncidentEvent{
		models.IncidentEventApprove,
		models.IncidentEventReject,
		models.IncidentEventDispatch,
		models.IncidentEventClose,
	}

	for _, status := range statuses {
		for _, event := range incidentEvents {
			incident := pendingIncident("incident-1", nil)
			incident.Status = status
			repo := newIncidentRepoStub(incident)
			svc, _ := newIncidentServiceForTest(repo, &auditLogStub{}, &staffLookupStub{})

			result, err := svc.Transition(context.Background(), "incident-1", event, adminActor)

			edge := models.IncidentTransitions[event]
			if edge.From == status {
				require.NoError(t, err, "%s from %s", event, status)
				assert.Equal(t, edge.To, result.Status)
			} else {
				require.Error(t, err, "%s from %s", event, status)
				assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTransition), "%s from %s", event, status)
				assert.Equal(t, status, repo.incidents["incident-1"].Status)
			}
		}
	}
}

func TestIncidentServiceList(t *testing.T) {
	repo := newIncidentRepoStub(pendingIncident("incident-1", nil), pendingIncident("incident-2", nil))
	svc, _ := newIncidentServiceForTest(repo, &auditLogStub{}, nil)

	incidents, pagination, err := svc.List(context.Background(), IncidentListRequest{})

	require.NoError(t, err)
	assert.Len(t, incidents, 2)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}
