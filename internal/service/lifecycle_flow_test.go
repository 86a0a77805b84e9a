package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/events"
	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/pkg/locks"
)

// Exercises the full happy path: a reported stray is verified, dispatched,
// captured in the field and closed, with fan-out delivering along the way.
func TestCapturePipeline(t *testing.T) {
	bus := events.NewBus(nil)
	locker := locks.NewMemoryLocker(time.Second)
	audit := &auditLogStub{}

	incidentRepo := newIncidentRepoStub()
	patrolRepo := newPatrolRepoStub()
	animalRepo := newAnimalRepoStub()
	notificationRepo := newNotificationRepoStub()
	staff := &staffDirectoryStub{ids: []string{"admin-1", "vet-1"}}

	incidentService := NewIncidentService(incidentRepo, audit, patrolRepo, locker, bus, nil, nil)
	animalService := NewAnimalService(animalRepo, &rfidLookupStub{}, audit, locker, bus, nil, nil)
	patrolService := NewPatrolService(patrolRepo, incidentService, animalService, audit, locker, nil, nil)
	notificationService := NewNotificationService(notificationRepo, staff, nil)

	var delivered []events.Event
	bus.Subscribe(func(ctx context.Context, event events.Event) error {
		delivered = append(delivered, event)
		return notificationService.OnEvent(ctx, event)
	})

	ctx := context.Background()
	reporterID := "owner-9"

	incident, err := incidentService.Submit(ctx, SubmitIncidentRequest{
		IncidentType:  string(models.IncidentTypeStray),
		Address:       "Jl. Merdeka 12",
		Latitude:      -6.2,
		Longitude:     106.8,
		Description:   "stray dog near the market",
		AnimalDetails: "brown dog, no collar",
		IncidentDate:  time.Now().UTC(),
	}, &reporterID)
	require.NoError(t, err)

	_, err = incidentService.Transition(ctx, incident.ID, models.IncidentEventApprove, vetActor)
	require.NoError(t, err)

	assignment, err := patrolService.Assign(ctx, AssignRequest{
		IncidentID:    incident.ID,
		StaffID:       "catcher-1",
		ScheduledTime: time.Now().UTC().Add(time.Hour),
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentInProgress, incidentRepo.incidents[incident.ID].Status)

	_, err = patrolService.UpdateStatus(ctx, assignment.ID, UpdateStatusRequest{
		Status: string(models.AssignmentInProgress),
	}, catcherActor)
	require.NoError(t, err)

	outcome := string(models.OutcomeCaptured)
	completed, err := patrolService.UpdateStatus(ctx, assignment.ID, UpdateStatusRequest{
		Status:  string(models.AssignmentCompleted),
		Outcome: &outcome,
	}, catcherActor)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentCompleted, completed.Status)

	assert.Equal(t, models.IncidentResolved, incidentRepo.incidents[incident.ID].Status)
	require.Len(t, animalRepo.animals, 1)

	// The reporter hears about the resolution exactly once, even when the
	// resolved event is replayed.
	resolvedForReporter := func() int {
		count := 0
		for _, notification := range notificationRepo.byID {
			if notification.RecipientID == reporterID && notification.SourceID == incident.ID &&
				notification.Kind == models.KindStatusUpdate && notification.SourceType == models.SourceIncident {
				count++
			}
		}
		return count
	}
	statusUpdates := resolvedForReporter()
	assert.Equal(t, 3, statusUpdates) // verified, dispatched and resolved updates

	for _, event := range delivered {
		if event.Type == events.IncidentResolved {
			require.NoError(t, notificationService.OnEvent(ctx, event))
		}
	}
	assert.Equal(t, statusUpdates, resolvedForReporter())

	// Fresh staff were pinged on submission.
	newReport := 0
	for _, notification := range notificationRepo.byID {
		if notification.Kind == models.KindNewReport {
			newReport++
		}
	}
	assert.Equal(t, 2, newReport)
}
