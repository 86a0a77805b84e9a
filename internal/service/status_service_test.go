package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/dto"
	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

type statusRepoStub struct {
	incidents  map[models.IncidentStatus]int
	animals    map[models.AnimalStatus]int
	active     int
	markers    []dto.MapMarker
	trend      []dto.TrendPoint
	trendSince time.Time
}

func (s *statusRepoStub) IncidentCounts(ctx context.Context) (map[models.IncidentStatus]int, error) {
	return s.incidents, nil
}

func (s *statusRepoStub) AnimalCounts(ctx context.Context) (map[models.AnimalStatus]int, error) {
	return s.animals, nil
}

func (s *statusRepoStub) ActiveAssignmentCount(ctx context.Context) (int, error) {
	return s.active, nil
}

func (s *statusRepoStub) MapMarkers(ctx context.Context) ([]dto.MapMarker, error) {
	return s.markers, nil
}

func (s *statusRepoStub) MonthlyTrend(ctx context.Context, since time.Time) ([]dto.TrendPoint, error) {
	s.trendSince = since
	return s.trend, nil
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, time.Minute, nil, false)
}

func TestStatusServiceSnapshot(t *testing.T) {
	repo := &statusRepoStub{
		incidents: map[models.IncidentStatus]int{
			models.IncidentPendingVerification: 3,
			models.IncidentVerified:            2,
			models.IncidentInProgress:          1,
			models.IncidentRejected:            4,
			models.IncidentResolved:            10,
		},
		animals: map[models.AnimalStatus]int{
			models.AnimalCaptured:         5,
			models.AnimalUnderObservation: 2,
			models.AnimalAvailable:        3,
			models.AnimalAdopted:          7,
		},
		active: 4,
	}
	svc := NewStatusService(repo, disabledCache(), time.Minute, nil)

	snapshot, err := svc.Snapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 6, snapshot.OpenIncidents)
	assert.Equal(t, 7, snapshot.InCustody)
	assert.Equal(t, 4, snapshot.ActiveAssignments)
	assert.Equal(t, 10, snapshot.Incidents[string(models.IncidentResolved)])
	assert.Equal(t, 3, snapshot.Animals[string(models.AnimalAvailable)])
	assert.False(t, snapshot.GeneratedAt.IsZero())
}

func TestStatusServiceMapMarkers(t *testing.T) {
	repo := &statusRepoStub{
		markers: []dto.MapMarker{
			{ID: "incident-1", IncidentType: "stray", Priority: "high", Status: "verified", Latitude: -6.2, Longitude: 106.8},
		},
	}
	svc := NewStatusService(repo, disabledCache(), time.Minute, nil)

	markers, err := svc.MapMarkers(context.Background())

	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "incident-1", markers[0].ID)
}

func TestStatusServiceTrendDefaultsToTwelveMonths(t *testing.T) {
	repo := &statusRepoStub{
		trend: []dto.TrendPoint{{Month: "2026-03", Submitted: 8, Resolved: 5}},
	}
	svc := NewStatusService(repo, disabledCache(), time.Minute, nil)
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	trend, err := svc.Trend(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, trend.Months, 1)
	assert.Equal(t, fixed.AddDate(0, -12, 0), repo.trendSince)
}

func TestStatusServiceTrendWindowCap(t *testing.T) {
	svc := NewStatusService(&statusRepoStub{}, disabledCache(), time.Minute, nil)

	_, err := svc.Trend(context.Background(), 48)

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
