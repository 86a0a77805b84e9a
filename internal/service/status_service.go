package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/straywatch/straywatch-api/internal/dto"
	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

type statusRepository interface {
	IncidentCounts(ctx context.Context) (map[models.IncidentStatus]int, error)
	AnimalCounts(ctx context.Context) (map[models.AnimalStatus]int, error)
	ActiveAssignmentCount(ctx context.Context) (int, error)
	MapMarkers(ctx context.Context) ([]dto.MapMarker, error)
	MonthlyTrend(ctx context.Context, since time.Time) ([]dto.TrendPoint, error)
}

const (
	snapshotCacheKey   = "status:snapshot"
	mapMarkersCacheKey = "status:map"
	trendCacheKeyFmt   = "status:trend:%d"
)

// StatusService serves the read-side dashboard. It is pull-based: callers own
// the refresh schedule and a short cache TTL absorbs bursts.
type StatusService struct {
	repo     statusRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewStatusService constructs the service.
func NewStatusService(repo statusRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *StatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot aggregates incident, animal and assignment totals.
func (s *StatusService) Snapshot(ctx context.Context) (*dto.Snapshot, error) {
	var cached dto.Snapshot
	if hit, _ := s.cache.Get(ctx, snapshotCacheKey, &cached); hit {
		return &cached, nil
	}

	incidents, err := s.repo.IncidentCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate incidents")
	}
	animals, err := s.repo.AnimalCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate animals")
	}
	activeAssignments, err := s.repo.ActiveAssignmentCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assignments")
	}

	snapshot := &dto.Snapshot{
		GeneratedAt:       s.now(),
		Incidents:         make(map[string]int, len(incidents)),
		Animals:           make(map[string]int, len(animals)),
		ActiveAssignments: activeAssignments,
	}
	for status, count := range incidents {
		snapshot.Incidents[string(status)] = count
		switch status {
		case models.IncidentPendingVerification, models.IncidentVerified, models.IncidentInProgress:
			snapshot.OpenIncidents += count
		}
	}
	for status, count := range animals {
		snapshot.Animals[string(status)] = count
		switch status {
		case models.AnimalCaptured, models.AnimalUnderObservation:
			snapshot.InCustody += count
		}
	}

	if err := s.cache.Set(ctx, snapshotCacheKey, snapshot, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache snapshot", zap.Error(err))
	}
	return snapshot, nil
}

// MapMarkers returns open incidents positioned for the dispatch map.
func (s *StatusService) MapMarkers(ctx context.Context) ([]dto.MapMarker, error) {
	var cached []dto.MapMarker
	if hit, _ := s.cache.Get(ctx, mapMarkersCacheKey, &cached); hit {
		return cached, nil
	}
	markers, err := s.repo.MapMarkers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load map markers")
	}
	if err := s.cache.Set(ctx, mapMarkersCacheKey, markers, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache map markers", zap.Error(err))
	}
	return markers, nil
}

// Trend returns the monthly incident activity series over the given number of
// months, most recent last.
func (s *StatusService) Trend(ctx context.Context, months int) (*dto.TrendResponse, error) {
	if months <= 0 {
		months = 12
	}
	if months > 36 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "trend window is capped at 36 months")
	}

	key := fmt.Sprintf(trendCacheKeyFmt, months)
	var cached dto.TrendResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	since := s.now().AddDate(0, -months, 0)
	points, err := s.repo.MonthlyTrend(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trend")
	}
	trend := &dto.TrendResponse{Months: points}
	if err := s.cache.Set(ctx, key, trend, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache trend", zap.Error(err))
	}
	return trend, nil
}
