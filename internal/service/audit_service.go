package service

import (
	"context"

	"github.com/straywatch/straywatch-api/internal/models"
	appErrors "github.com/straywatch/straywatch-api/pkg/errors"
)

type auditReader interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error)
}

// AuditService serves the transition audit trail.
type AuditService struct {
	repo auditReader
}

// NewAuditService constructs the service.
func NewAuditService(repo auditReader) *AuditService {
	return &AuditService{repo: repo}
}

// Trail returns the audit entries for one entity, oldest first.
func (s *AuditService) Trail(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	switch entityType {
	case models.AuditEntityIncident, models.AuditEntityAnimal, models.AuditEntityAssignment:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown entity type "+entityType)
	}
	entries, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit trail")
	}
	return entries, nil
}
