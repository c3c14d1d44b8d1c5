package service

import (
	"context"

	"datagate/internal/domain"
)

// AuditService exposes the audit trail read-only. There is no mutation
// path here or anywhere above the repository.
type AuditService struct {
	repo domain.AuditRepository
}

func NewAuditService(repo domain.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	return s.repo.List(ctx, filter)
}

func (s *AuditService) Summary(ctx context.Context, filter domain.AuditFilter) (*domain.AuditSummary, error) {
	return s.repo.Summary(ctx, filter)
}
