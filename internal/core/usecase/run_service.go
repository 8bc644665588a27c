package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
)

type RunService struct {
	repo ports.RunRepository
}

func NewRunService(repo ports.RunRepository) *RunService {
	return &RunService{repo: repo}
}

func (s *RunService) List(ctx context.Context, filter domain.RunFilter) ([]domain.RunSummary, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.repo.List(ctx, filter)
}

func (s *RunService) Get(ctx context.Context, id string) (domain.RunReport, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.RunReport{}, fmt.Errorf("%w: %s", domain.ErrInvalidRunID, id)
	}
	return s.repo.Get(ctx, id)
}
