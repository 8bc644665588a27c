package ports

import (
	"context"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

type RunRepository interface {
	Save(ctx context.Context, report domain.RunReport) error
	List(ctx context.Context, filter domain.RunFilter) ([]domain.RunSummary, error)
	Get(ctx context.Context, id string) (domain.RunReport, error)
}
