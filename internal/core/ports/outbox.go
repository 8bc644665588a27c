package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, event domain.RunEvent) error
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt time.Time, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}
