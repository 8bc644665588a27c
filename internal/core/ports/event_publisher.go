package ports

import (
	"context"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.RunEvent) error
}
