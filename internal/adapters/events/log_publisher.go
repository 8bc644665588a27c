package events

import (
	"context"
	"log"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

// LogPublisher writes a one line summary of each run to the standard logger.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.RunEvent) error {
	log.Printf("run completed run_id=%s root=%s files=%d failed=%d errors=%d found_errors=%t", event.RunID, event.Root, event.FileCount, event.FailedFiles, event.ErrorCount, event.FoundErrors)
	return nil
}
