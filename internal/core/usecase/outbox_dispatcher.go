package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"github.com/atvirokodosprendimai/packlint/internal/core/ports"
)

// RetryPolicy decides when a failed run event is tried again. The delay grows
// with the square of the attempt number up to Max.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Base: time.Second, Max: 5 * time.Minute}

func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.Base
	}
	d := time.Duration(attempt*attempt) * p.Base
	if d > p.Max {
		return p.Max
	}
	return d
}

// DeliveryStats counts delivery outcomes since the dispatcher was created.
type DeliveryStats struct {
	Delivered int64
	Retried   int64
	Dead      int64
}

// OutboxDispatcher delivers run events through the report store so a webhook
// outage does not lose them. Publish enqueues the event and tries one batch
// right away; anything left pending is picked up by a later run or by the
// background loop of the serve command.
type OutboxDispatcher struct {
	repo      ports.OutboxRepository
	publisher ports.EventPublisher
	interval  time.Duration
	batchSize int
	policy    RetryPolicy
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	delivered atomic.Int64
	retried   atomic.Int64
	dead      atomic.Int64
}

func NewOutboxDispatcher(repo ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize int) *OutboxDispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxDispatcher{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		policy:    DefaultRetryPolicy,
		now:       time.Now,
	}
}

// Publish implements ports.EventPublisher. The event is durable once Enqueue
// returns; a failed delivery attempt is not an error.
func (d *OutboxDispatcher) Publish(ctx context.Context, event domain.RunEvent) error {
	if err := d.repo.Enqueue(ctx, event); err != nil {
		return fmt.Errorf("enqueue %s for run %s: %w", event.EventType, event.RunID, err)
	}
	return d.Dispatch(ctx)
}

// Start runs Dispatch every interval until Close or until parent is done.
func (d *OutboxDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

func (d *OutboxDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *OutboxDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if err := d.Dispatch(ctx); err != nil && ctx.Err() == nil {
			log.Printf("run event delivery: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Dispatch delivers one batch of due events. Only store failures are returned.
func (d *OutboxDispatcher) Dispatch(ctx context.Context) error {
	events, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return err
	}
	for _, event := range events {
		if err := d.deliver(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (d *OutboxDispatcher) deliver(ctx context.Context, event domain.OutboxEvent) error {
	var payload domain.RunEvent
	if err := json.Unmarshal(event.PayloadJSON, &payload); err != nil {
		return d.reschedule(ctx, event, fmt.Sprintf("decode payload: %v", err))
	}
	if err := d.publisher.Publish(ctx, payload); err != nil {
		return d.reschedule(ctx, event, err.Error())
	}
	if err := d.repo.MarkDispatched(ctx, event.ID); err != nil {
		return err
	}
	d.delivered.Add(1)
	return nil
}

// reschedule records a failed attempt and either sets the next attempt time
// or, once the policy is exhausted, marks the event dead.
func (d *OutboxDispatcher) reschedule(ctx context.Context, event domain.OutboxEvent, reason string) error {
	attempts := event.Attempts + 1
	if attempts >= d.policy.MaxAttempts {
		if err := d.repo.MarkDead(ctx, event.ID, attempts, reason); err != nil {
			return err
		}
		log.Printf("run event %s for run %s dropped after %d attempts: %s", event.EventID, event.RunID, attempts, reason)
		d.dead.Add(1)
		return nil
	}
	next := d.now().UTC().Add(d.policy.Delay(attempts))
	if err := d.repo.MarkFailed(ctx, event.ID, attempts, next, reason); err != nil {
		return err
	}
	d.retried.Add(1)
	return nil
}

func (d *OutboxDispatcher) Stats() DeliveryStats {
	return DeliveryStats{
		Delivered: d.delivered.Load(),
		Retried:   d.retried.Load(),
		Dead:      d.dead.Load(),
	}
}
