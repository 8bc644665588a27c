package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
)

type outboxRepoStub struct {
	events []domain.OutboxEvent
	nextID int64

	fetchLimits []int
	failed      []failedMark
	dead        []deadMark
	dispatched  []int64
}

type failedMark struct {
	id           int64
	attempts     int
	nextAttempt  time.Time
	errorMessage string
}

type deadMark struct {
	id           int64
	attempts     int
	errorMessage string
}

func (r *outboxRepoStub) Enqueue(_ context.Context, event domain.RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	r.nextID++
	r.events = append(r.events, domain.OutboxEvent{
		ID:            r.nextID,
		EventID:       event.EventID,
		EventType:     event.EventType,
		RunID:         event.RunID,
		PayloadJSON:   payload,
		Status:        domain.OutboxPending,
		NextAttemptAt: time.Now().UTC().Add(-time.Second),
	})
	return nil
}

func (r *outboxRepoStub) FetchPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	r.fetchLimits = append(r.fetchLimits, limit)
	out := make([]domain.OutboxEvent, 0, limit)
	now := time.Now().UTC()
	for _, e := range r.events {
		if e.Status != domain.OutboxPending {
			continue
		}
		if e.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepoStub) MarkDispatched(_ context.Context, id int64) error {
	r.dispatched = append(r.dispatched, id)
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Status = domain.OutboxDispatched
			now := time.Now().UTC()
			r.events[i].DispatchedAt = &now
			return nil
		}
	}
	return errors.New("unknown outbox id")
}

func (r *outboxRepoStub) MarkFailed(_ context.Context, id int64, attempts int, nextAttemptAt time.Time, errMsg string) error {
	r.failed = append(r.failed, failedMark{id: id, attempts: attempts, nextAttempt: nextAttemptAt, errorMessage: errMsg})
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Attempts = attempts
			r.events[i].NextAttemptAt = nextAttemptAt
			r.events[i].LastError = errMsg
			return nil
		}
	}
	return errors.New("unknown outbox id")
}

func (r *outboxRepoStub) MarkDead(_ context.Context, id int64, attempts int, errMsg string) error {
	r.dead = append(r.dead, deadMark{id: id, attempts: attempts, errorMessage: errMsg})
	for i := range r.events {
		if r.events[i].ID == id {
			r.events[i].Status = domain.OutboxDead
			r.events[i].Attempts = attempts
			r.events[i].LastError = errMsg
			return nil
		}
	}
	return errors.New("unknown outbox id")
}

func pendingEvent(t *testing.T, id int64, eventID string, attempts int) domain.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(domain.RunEvent{EventID: eventID, EventType: domain.EventRunCompleted, RunID: "run-" + eventID})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return domain.OutboxEvent{
		ID:            id,
		EventID:       eventID,
		EventType:     domain.EventRunCompleted,
		Status:        domain.OutboxPending,
		Attempts:      attempts,
		NextAttemptAt: time.Now().UTC().Add(-time.Second),
		PayloadJSON:   payload,
	}
}

func TestOutboxDispatcherPublishEnqueuesAndDelivers(t *testing.T) {
	repo := &outboxRepoStub{}
	pub := &publisherStub{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)

	if err := d.Publish(context.Background(), domain.RunEvent{EventID: "e1", EventType: domain.EventRunCompleted, RunID: "r1", ErrorCount: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(pub.published) != 1 || pub.published[0].RunID != "r1" || pub.published[0].ErrorCount != 2 {
		t.Fatalf("unexpected published events: %+v", pub.published)
	}
	if len(repo.dispatched) != 1 || repo.dispatched[0] != 1 {
		t.Fatalf("expected id=1 marked dispatched, got %v", repo.dispatched)
	}
	if st := d.Stats(); st.Delivered != 1 || st.Retried != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestOutboxDispatcherDispatchBatchSuccess(t *testing.T) {
	repo := &outboxRepoStub{events: []domain.OutboxEvent{pendingEvent(t, 1, "e1", 0)}}
	pub := &publisherStub{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)

	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.fetchLimits) != 1 || repo.fetchLimits[0] != 10 {
		t.Fatalf("expected fetch limit 10, got %v", repo.fetchLimits)
	}
	if len(pub.published) != 1 || pub.published[0].RunID != "run-e1" {
		t.Fatalf("expected one published event, got %+v", pub.published)
	}
	if len(repo.failed) != 0 || len(repo.dead) != 0 {
		t.Fatalf("expected no failures/dead marks, got failed=%d dead=%d", len(repo.failed), len(repo.dead))
	}
}

func TestOutboxDispatcherPublishFailureMarksFailedWithRetry(t *testing.T) {
	repo := &outboxRepoStub{events: []domain.OutboxEvent{pendingEvent(t, 2, "e2", 0)}}
	pub := &publisherStub{errByID: map[string]error{"e2": errors.New("publisher down")}}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.failed) != 1 {
		t.Fatalf("expected one failed mark, got %d", len(repo.failed))
	}
	if repo.failed[0].attempts != 1 || repo.failed[0].errorMessage != "publisher down" {
		t.Fatalf("unexpected failed mark: %+v", repo.failed[0])
	}
	if !repo.failed[0].nextAttempt.Equal(now.Add(time.Second)) {
		t.Fatalf("unexpected next attempt: %v", repo.failed[0].nextAttempt)
	}
	if len(repo.dispatched) != 0 || len(repo.dead) != 0 {
		t.Fatalf("expected no dispatched/dead marks, got %v %v", repo.dispatched, repo.dead)
	}
}

func TestOutboxDispatcherUndecodablePayloadCountsAsFailure(t *testing.T) {
	ev := pendingEvent(t, 7, "e7", 0)
	ev.PayloadJSON = json.RawMessage(`{`)
	repo := &outboxRepoStub{events: []domain.OutboxEvent{ev}}
	pub := &publisherStub{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)

	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}
	if len(pub.published) != 0 || len(repo.failed) != 1 {
		t.Fatalf("expected decode failure mark, got published=%d failed=%d", len(pub.published), len(repo.failed))
	}
}

func TestOutboxDispatcherRetryBudgetMovesToDead(t *testing.T) {
	repo := &outboxRepoStub{events: []domain.OutboxEvent{pendingEvent(t, 3, "e3", 4)}}
	pub := &publisherStub{errByID: map[string]error{"e3": errors.New("still failing")}}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10)

	if err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.dead) != 1 || repo.dead[0].attempts != 5 {
		t.Fatalf("expected one dead mark with attempts=5, got %+v", repo.dead)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failed marks when dead-lettered, got %d", len(repo.failed))
	}
	if st := d.Stats(); st.Dead != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestOutboxDispatcherRestartResumeDispatchesRemainingPending(t *testing.T) {
	repo := &outboxRepoStub{events: []domain.OutboxEvent{
		pendingEvent(t, 4, "e4", 0),
		pendingEvent(t, 5, "e5", 0),
	}}

	pub := &publisherStub{errByID: map[string]error{"e4": errors.New("transient")}}
	d1 := NewOutboxDispatcher(repo, pub, time.Second, 10)
	if err := d1.Dispatch(context.Background()); err != nil {
		t.Fatalf("first dispatch batch: %v", err)
	}
	if len(repo.dispatched) != 1 || repo.dispatched[0] != 5 {
		t.Fatalf("expected only id=5 dispatched after first run, got %v", repo.dispatched)
	}

	repo.events[0].NextAttemptAt = time.Now().UTC().Add(-time.Second)
	pub.errByID = map[string]error{}
	d2 := NewOutboxDispatcher(repo, pub, time.Second, 10)
	if err := d2.Dispatch(context.Background()); err != nil {
		t.Fatalf("second dispatch batch: %v", err)
	}

	if len(repo.dispatched) != 2 || repo.dispatched[1] != 4 {
		t.Fatalf("expected resumed dispatch of id=4, got %v", repo.dispatched)
	}
}

func TestOutboxDispatcherStartAndClose(t *testing.T) {
	repo := &outboxRepoStub{events: []domain.OutboxEvent{pendingEvent(t, 9, "e9", 0)}}
	pub := &publisherStub{}
	d := NewOutboxDispatcher(repo, pub, time.Hour, 10)

	d.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for d.Stats().Delivered == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if d.Stats().Delivered != 1 {
		t.Fatal("expected the loop to dispatch pending events on start")
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 3, want: 9 * time.Second},
		{attempt: 100, want: 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := DefaultRetryPolicy.Delay(tt.attempt); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
