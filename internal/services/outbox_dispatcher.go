package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/civicdesk/backend/internal/config"
	"github.com/civicdesk/backend/internal/logger"
	"github.com/civicdesk/backend/internal/models"
	"github.com/civicdesk/backend/internal/repository"
)

// EventSignaler wakes the dispatcher after a commit that enqueued an event.
type EventSignaler interface {
	Kick()
}

// OutboxDispatcher delivers committed outbox events in the background.
type OutboxDispatcher interface {
	EventSignaler
	Start(ctx context.Context)
	Stop()
	ProcessPending(ctx context.Context) (int, error)
}

type outboxDispatcher struct {
	outbox      repository.OutboxRepository
	handler     EventHandler
	interval    time.Duration
	batchSize   int
	maxAttempts int
	backoff     time.Duration
	kick        chan struct{}
	stopChan    chan struct{}
	done        chan struct{}
	mu          sync.Mutex
	running     bool
	now         func() time.Time
	log         *slog.Logger
}

func NewOutboxDispatcher(outbox repository.OutboxRepository, handler EventHandler, cfg *config.NotificationConfig) OutboxDispatcher {
	d := &outboxDispatcher{
		outbox:      outbox,
		handler:     handler,
		interval:    cfg.PollInterval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.RetryBackoff,
		kick:        make(chan struct{}, 1),
		now:         time.Now,
		log:         logger.WithComponent("outbox"),
	}
	if d.interval <= 0 {
		d.interval = 5 * time.Second
	}
	if d.batchSize <= 0 {
		d.batchSize = 50
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = 5
	}
	if d.backoff <= 0 {
		d.backoff = 30 * time.Second
	}
	return d
}

// Kick never blocks; pending kicks coalesce.
func (d *outboxDispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *outboxDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stopChan = make(chan struct{})
	d.done = make(chan struct{})

	d.log.Info("outbox dispatcher started", "interval", d.interval)

	go func() {
		defer close(d.done)

		d.drain(ctx)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.drain(ctx)
			case <-d.kick:
				d.drain(ctx)
			case <-d.stopChan:
				d.log.Info("outbox dispatcher stopped")
				return
			case <-ctx.Done():
				d.log.Info("outbox dispatcher context cancelled")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the batch in flight.
func (d *outboxDispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopChan)
	done := d.done
	d.mu.Unlock()

	<-done
}

// drain processes full batches until the backlog of due events is empty.
func (d *outboxDispatcher) drain(ctx context.Context) {
	for {
		n, err := d.ProcessPending(ctx)
		if err != nil {
			d.log.Error("outbox batch failed", "error", err)
			return
		}
		if n < d.batchSize || ctx.Err() != nil {
			return
		}
	}
}

// ProcessPending dispatches one batch of due events and reports how many were
// fetched.
func (d *outboxDispatcher) ProcessPending(ctx context.Context) (int, error) {
	events, err := d.outbox.FetchDue(ctx, d.now(), d.batchSize)
	if err != nil {
		return 0, err
	}

	for i := range events {
		d.process(ctx, &events[i])
	}
	return len(events), nil
}

func (d *outboxDispatcher) process(ctx context.Context, event *models.OutboxEvent) {
	err := d.handler.Dispatch(ctx, event)
	if err == nil {
		if err := d.outbox.MarkDone(ctx, event.ID, d.now()); err != nil {
			d.log.Error("failed to mark outbox event done", "event_id", event.ID, "error", err)
		}
		return
	}

	attempts := event.Attempts + 1
	giveUp := attempts >= d.maxAttempts
	next := d.now().Add(d.backoff * time.Duration(attempts))

	if giveUp {
		d.log.Error("outbox event failed permanently",
			"event_id", event.ID, "kind", event.Kind, "attempts", attempts, "error", err)
	} else {
		d.log.Warn("outbox event failed, will retry",
			"event_id", event.ID, "kind", event.Kind, "attempts", attempts, "next_attempt_at", next, "error", err)
	}

	if markErr := d.outbox.MarkRetry(ctx, event.ID, attempts, err.Error(), next, giveUp); markErr != nil {
		d.log.Error("failed to record outbox retry", "event_id", event.ID, "error", markErr)
	}
}
