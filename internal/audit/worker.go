package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrQueueFull is returned by Queue.Emit when the buffer has no room.
var ErrQueueFull = errors.New("audit queue full")

// Queue buffers events for a Worker so request handling never waits on the
// sink.
type Queue struct {
	inbox chan Event
}

// NewQueue creates a queue holding at most size pending events.
func NewQueue(size int) *Queue {
	return &Queue{inbox: make(chan Event, size)}
}

// Emit enqueues the event without blocking.
func (q *Queue) Emit(_ context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	select {
	case q.inbox <- base:
		return nil
	default:
		return ErrQueueFull
	}
}

// Worker drains a Queue into a sink. Sink failures are logged and the event
// is dropped; audit delivery never blocks or fails upserts.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, queue *Queue, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: queue.inbox, logger: logger}
}

// Run processes events until ctx is cancelled, then drains what is already
// buffered using a short grace period.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.sink.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to deliver audit event",
			"action", event.Action,
			"registration_number", event.RegistrationNumber,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
