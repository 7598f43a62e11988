// Package history persists position events to sinks behind a bounded
// asynchronous queue so that the trading path never blocks on disk or a
// database.
package history

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/config"
	"github.com/haykdb/blacksmith/internal/ledger"
)

// Action labels a trade-log row.
type Action string

const (
	ActionOpen  Action = "OPEN"
	ActionClose Action = "CLOSE"
)

// Event is one trade-log row: an OPEN carries only the entry fields, a CLOSE
// the full round trip.
type Event struct {
	Action Action
	Trade  ledger.Result
}

// Sink persists one position event.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// Recorder owns the queue and the single writer goroutine fanning out to its
// sinks.
type Recorder struct {
	log     zerolog.Logger
	sinks   []Sink
	queue   chan Event
	dropOld bool
}

// NewRecorder builds a recorder from the history config. Sinks failing to
// write are logged and skipped; an event is never retried.
func NewRecorder(cfg config.History, log zerolog.Logger, sinks ...Sink) *Recorder {
	return &Recorder{
		log:     log.With().Str("component", "history").Logger(),
		sinks:   sinks,
		queue:   make(chan Event, cfg.QueueSize),
		dropOld: cfg.Policy == "drop_oldest",
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is
// already enqueued before returning. The caller owns the goroutine.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case ev := <-r.queue:
			r.write(ctx, ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.write(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// RecordOpen enqueues an OPEN row for a freshly opened position.
func (r *Recorder) RecordOpen(pos ledger.Position) {
	r.enqueue(Event{Action: ActionOpen, Trade: pos.OpenRow()})
}

// Record enqueues a CLOSE row for a realized round trip.
func (r *Recorder) Record(res ledger.Result) {
	r.enqueue(Event{Action: ActionClose, Trade: res})
}

// enqueue applies the backpressure policy. Under drop_oldest a full queue
// evicts the oldest pending row; under block the caller waits for capacity.
func (r *Recorder) enqueue(ev Event) {
	if !r.dropOld {
		r.queue <- ev
		return
	}
	for {
		select {
		case r.queue <- ev:
			return
		default:
			select {
			case dropped := <-r.queue:
				r.log.Warn().
					Str("action", string(dropped.Action)).
					Str("symbol", dropped.Trade.Symbol).
					Msg("trade log queue full, dropping oldest row")
			default:
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev Event) {
	for _, s := range r.sinks {
		if err := s.Write(ctx, ev); err != nil {
			r.log.Error().Err(err).
				Str("action", string(ev.Action)).
				Str("symbol", ev.Trade.Symbol).
				Msg("trade log sink write failed")
		}
	}
}
