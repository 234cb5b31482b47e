// Package audit carries the append-only trail of vault balance movements.
// Sinks are best-effort: callers log emit failures and carry on.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Kind names an audit event.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdraw   Kind = "withdraw"
	KindCloseVault Kind = "close_vault"
)

// Event records who moved how much through which vault.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Initializer string    `json:"initializer"`
	VaultID     string    `json:"vault_id"`
	Amount      uint64    `json:"amount"`
	Fee         uint64    `json:"fee"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Sink receives audit events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// LoggerSink writes events to the structured logger.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink constructs a logging sink.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Emit writes the event to the structured logger.
func (s *LoggerSink) Emit(_ context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("vault event",
		slog.String("event_id", event.ID),
		slog.String("kind", string(event.Kind)),
		slog.String("initializer", event.Initializer),
		slog.String("vault_id", event.VaultID),
		slog.Uint64("amount", event.Amount),
		slog.Uint64("fee", event.Fee),
		slog.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

// Emit delivers to all sinks even when some fail.
func (m MultiSink) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps events in memory. Useful for tests.
type Recorder struct {
	Events []Event
	Err    error
}

// Emit appends the event and returns the configured error.
func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return r.Err
}
