package infra

import (
	"log/slog"

	"github.com/congo-pay/vault_ledger/internal/audit"
)

// NewEventSink returns the audit sink for the configured brokers. Events are
// always logged; with brokers they are also published to Kafka. The returned
// close func flushes the publisher.
func NewEventSink(brokers []string, topic string, logger *slog.Logger) (audit.Sink, func() error) {
	logSink := audit.NewLoggerSink(logger)
	if len(brokers) == 0 {
		return logSink, func() error { return nil }
	}
	kafkaSink := audit.NewKafkaSink(brokers, topic)
	return audit.MultiSink{logSink, kafkaSink}, kafkaSink.Close
}
