package infra

import (
	"context"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/congo-pay/vault_ledger/internal/audit"
	"github.com/congo-pay/vault_ledger/internal/logging"
)

func TestNewRedisClientPingsServer(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("new redis client: %v", err)
	}
	defer client.Close()
}

func TestNewRedisClientRequiresURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNewPostgresPoolRequiresURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), "", "vault"); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"users", "accounts", "transactions", "entries", "vaults"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("schema missing table %s", table)
		}
	}
}

func TestNewEventSinkWithoutBrokersLogsOnly(t *testing.T) {
	sink, closeFn := NewEventSink(nil, "", logging.Discard())
	if _, ok := sink.(*audit.LoggerSink); !ok {
		t.Fatalf("expected logger sink, got %T", sink)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewEventSinkWithBrokersFansOut(t *testing.T) {
	sink, _ := NewEventSink([]string{"localhost:9092"}, "vault_events", logging.Discard())
	multi, ok := sink.(audit.MultiSink)
	if !ok || len(multi) != 2 {
		t.Fatalf("expected two-way fan out, got %T", sink)
	}
}
