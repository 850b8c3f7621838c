package authgate_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/userstore/memory"
)

// Denied authentications must produce an audit event; that is part of
// the authenticator's contract.
func TestDenialsEmitAuditEvents(t *testing.T) {
	cfg := testConfig()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sink := authgate.NewChannelSink(64)
	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(memory.New()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := authgate.WithSourceAddress(context.Background(), "203.0.113.9")
	if _, err := engine.Authenticate(ctx, "garbage"); err == nil {
		t.Fatal("expected denial")
	}

	select {
	case event := <-sink.Events():
		if event.Success {
			t.Fatalf("denial recorded as success: %+v", event)
		}
		if event.Error == "" {
			t.Fatal("denial event missing error code")
		}
		if event.SourceIP != "203.0.113.9" {
			t.Fatalf("source ip = %q", event.SourceIP)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event emitted for denial")
	}
}
