package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: EventLogin, UserID: "u1", Success: true})

	select {
	case event := <-sink.Events():
		if event.EventType != EventLogin || event.UserID != "u1" || !event.Success {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	// Nil dispatchers are safe to use.
	d.Emit(context.Background(), AuditEvent{EventType: EventLogin})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops from nil dispatcher")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := sinkFunc(func(context.Context, AuditEvent) { <-block })
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() { close(block); d.Close() }()

	// First event occupies the worker, second fills the buffer, the
	// rest must be dropped without blocking.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: EventLogin})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: EventLogout})
	}
	d.Close()

	for i := 0; i < 5; i++ {
		select {
		case <-sink.Events():
		case <-time.After(time.Second):
			t.Fatalf("event %d not drained", i)
		}
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		EventType: EventRegister,
		UserID:    "u1",
		Success:   true,
		Metadata:  map[string]string{"k": "v"},
	})

	var decoded AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if decoded.EventType != EventRegister || decoded.Metadata["k"] != "v" {
		t.Fatalf("unexpected event: %+v", decoded)
	}
}

func TestEngineEmitsAuditEvents(t *testing.T) {
	sink := NewChannelSink(32)
	env := newTestEngineWithSink(t, sink)
	env.seedUser(t, "reader@example.com", "correct horse", nil)
	ctx := WithClientIP(context.Background(), "1.2.3.4")

	if _, err := env.engine.Login(ctx, "reader@example.com", "correct horse"); err != nil {
		t.Fatalf("Login error: %v", err)
	}

	select {
	case event := <-sink.Events():
		if event.EventType != EventLogin || !event.Success {
			t.Fatalf("unexpected event: %+v", event)
		}
		if event.IP != "1.2.3.4" {
			t.Fatalf("event IP = %q", event.IP)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for login event")
	}
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case event := <-sink.Events():
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestLogoutAuditReportsOutcome(t *testing.T) {
	sink := NewChannelSink(32)
	env := newTestEngineWithSink(t, sink)
	env.seedUser(t, "reader@example.com", "correct horse", nil)
	ctx := context.Background()

	pair, err := env.engine.Login(ctx, "reader@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if event := nextEvent(t, sink); event.EventType != EventLogin {
		t.Fatalf("expected login event first, got %+v", event)
	}

	env.engine.Logout(ctx, pair.AccessToken, pair.RefreshToken)
	event := nextEvent(t, sink)
	if event.EventType != EventLogout || !event.Success {
		t.Fatalf("unexpected logout event: %+v", event)
	}
	if event.Metadata["access_revoked"] != "true" || event.Metadata["refresh_revoked"] != "true" {
		t.Fatalf("unexpected metadata: %v", event.Metadata)
	}

	// A logout that revoked nothing must not claim it did.
	env.engine.Logout(ctx, "garbage-token", "")
	event = nextEvent(t, sink)
	if event.EventType != EventLogout || event.Success {
		t.Fatalf("logout without revocations reported success: %+v", event)
	}
	if event.Metadata["access_revoked"] != "false" {
		t.Fatalf("unexpected metadata: %v", event.Metadata)
	}
}

type sinkFunc func(context.Context, AuditEvent)

func (f sinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }
