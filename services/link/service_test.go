package link

import (
	"context"
	"testing"
	"time"

	"ringlink-go/bus"
)

func TestService_DefaultsToSimAndReportsUp(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("link_test")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &Service{}
	go svc.Start(ctx, conn)

	stateSub := conn.Subscribe(stateTopic)
	defer stateSub.Unsubscribe()

	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "info", "starting")
	assertLevelStatus(t, nextStatePayload(t, stateSub, time.Second), "info", "up")

	deadline := time.Now().Add(time.Second)
	for svc.Active() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if svc.Active() == nil {
		t.Fatal("Active() never returned a driver")
	}
}

func TestService_UnknownTransportYieldsErrorState(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("link_test_bad")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := &Service{}
	go svc.Start(ctx, conn)

	stateSub := conn.Subscribe(stateTopic)
	defer stateSub.Unsubscribe()

	_ = nextStatePayload(t, stateSub, time.Second) // initial "starting"
	_ = nextStatePayload(t, stateSub, time.Second) // initial "up" for the default sim transport

	conn.Publish(conn.NewMessage(configTopic, `{"transport":{"type":"bogus"}}`, false))

	// Teardown of the old sim link and the new transport's rejection race
	// with each other; only the eventual error state is asserted on.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p := nextStatePayload(t, stateSub, time.Second)
		if p["level"] == "error" && p["status"] == "unknown_transport" {
			return
		}
	}
	t.Fatal("never observed an unknown_transport error state")
}

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for link state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
