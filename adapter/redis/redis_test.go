package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/justapithecus/hbframe/adapter"
)

func testEvent() *adapter.SessionCompletedEvent {
	return &adapter.SessionCompletedEvent{
		ContractVersion: "0.4.0",
		EventType:       adapter.EventType,
		SessionID:       "sess-001",
		Detector:        "tpc",
		Link:            "l0",
		Day:             "2026-10-19",
		Outcome:         "success",
		StoragePath:     "file:///data/detector=tpc/link=l0/day=2026-10-19/session_id=sess-001",
		Timestamp:       "2026-10-19T12:00:00Z",
		Frames:          12,
		EmptyFrames:     4,
		TimeFrames:      1,
		Headers:         24,
		DurationMs:      1500,
	}
}

// receive reads one message off sub in the background. It must be started
// before Publish: miniredis delivers synchronously.
func receive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() { ch <- <-sub.Messages() }()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{}
	}
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestPublish_Payload(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newAdapter(t, Config{URL: "redis://" + mr.Addr()})

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := receive(sub)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", msg.Channel, DefaultChannel)
	}

	var got adapter.SessionCompletedEvent
	if err := json.Unmarshal([]byte(msg.Message), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.SessionID != "sess-001" || got.EventType != adapter.EventType || got.Frames != 12 || got.EmptyFrames != 4 {
		t.Errorf("received event = %+v", got)
	}
}

func TestPublish_Channels(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		channel string
	}{
		{"custom", Config{Channel: "frames:done"}, "frames:done"},
		{"per link", Config{PerLink: true}, DefaultChannel + ":tpc:l0"},
		{"custom per link", Config{Channel: "x", PerLink: true}, "x:tpc:l0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			tt.cfg.URL = "redis://" + mr.Addr()
			a := newAdapter(t, tt.cfg)

			if got := a.Channel(testEvent()); got != tt.channel {
				t.Fatalf("Channel() = %q, want %q", got, tt.channel)
			}

			sub := mr.NewSubscriber()
			sub.Subscribe(tt.channel)
			ch := receive(sub)
			if err := a.Publish(t.Context(), testEvent()); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if msg := waitMessage(t, ch); msg.Channel != tt.channel {
				t.Errorf("delivered on %q", msg.Channel)
			}
		})
	}
}

func TestPublish_ExhaustsRetries(t *testing.T) {
	adapter.BaseBackoff = time.Millisecond
	t.Cleanup(func() { adapter.BaseBackoff = 500 * time.Millisecond })

	a := newAdapter(t, Config{URL: "redis://127.0.0.1:1", Retries: 2, Timeout: 100 * time.Millisecond})
	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	a := newAdapter(t, Config{URL: "redis://127.0.0.1:1", Retries: 5, Timeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{URL: "not-a-redis-url"},
		{URL: "redis://localhost:6379", Retries: -1},
	} {
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%+v) succeeded", cfg)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newAdapter(t, Config{URL: "redis://" + mr.Addr()})

	if a.config.Channel != DefaultChannel || a.config.Timeout != DefaultTimeout || a.config.StreamMaxLen != DefaultStreamMaxLen {
		t.Errorf("defaults = %+v", a.config)
	}
}

func TestPublish_AfterClose(t *testing.T) {
	mr := miniredis.RunT(t)
	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestPublish_Stream(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newAdapter(t, Config{URL: "redis://" + mr.Addr(), Stream: "hbframe:sessions", StreamMaxLen: 2})

	for range 3 {
		if err := a.Publish(t.Context(), testEvent()); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	entries, err := a.client.XRange(t.Context(), "hbframe:sessions", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("stream length = %d, want 2 after trimming", len(entries))
	}
	vals := entries[0].Values
	if vals["session_id"] != "sess-001" || vals["link"] != "l0" || vals["outcome"] != "success" {
		t.Errorf("entry fields = %v", vals)
	}
	var got adapter.SessionCompletedEvent
	if err := json.Unmarshal([]byte(vals["event"].(string)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Headers != 24 {
		t.Errorf("event = %+v", got)
	}
}

func TestPublish_NoStreamByDefault(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newAdapter(t, Config{URL: "redis://" + mr.Addr()})
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys = %v, want none", keys)
	}
}
