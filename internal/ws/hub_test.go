package ws

import (
	"testing"
	"time"
)

type channelSubscriber struct {
	messages chan []byte
	closed   chan struct{}
}

func newChannelSubscriber() *channelSubscriber {
	return &channelSubscriber{
		messages: make(chan []byte, 4),
		closed:   make(chan struct{}, 1),
	}
}

func (s *channelSubscriber) Send(payload []byte) error {
	s.messages <- payload
	return nil
}

func (s *channelSubscriber) Close() {
	select {
	case s.closed <- struct{}{}:
	default:
	}
}

func TestHubBroadcastReachesOwnSubscribersOnly(t *testing.T) {
	hub := NewHub()
	owner := newChannelSubscriber()
	other := newChannelSubscriber()
	hub.Register("user-1", owner)
	hub.Register("user-2", other)

	hub.Broadcast("user-1", []byte("nudge"))

	select {
	case payload := <-owner.messages:
		if string(payload) != "nudge" {
			t.Fatalf("unexpected payload: %s", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("owner subscriber did not receive broadcast")
	}
	select {
	case payload := <-other.messages:
		t.Fatalf("foreign subscriber received payload: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := newChannelSubscriber()
	hub.Register("user-1", sub)
	hub.Unregister("user-1", sub)

	hub.Broadcast("user-1", []byte("late"))

	select {
	case payload := <-sub.messages:
		t.Fatalf("unregistered subscriber received payload: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}
