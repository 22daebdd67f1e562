package stream

import (
	"context"
	"testing"
	"time"

	"alignhq.org/internal/okr"
)

func TestSubscribeReceivesEmittedEvents(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	s.Emit(okr.Event{Kind: okr.EventProgressUpdated, ObjectiveID: "obj-1", Progress: 42})

	select {
	case evt := <-ch:
		if evt.ObjectiveID != "obj-1" || evt.Progress != 42 {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed after context cancel")
		}
	}
}

func TestSlowSubscriberDoesNotBlockEmit(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Subscribe(ctx) // never drained
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Emit(okr.Event{Kind: okr.EventProgressUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}
}
