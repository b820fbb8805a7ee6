package events_test

import (
	"context"
	"testing"
	"time"

	"brandkit/internal/events"
)

func TestSubscribeFiltersByBrand(t *testing.T) {
	hub := events.NewHub(16)
	ch, cancel := hub.Subscribe("b1", 4)
	defer cancel()

	hub.Publish(events.Event{BrandID: "b2", Stage: "crawling"})
	hub.Publish(events.Event{BrandID: "b1", Stage: "crawling", Percent: 20})

	select {
	case evt := <-ch:
		if evt.BrandID != "b1" || evt.Percent != 20 || evt.Sequence != 2 {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case evt := <-ch:
		t.Fatalf("unexpected extra event: %+v", evt)
	default:
	}
}

func TestCancelClosesSubscription(t *testing.T) {
	hub := events.NewHub(4)
	ch, cancel := hub.Subscribe("", 1)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	hub.Publish(events.Event{BrandID: "b"})
}

func TestFetchResumesFromCursor(t *testing.T) {
	hub := events.NewHub(16)
	hub.Publish(events.Event{BrandID: "a", Stage: "idle"})
	hub.Publish(events.Event{BrandID: "b", Stage: "idle"})
	hub.Publish(events.Event{BrandID: "a", Stage: "crawling"})

	got, next, err := hub.Fetch(context.Background(), "a", 0, 10, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 || got[1].Stage != "crawling" || next != 3 {
		t.Fatalf("unexpected fetch: %+v next=%d", got, next)
	}
	got, next, _ = hub.Fetch(context.Background(), "a", next, 10, false)
	if len(got) != 0 || next != 3 {
		t.Fatalf("expected nothing new, got %+v next=%d", got, next)
	}
}

func TestFetchWaitReturnsOnPublish(t *testing.T) {
	hub := events.NewHub(16)
	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Publish(events.Event{BrandID: "other"})
		hub.Publish(events.Event{BrandID: "a", Stage: "complete", Percent: 100})
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, _, err := hub.Fetch(ctx, "a", 0, 10, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Percent != 100 {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestFetchWaitHonorsContext(t *testing.T) {
	hub := events.NewHub(16)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, _, err := hub.Fetch(ctx, "a", 0, 10, true); err == nil {
		t.Fatal("expected context error")
	}
}
