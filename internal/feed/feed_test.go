package feed

import (
	"reflect"
	"testing"
)

func TestFeedDeterministic(t *testing.T) {
	cfg := Config{
		Pools:          2,
		Steps:          10,
		StepSeconds:    60,
		StartTime:      1000,
		CalmRange:      5,
		SpikeMagnitude: 300,
		SpikeProb:      0.2,
		Seed:           42,
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}

	for {
		evA, okA := a.Next()
		evB, okB := b.Next()
		if okA != okB {
			t.Fatalf("feeds diverged in length")
		}
		if !okA {
			break
		}
		if !reflect.DeepEqual(evA, evB) {
			t.Fatalf("feeds diverged: %+v != %+v", evA, evB)
		}
	}
}

func TestFeedRoundRobinAndExhaustion(t *testing.T) {
	f, err := New(Config{
		Pools:       3,
		Steps:       2,
		StepSeconds: 60,
		StartTime:   0,
		Seed:        1,
	})
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}

	var events int
	pools := make(map[string]int)
	for {
		ev, ok := f.Next()
		if !ok {
			break
		}
		events++
		pools[ev.Pool]++

		// Round r lands at (r+1)*step.
		if ev.Timestamp != 60 && ev.Timestamp != 120 {
			t.Fatalf("unexpected timestamp: %d", ev.Timestamp)
		}
	}

	if events != 6 {
		t.Fatalf("expected 6 events, got %d", events)
	}
	if len(pools) != 3 {
		t.Fatalf("expected 3 pools, got %d", len(pools))
	}
	for pool, count := range pools {
		if count != 2 {
			t.Fatalf("pool %s saw %d events", pool, count)
		}
	}
}

func TestFeedValidatesConfig(t *testing.T) {
	if _, err := New(Config{Pools: 0, Steps: 1, StepSeconds: 1}); err == nil {
		t.Fatalf("expected error for zero pools")
	}
	if _, err := New(Config{Pools: 1, Steps: 1, StepSeconds: 0}); err == nil {
		t.Fatalf("expected error for zero step seconds")
	}
	if _, err := New(Config{Pools: 1, Steps: 1, StepSeconds: 1, SpikeProb: 1.5}); err == nil {
		t.Fatalf("expected error for bad spike probability")
	}
}
