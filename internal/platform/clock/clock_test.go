package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	fake := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var fired []string
	fake.AfterFunc(time.Second, func() { fired = append(fired, "one") })
	fake.AfterFunc(2*time.Second, func() { fired = append(fired, "two") })

	fake.Advance(500 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("fired = %v, want none before due time", fired)
	}

	fake.Advance(time.Second)
	if len(fired) != 1 || fired[0] != "one" {
		t.Fatalf("fired = %v, want [one]", fired)
	}

	fake.Advance(time.Second)
	if len(fired) != 2 || fired[1] != "two" {
		t.Fatalf("fired = %v, want [one two]", fired)
	}
}

func TestFakeAdvanceRunsInDueOrder(t *testing.T) {
	fake := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var fired []string
	fake.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	fake.AfterFunc(time.Second, func() { fired = append(fired, "early") })

	fake.Advance(3 * time.Second)
	if len(fired) != 2 || fired[0] != "early" || fired[1] != "late" {
		t.Fatalf("fired = %v, want [early late]", fired)
	}
}

func TestFakeStopPreventsFire(t *testing.T) {
	fake := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("expected Stop to report true for a pending timer")
	}
	if timer.Stop() {
		t.Fatal("expected second Stop to report false")
	}

	fake.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeCallbackMayRegisterTimer(t *testing.T) {
	fake := NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var fired []string
	fake.AfterFunc(time.Second, func() {
		fired = append(fired, "outer")
		fake.AfterFunc(time.Second, func() { fired = append(fired, "inner") })
	})

	fake.Advance(3 * time.Second)
	if len(fired) != 2 || fired[0] != "outer" || fired[1] != "inner" {
		t.Fatalf("fired = %v, want [outer inner]", fired)
	}
}

func TestFakeNowTracksAdvance(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := NewFake(start)

	fake.Advance(90 * time.Second)
	if got, want := fake.Now(), start.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now = %v, want %v", got, want)
	}
}
