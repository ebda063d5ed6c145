package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := Fake(start)
	fired := fake.After(5 * time.Second)

	fake.Advance(4 * time.Second)
	select {
	case <-fired:
		t.Fatal("timer fired before deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case at := <-fired:
		if !at.Equal(start.Add(5 * time.Second)) {
			t.Fatalf("fire time = %s", at)
		}
	default:
		t.Fatal("timer did not fire at deadline")
	}
	if fake.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", fake.Pending())
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("zero duration timer should fire immediately")
	}
}

func TestFakeBlockUntil(t *testing.T) {
	t.Parallel()

	fake := Fake(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-fake.After(time.Minute)
	}()

	fake.BlockUntil(1)
	fake.Advance(time.Minute)
	<-done
}
