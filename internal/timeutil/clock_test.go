package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	clock := RealClock{}
	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Error("ticker did not fire")
	}
}

func TestMockClock_After(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ch := clock.After(time.Second)

	clock.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("timer fired too early")
	default:
	}
	if clock.Pending() != 1 {
		t.Errorf("Pending() = %d, expected 1", clock.Pending())
	}

	clock.Advance(500 * time.Millisecond)
	select {
	case got := <-ch:
		if !got.Equal(start.Add(time.Second)) {
			t.Errorf("fired at %v, expected %v", got, start.Add(time.Second))
		}
	default:
		t.Fatal("timer did not fire")
	}
	if clock.Pending() != 0 {
		t.Errorf("Pending() = %d, expected 0", clock.Pending())
	}
}

func TestMockClock_Ticker(t *testing.T) {
	clock := NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(8 * time.Millisecond)

	fired := 0
	for i := 0; i < 5; i++ {
		clock.Advance(8 * time.Millisecond)
		select {
		case <-ticker.C():
			fired++
		default:
		}
	}
	if fired != 5 {
		t.Errorf("ticker fired %d times, expected 5", fired)
	}

	ticker.Stop()
	clock.Advance(8 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Error("stopped ticker fired")
	default:
	}
}
