package sched

import "testing"

func TestRunUntilOrdersByTimeThenFIFO(t *testing.T) {
	s := New()
	var order []int

	s.Schedule(KindTimerOverflow, 10, 1, func(uint32) { order = append(order, 1) })
	s.Schedule(KindTimerOverflow, 5, 2, func(uint32) { order = append(order, 2) })
	s.Schedule(KindTimerOverflow, 5, 3, func(uint32) { order = append(order, 3) })

	s.RunUntil(10)

	want := []int{2, 3, 1}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
	if s.Now() != 10 {
		t.Fatalf("clock = %d, want 10", s.Now())
	}
}

func TestRunUntilDispatchesChainedEventsWithinLimit(t *testing.T) {
	s := New()
	var fired []int

	s.Schedule(KindScanline, 5, 0, func(uint32) {
		fired = append(fired, 1)
		// A callback scheduling another event with target <= limit must
		// also fire within the same RunUntil call.
		s.Schedule(KindHBlank, 2, 0, func(uint32) { fired = append(fired, 2) })
	})

	s.RunUntil(20)

	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Fatalf("fired = %v, want [1 2]", fired)
	}
}

func TestCancelRemovesMatchingEvents(t *testing.T) {
	s := New()
	fired := false
	s.Schedule(KindTimerOverflow, 10, 7, func(uint32) { fired = true })
	s.Cancel(KindTimerOverflow, 7)
	s.RunUntil(100)
	if fired {
		t.Fatalf("cancelled event still fired")
	}
}

func TestSingletonPerKindParamReplacesPrevious(t *testing.T) {
	s := New()
	var fired []int
	s.Schedule(KindTimerOverflow, 5, 1, func(uint32) { fired = append(fired, 1) })
	// Re-scheduling the same (kind, param) supersedes the first, the
	// behavior periodic events rely on when they reschedule themselves.
	s.Schedule(KindTimerOverflow, 10, 1, func(uint32) { fired = append(fired, 2) })
	s.RunUntil(20)
	if len(fired) != 1 || fired[0] != 2 {
		t.Fatalf("fired = %v, want [2]", fired)
	}
}

func TestNextDeadlineReflectsEarliestAliveEvent(t *testing.T) {
	s := New()
	if _, ok := s.NextDeadline(); ok {
		t.Fatalf("expected empty queue to report no deadline")
	}
	s.Schedule(KindScanline, 100, 0, func(uint32) {})
	s.Schedule(KindHBlank, 50, 0, func(uint32) {})
	d, ok := s.NextDeadline()
	if !ok || d != 50 {
		t.Fatalf("NextDeadline() = %d, %v, want 50, true", d, ok)
	}
}
