package sched

import "testing"

func TestScheduler_FiresInOrderAtDueTick(t *testing.T) {
	s := New()
	var got []string
	s.ScheduleAt(10, func() { got = append(got, "a") })
	s.ScheduleAt(5, func() { got = append(got, "b") })
	s.ScheduleAt(10, func() { got = append(got, "c") })

	s.Advance(4)
	if len(got) != 0 {
		t.Fatalf("fired early: %v", got)
	}
	s.Advance(5)
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("tick 5 fired %v, want [b]", got)
	}
	s.Advance(10)
	if len(got) != 3 || got[1] != "a" || got[2] != "c" {
		t.Fatalf("tick 10 fired %v, want [b a c]", got)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending=%d after all fired", s.Pending())
	}
}

func TestScheduler_CancelIsIdempotent(t *testing.T) {
	s := New()
	fired := false
	h := s.ScheduleAt(1, func() { fired = true })
	s.Cancel(h)
	s.Cancel(h)
	s.Cancel(Handle(0))
	s.Advance(100)
	if fired {
		t.Fatalf("canceled task fired")
	}
	// Cancel after fire is also a no-op.
	h2 := s.ScheduleAt(2, func() {})
	s.Advance(2)
	s.Cancel(h2)
}

func TestScheduler_CallbackCancelsPeer(t *testing.T) {
	s := New()
	var h2 Handle
	fired := 0
	s.ScheduleAt(1, func() { s.Cancel(h2) })
	h2 = s.ScheduleAt(1, func() { fired++ })
	s.Advance(1)
	if fired != 0 {
		t.Fatalf("peer task fired despite cancel in same batch")
	}
}

func TestScheduler_CallbackSchedulesLaterTask(t *testing.T) {
	s := New()
	fired := 0
	s.ScheduleAt(1, func() {
		s.ScheduleAt(1, func() { fired++ })
	})
	s.Advance(1)
	if fired != 0 {
		t.Fatalf("rescheduled task ran in the same Advance")
	}
	s.Advance(1)
	if fired != 1 {
		t.Fatalf("rescheduled task did not run on next Advance")
	}
}

func TestScheduler_Clear(t *testing.T) {
	s := New()
	fired := false
	s.ScheduleAt(1, func() { fired = true })
	s.ScheduleAt(2, func() { fired = true })
	s.Clear()
	if s.Pending() != 0 {
		t.Fatalf("pending=%d after clear", s.Pending())
	}
	s.Advance(100)
	if fired {
		t.Fatalf("cleared task fired")
	}
}
