// SPDX-License-Identifier: Unlicense OR MIT

package scheduler

import (
	"testing"
	"time"

	"keydeck.dev/keydeck/event"
)

func TestDueOrdering(t *testing.T) {
	s := New()
	s.ScheduleTimer("b", 20*time.Millisecond)
	s.ScheduleTimer("a", 5*time.Millisecond)
	s.ScheduleBrightness("c", 50, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	due := s.Due()
	if len(due) != 3 {
		t.Fatalf("Due() returned %d events, want 3", len(due))
	}
	first, ok := due[0].(event.TimerComplete)
	if !ok || first.Serial != "a" {
		t.Fatalf("first due event = %#v, want TimerComplete{a}", due[0])
	}
}

func TestNoneDue(t *testing.T) {
	s := New()
	s.ScheduleTimer("x", time.Hour)
	if due := s.Due(); len(due) != 0 {
		t.Fatalf("Due() = %v, want empty", due)
	}
}

func TestCancelDevice(t *testing.T) {
	s := New()
	s.ScheduleTimer("a", time.Millisecond)
	s.ScheduleTimer("b", time.Millisecond)
	s.CancelDevice("a")
	time.Sleep(5 * time.Millisecond)
	due := s.Due()
	if len(due) != 1 {
		t.Fatalf("Due() after cancel = %d events, want 1", len(due))
	}
	tc := due[0].(event.TimerComplete)
	if tc.Serial != "b" {
		t.Fatalf("remaining event serial = %q, want b", tc.Serial)
	}
}

func TestNextWaitCap(t *testing.T) {
	s := New()
	s.ScheduleTimer("a", time.Hour)
	if got := s.NextWait(50 * time.Millisecond); got != 50*time.Millisecond {
		t.Fatalf("NextWait = %v, want capped to 50ms", got)
	}
}
