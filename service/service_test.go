// SPDX-License-Identifier: Unlicense OR MIT

package service

import (
	"testing"
	"time"
)

func TestServiceExecutesAndCaches(t *testing.T) {
	st := NewState([]Config{{Name: "echoer", Command: "echo hello", Timeout: time.Second}})
	st.EnsureStarted("echoer")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok := st.Value("echoer"); ok && v != "" {
			if v != "hello" {
				t.Fatalf("Value = %q, want hello", v)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("service value never populated")
}

func TestUnknownServiceValue(t *testing.T) {
	st := NewState(nil)
	if _, ok := st.Value("nope"); ok {
		t.Fatal("expected ok=false for unknown service")
	}
}

func TestEvaluateEnvAndTime(t *testing.T) {
	t.Setenv("KEYDECK_TEST_VAR", "xyz")
	got := Evaluate("v=${env:KEYDECK_TEST_VAR}", nil, time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC))
	if got != "v=xyz" {
		t.Fatalf("Evaluate env = %q", got)
	}
	got2 := Evaluate("${time:%H:%M}", nil, time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC))
	if got2 != "15:04" {
		t.Fatalf("Evaluate time = %q, want 15:04", got2)
	}
}

func TestEvaluateUnknownProvider(t *testing.T) {
	got := Evaluate("${bogus:arg}", nil, time.Now())
	if got != ErrorIndicator {
		t.Fatalf("Evaluate unknown provider = %q, want error indicator", got)
	}
}

func TestEvaluateServiceNotStarted(t *testing.T) {
	st := NewState([]Config{{Name: "slow", Command: "sleep 5", Timeout: time.Millisecond}})
	got := Evaluate("${service:slow}", st, time.Now())
	if got != PendingIndicator {
		t.Fatalf("Evaluate not-yet-populated service = %q, want pending indicator", got)
	}
}
