// SPDX-License-Identifier: Unlicense OR MIT

package focus

import "testing"

func TestDetectSessionType(t *testing.T) {
	t.Setenv("XDG_SESSION_TYPE", "wayland")
	if got := DetectSessionType(); got != SessionWayland {
		t.Fatalf("DetectSessionType() = %v, want SessionWayland", got)
	}

	t.Setenv("XDG_SESSION_TYPE", "x11")
	if got := DetectSessionType(); got != SessionX11 {
		t.Fatalf("DetectSessionType() = %v, want SessionX11", got)
	}
}

func TestKeysymForChar(t *testing.T) {
	cases := []struct {
		ch      rune
		shifted bool
	}{
		{'a', false},
		{'A', true},
		{'1', false},
		{'!', true},
		{'-', false},
		{'_', true},
	}
	for _, c := range cases {
		_, shifted, err := keysymForChar(c.ch)
		if err != nil {
			t.Fatalf("keysymForChar(%q): %v", c.ch, err)
		}
		if shifted != c.shifted {
			t.Errorf("keysymForChar(%q) shifted = %v, want %v", c.ch, shifted, c.shifted)
		}
	}
}

func TestProcessEscapeSequences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`a\nb`, "a\nb"},
		{`a\tb`, "a\tb"},
		{`a\rb`, "a\rb"},
		{`a\\b`, `a\b`},
		{`a\eb`, "a\x1bb"},
		{`a\qb`, `a\qb`}, // unknown escape keeps the backslash
		{`a\`, `a\`},     // trailing backslash is literal
	}
	for _, c := range cases {
		got := string(processEscapeSequences(c.in))
		if got != c.want {
			t.Errorf("processEscapeSequences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestKeysymForControlChar(t *testing.T) {
	for _, ch := range []rune{'\n', '\r', '\t', '\x1b'} {
		if _, ok := keysymForControlChar(ch); !ok {
			t.Errorf("keysymForControlChar(%q): expected a keysym", ch)
		}
	}
	if _, ok := keysymForControlChar('a'); ok {
		t.Error("keysymForControlChar('a'): expected no control keysym")
	}
}

func TestKeysymForNamedKeys(t *testing.T) {
	for _, name := range []string{"ctrl", "lctrl", "shift", "f5", "enter", "esc"} {
		if _, err := keysymFor(name); err != nil {
			t.Errorf("keysymFor(%q): %v", name, err)
		}
	}
	if _, err := keysymFor("not-a-key"); err == nil {
		t.Error("expected error for unknown key name")
	}
}
