// SPDX-License-Identifier: Unlicense OR MIT

package daemon

import (
	"image"
	"testing"
	"time"

	"keydeck.dev/keydeck/config"
	"keydeck.dev/keydeck/device"
	"keydeck.dev/keydeck/render"
)

type fakeDevice struct{ kind string }

func (f *fakeDevice) SerialNumber() (string, error)   { return "serial-1", nil }
func (f *fakeDevice) FirmwareVersion() (string, error) { return "1.0", nil }
func (f *fakeDevice) Manufacturer() string             { return "Fake" }
func (f *fakeDevice) KindName() string                 { return f.kind }
func (f *fakeDevice) ButtonCount() uint8               { return 15 }
func (f *fakeDevice) ButtonLayout() (int, int)         { return 3, 5 }
func (f *fakeDevice) EncoderCount() int                { return 0 }
func (f *fakeDevice) HasScreen() bool                  { return false }
func (f *fakeDevice) ButtonImageSize() (uint16, uint16) { return 72, 72 }
func (f *fakeDevice) Reset() error                      { return nil }
func (f *fakeDevice) SetBrightness(uint8) error         { return nil }
func (f *fakeDevice) SetButtonImage(uint8, image.Image) error { return nil }
func (f *fakeDevice) ClearButtonImage(uint8) error      { return nil }
func (f *fakeDevice) ClearAllButtonImages() error        { return nil }
func (f *fakeDevice) Flush() error                       { return nil }
func (f *fakeDevice) Shutdown() error                    { return nil }
func (f *fakeDevice) Sleep() error                       { return nil }
func (f *fakeDevice) KeepAlive()                          {}
func (f *fakeDevice) Reader() (device.Reader, error)       { return nil, nil }

func TestAssignGroupPrefersSerialThenKindThenDefaultThenFirst(t *testing.T) {
	d := &Daemon{cfg: &config.Config{Document: config.Document{
		PageGroups: map[string]config.PageGroup{
			"zz-fallback": {},
			"streamdeck":  {},
			"default":     {},
			"serial-1":    {},
		},
	}}}
	dev := &fakeDevice{kind: "streamdeck"}

	if _, name, ok := d.assignGroup(dev, "serial-1"); !ok || name != "serial-1" {
		t.Fatalf("expected serial match, got %q ok=%v", name, ok)
	}

	delete(d.cfg.PageGroups, "serial-1")
	if _, name, ok := d.assignGroup(dev, "serial-1"); !ok || name != "streamdeck" {
		t.Fatalf("expected kind match, got %q ok=%v", name, ok)
	}

	delete(d.cfg.PageGroups, "streamdeck")
	if _, name, ok := d.assignGroup(dev, "serial-1"); !ok || name != "default" {
		t.Fatalf("expected default match, got %q ok=%v", name, ok)
	}

	delete(d.cfg.PageGroups, "default")
	if _, name, ok := d.assignGroup(dev, "serial-1"); !ok || name != "zz-fallback" {
		t.Fatalf("expected lexicographically-first fallback, got %q ok=%v", name, ok)
	}

	delete(d.cfg.PageGroups, "zz-fallback")
	if _, _, ok := d.assignGroup(dev, "serial-1"); ok {
		t.Fatal("expected no match against an empty PageGroups map")
	}
}

func TestToEventMapsEveryStateUpdateKind(t *testing.T) {
	cases := []device.StateUpdate{
		{Kind: device.ButtonDown, Key: 3},
		{Kind: device.EncoderTwist, Key: 1, Ticks: -2},
		{Kind: device.TouchScreenSwipe, X: 1, Y: 2, TargetX: 3, TargetY: 4},
	}
	for _, c := range cases {
		ev, ok := toEvent("dev", c)
		if !ok {
			t.Fatalf("toEvent(%+v): expected ok=true", c)
		}
		if ev == nil {
			t.Fatalf("toEvent(%+v): expected non-nil event", c)
		}
	}
	if _, ok := toEvent("dev", device.StateUpdate{Kind: device.StateUpdateKind(99)}); ok {
		t.Fatal("toEvent: expected ok=false for an unrecognized kind")
	}
}

func TestBuildServiceConfigsConvertsSecondsToDuration(t *testing.T) {
	cfg := &config.Config{Document: config.Document{
		Services: map[string]config.Service{
			"battery": {Exec: "echo 90", Interval: 2.5, Timeout: 1},
		},
	}}
	configs := buildServiceConfigs(cfg)
	if len(configs) != 1 {
		t.Fatalf("len(configs) = %d, want 1", len(configs))
	}
	got := configs[0]
	if got.Name != "battery" || got.Command != "echo 90" {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.Interval != 2500*time.Millisecond {
		t.Errorf("Interval = %v, want 2.5s", got.Interval)
	}
	if got.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", got.Timeout)
	}
}

func TestCacheForReusesCacheForSameSize(t *testing.T) {
	d := &Daemon{caches: make(map[[2]uint16]*render.Cache)}
	a := d.cacheFor(72, 72)
	b := d.cacheFor(72, 72)
	if a != b {
		t.Fatal("cacheFor: expected the same *render.Cache for an identical size")
	}
	c := d.cacheFor(96, 96)
	if c == a {
		t.Fatal("cacheFor: expected a distinct *render.Cache for a different size")
	}
}
