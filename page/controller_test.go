// SPDX-License-Identifier: Unlicense OR MIT

package page

import (
	"image"
	"testing"

	"gopkg.in/yaml.v3"

	"keydeck.dev/keydeck/config"
	"keydeck.dev/keydeck/device"
	"keydeck.dev/keydeck/event"
	"keydeck.dev/keydeck/render"
	"keydeck.dev/keydeck/scheduler"
	"keydeck.dev/keydeck/service"
)

type fakeDevice struct {
	buttons int
	images  map[uint8]image.Image
	cleared map[uint8]bool
}

func newFakeDevice(buttons int) *fakeDevice {
	return &fakeDevice{buttons: buttons, images: map[uint8]image.Image{}, cleared: map[uint8]bool{}}
}

func (d *fakeDevice) SerialNumber() (string, error)    { return "fake", nil }
func (d *fakeDevice) FirmwareVersion() (string, error) { return "1.0", nil }
func (d *fakeDevice) Manufacturer() string             { return "test" }
func (d *fakeDevice) KindName() string                 { return "fake" }
func (d *fakeDevice) ButtonCount() uint8                { return uint8(d.buttons) }
func (d *fakeDevice) ButtonLayout() (int, int)          { return 1, d.buttons }
func (d *fakeDevice) EncoderCount() int                 { return 0 }
func (d *fakeDevice) HasScreen() bool                   { return false }
func (d *fakeDevice) ButtonImageSize() (uint16, uint16) { return 72, 72 }
func (d *fakeDevice) Reset() error                      { return nil }
func (d *fakeDevice) SetBrightness(uint8) error         { return nil }
func (d *fakeDevice) SetButtonImage(idx uint8, img image.Image) error {
	d.images[idx] = img
	delete(d.cleared, idx)
	return nil
}
func (d *fakeDevice) ClearButtonImage(idx uint8) error {
	d.cleared[idx] = true
	delete(d.images, idx)
	return nil
}
func (d *fakeDevice) ClearAllButtonImages() error { d.images = map[uint8]image.Image{}; return nil }
func (d *fakeDevice) Flush() error                { return nil }
func (d *fakeDevice) Shutdown() error             { return nil }
func (d *fakeDevice) Sleep() error                { return nil }
func (d *fakeDevice) KeepAlive()                  {}
func (d *fakeDevice) Reader() (device.Reader, error) { return nil, nil }

type fakeFocus struct{ requested []string }

func (f *fakeFocus) RequestFocus(target string) error {
	f.requested = append(f.requested, target)
	return nil
}

type fakeKeyboard struct {
	keys  []string
	texts []string
}

func (k *fakeKeyboard) SendKey(combo string) error { k.keys = append(k.keys, combo); return nil }
func (k *fakeKeyboard) SendText(text string) error { k.texts = append(k.texts, text); return nil }

func mustConfig(t *testing.T, group config.PageGroup, macros map[string]config.RawMacro, buttons map[string]config.Button) *config.Config {
	t.Helper()
	return &config.Config{Document: config.Document{
		PageGroups: map[string]config.PageGroup{"main": group},
		Macros:     macros,
		Buttons:    buttons,
	}}
}

func parseGroup(t *testing.T, yamlDoc string) config.PageGroup {
	t.Helper()
	var doc config.Document
	if err := yaml.Unmarshal([]byte(yamlDoc), &doc); err != nil {
		t.Fatalf("parse group: %v", err)
	}
	return doc.PageGroups["main"]
}

func parseMacro(t *testing.T, name string, params map[string]string, actionsYAML string) config.RawMacro {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(actionsYAML), &node); err != nil {
		t.Fatalf("parse macro %s: %v", name, err)
	}
	body := node
	if node.Kind == yaml.DocumentNode {
		body = *node.Content[0]
	}
	return config.RawMacro{Params: params, Actions: body}
}

func TestButtonPressRunsActions(t *testing.T) {
	group := parseGroup(t, `
page_groups:
  main:
    main_page: home
    pages:
      home:
        buttons:
          button1:
            text: "press me"
            actions:
              - focus: "firefox"
`)
	cfg := mustConfig(t, group, nil, nil)
	dev := newFakeDevice(1)
	focus := &fakeFocus{}
	ctrl := New("dev1", dev, cfg, group, event.NewHub(4), scheduler.New(), service.NewState(nil), focus, &fakeKeyboard{}, render.NewCache(72, 72))

	ctrl.HandleButtonUp(1)

	if len(focus.requested) != 1 || focus.requested[0] != "firefox" {
		t.Fatalf("expected focus request for firefox, got %v", focus.requested)
	}
}

func TestResolveColorNameFollowsChainToFixedPoint(t *testing.T) {
	group := parseGroup(t, `
page_groups:
  main:
    main_page: home
    pages:
      home:
        buttons: {}
`)
	cfg := mustConfig(t, group, nil, nil)
	cfg.Document.Colors = map[string]string{
		"danger": "warn",
		"warn":   "#ff0000",
		"cycle":  "cycle",
	}
	dev := newFakeDevice(1)
	ctrl := New("dev1", dev, cfg, group, event.NewHub(4), scheduler.New(), service.NewState(nil), &fakeFocus{}, &fakeKeyboard{}, render.NewCache(72, 72))

	if got := ctrl.resolveColorName("danger"); got != "#ff0000" {
		t.Errorf("resolveColorName(danger) = %q, want #ff0000", got)
	}
	if got := ctrl.resolveColorName("cycle"); got != "cycle" {
		t.Errorf("resolveColorName(cycle) = %q, want cycle unresolved", got)
	}
	if got := ctrl.resolveColorName("#00ff00"); got != "#00ff00" {
		t.Errorf("resolveColorName(#00ff00) = %q, want unchanged", got)
	}
}

func TestFocusDrivenSwitchWithRestore(t *testing.T) {
	group := parseGroup(t, `
page_groups:
  main:
    main_page: main
    restore_mode: last
    pages:
      main:
        buttons: {}
      editor:
        window_class: code
        buttons: {}
`)
	cfg := mustConfig(t, group, nil, nil)
	dev := newFakeDevice(1)
	ctrl := New("dev1", dev, cfg, group, event.NewHub(4), scheduler.New(), service.NewState(nil), &fakeFocus{}, &fakeKeyboard{}, render.NewCache(72, 72))

	ctrl.HandleFocusChanged("code-editor", "", false)
	if got, ok := ctrl.nameAt(ctrl.currentPage); !ok || got != "editor" {
		t.Fatalf("expected to switch to editor, got %q", got)
	}

	ctrl.HandleFocusChanged("terminal", "", false)
	if got, ok := ctrl.nameAt(ctrl.currentPage); !ok || got != "main" {
		t.Fatalf("expected restore to main, got %q", got)
	}
	if ctrl.lastActivePage != nil {
		t.Fatal("expected last_active_page to be cleared after restore")
	}
}

func TestLockedPageIgnoresFocusChange(t *testing.T) {
	group := parseGroup(t, `
page_groups:
  main:
    main_page: locked
    pages:
      locked:
        lock: true
        buttons: {}
      editor:
        window_class: code
        buttons: {}
`)
	cfg := mustConfig(t, group, nil, nil)
	dev := newFakeDevice(1)
	ctrl := New("dev1", dev, cfg, group, event.NewHub(4), scheduler.New(), service.NewState(nil), &fakeFocus{}, &fakeKeyboard{}, render.NewCache(72, 72))

	ctrl.HandleFocusChanged("code-editor", "", false)
	if got, ok := ctrl.nameAt(ctrl.currentPage); !ok || got != "locked" {
		t.Fatalf("expected locked page to stay active, got %q", got)
	}
}

func TestWaitForFocusResumesOnMatchingEvent(t *testing.T) {
	group := parseGroup(t, `
page_groups:
  main:
    main_page: home
    pages:
      home:
        buttons:
          button1:
            actions:
              - waitFor:
                  event: Focus
                  timeout: 5
              - key: "ctrl+s"
`)
	cfg := mustConfig(t, group, nil, nil)
	dev := newFakeDevice(1)
	kb := &fakeKeyboard{}
	ctrl := New("dev1", dev, cfg, group, event.NewHub(4), scheduler.New(), service.NewState(nil), &fakeFocus{}, kb, render.NewCache(72, 72))

	ctrl.HandleButtonUp(1)
	if ctrl.pending == nil {
		t.Fatal("expected a pending queue after waitFor")
	}

	consumed := ctrl.HandleWaitForEvent("focus")
	if !consumed {
		t.Fatal("expected the focus event to resume the pending queue")
	}
	if len(kb.keys) != 1 || kb.keys[0] != "ctrl+s" {
		t.Fatalf("expected resumed action to send ctrl+s, got %v", kb.keys)
	}
}

func TestInputCancelsPendingQueue(t *testing.T) {
	group := parseGroup(t, `
page_groups:
  main:
    main_page: home
    pages:
      home:
        buttons:
          button1:
            actions:
              - wait: 10
`)
	cfg := mustConfig(t, group, nil, nil)
	dev := newFakeDevice(1)
	ctrl := New("dev1", dev, cfg, group, event.NewHub(4), scheduler.New(), service.NewState(nil), &fakeFocus{}, &fakeKeyboard{}, render.NewCache(72, 72))

	ctrl.HandleButtonUp(1)
	if ctrl.pending == nil {
		t.Fatal("expected a pending wait queue")
	}

	ctrl.HandleEncoderTwist(1, 1)
	if ctrl.pending != nil {
		t.Fatal("expected encoder input to cancel the pending queue")
	}
}

func TestMacroExpansionViaButton(t *testing.T) {
	group := parseGroup(t, `
page_groups:
  main:
    main_page: home
    pages:
      home:
        buttons:
          button1:
            actions:
              - macro: open
                name: firefox
`)
	macros := map[string]config.RawMacro{
		"open": parseMacro(t, "open", map[string]string{"name": "chrome"}, `- focus: "${name}"`),
	}
	cfg := mustConfig(t, group, macros, nil)
	dev := newFakeDevice(1)
	focus := &fakeFocus{}
	ctrl := New("dev1", dev, cfg, group, event.NewHub(4), scheduler.New(), service.NewState(nil), focus, &fakeKeyboard{}, render.NewCache(72, 72))

	ctrl.HandleButtonUp(1)

	if len(focus.requested) != 1 || focus.requested[0] != "firefox" {
		t.Fatalf("expected macro to focus firefox, got %v", focus.requested)
	}
}
