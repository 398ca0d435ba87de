// SPDX-License-Identifier: Unlicense OR MIT

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "keydeck.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
image_dir: %s
tick_time: 5
page_groups:
  main:
    main_page: home
    pages:
      home:
        buttons:
          button1:
            text: "hello"
            actions:
              - exec: "true"
`

func TestLoadMinimalConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, fmt.Sprintf(minimalConfig, dir))

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	group, ok := cfg.PageGroups["main"]
	if !ok {
		t.Fatal("expected page group 'main'")
	}
	if group.MainPage != "home" {
		t.Fatalf("MainPage = %q, want home", group.MainPage)
	}
	if order := group.PageOrder(); len(order) != 1 || order[0] != "home" {
		t.Fatalf("PageOrder = %v", order)
	}
}

func TestLoadRejectsBadMainPage(t *testing.T) {
	dir := t.TempDir()
	body := fmt.Sprintf(`
image_dir: %s
tick_time: 5
page_groups:
  main:
    main_page: nonexistent
    pages:
      home:
        buttons: {}
`, dir)
	path := writeConfig(t, dir, body)

	if _, err := Load(context.Background(), path); err == nil {
		t.Fatal("expected error for missing main_page")
	}
}

func TestLoadRejectsBadJumpTarget(t *testing.T) {
	dir := t.TempDir()
	body := fmt.Sprintf(`
image_dir: %s
tick_time: 5
page_groups:
  main:
    main_page: home
    pages:
      home:
        buttons:
          button1:
            actions:
              - jump: nowhere
`, dir)
	path := writeConfig(t, dir, body)

	if _, err := Load(context.Background(), path); err == nil {
		t.Fatal("expected error for jump to nonexistent page")
	}
}

func TestLoadRejectsOutOfRangeTickTime(t *testing.T) {
	dir := t.TempDir()
	body := fmt.Sprintf(`
image_dir: %s
tick_time: 120
page_groups:
  main:
    pages:
      home:
        buttons: {}
`, dir)
	path := writeConfig(t, dir, body)

	if _, err := Load(context.Background(), path); err == nil {
		t.Fatal("expected error for out-of-range tick_time")
	}
}

func TestLoadRejectsTemplateWindowMatcher(t *testing.T) {
	dir := t.TempDir()
	body := fmt.Sprintf(`
image_dir: %s
tick_time: 5
templates:
  base:
    window_class: firefox
    buttons: {}
page_groups:
  main:
    pages:
      home:
        buttons: {}
`, dir)
	path := writeConfig(t, dir, body)

	if _, err := Load(context.Background(), path); err == nil {
		t.Fatal("expected error for template with window_class")
	}
}

func TestTemplateInheritanceMergesButtons(t *testing.T) {
	dir := t.TempDir()
	body := fmt.Sprintf(`
image_dir: %s
tick_time: 5
templates:
  base:
    buttons:
      button1:
        text: "from template"
page_groups:
  main:
    pages:
      home:
        inherits: [base]
        buttons:
          button2:
            text: "from page"
`, dir)
	path := writeConfig(t, dir, body)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	page := cfg.PageGroups["main"].Pages["home"]
	if _, ok := page.Buttons["button1"]; !ok {
		t.Fatal("expected inherited button1 from template")
	}
	if _, ok := page.Buttons["button2"]; !ok {
		t.Fatal("expected page's own button2 to survive")
	}
}

func TestDynamicFlagComputedFromText(t *testing.T) {
	dir := t.TempDir()
	body := fmt.Sprintf(`
image_dir: %s
tick_time: 5
page_groups:
  main:
    pages:
      home:
        buttons:
          button1:
            text: "${time:%%H:%%M}"
          button2:
            text: "static"
`, dir)
	path := writeConfig(t, dir, body)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	page := cfg.PageGroups["main"].Pages["home"]
	if !page.Buttons["button1"].Inline.IsDynamic {
		t.Fatal("expected button1 to be flagged dynamic")
	}
	if page.Buttons["button2"].Inline.IsDynamic {
		t.Fatal("expected button2 (static text) to not be flagged dynamic")
	}
}

func TestHasDynamicPattern(t *testing.T) {
	cases := map[string]bool{
		"${time:%H:%M}":     true,
		"${env:USER}":       true,
		"${name}":           false,
		"plain text":        false,
		"${service:${var}}": true,
	}
	for in, want := range cases {
		if got := hasDynamicPattern(in); got != want {
			t.Errorf("hasDynamicPattern(%q) = %v, want %v", in, got, want)
		}
	}
}
