// SPDX-License-Identifier: Unlicense OR MIT

// Package config parses the declarative document that drives KeyDeck:
// page groups, pages, button templates, macros, services and the color
// map, resolves template inheritance, computes each button's dynamic
// flag, and validates the cross-references the runtime depends on.
package config

import (
	"gopkg.in/yaml.v3"

	"keydeck.dev/keydeck/action"
)

// RestoreMode governs what a page group falls back to when a focus
// change matches no page's window_class/window_title.
type RestoreMode string

const (
	RestoreLast RestoreMode = "last"
	RestoreMain RestoreMode = "main"
	RestoreKeep RestoreMode = "keep"
)

// Document is the parsed top-level configuration, before template
// inheritance is resolved or dynamic flags computed.
type Document struct {
	ImageDir        string                 `yaml:"image_dir"`
	Font            string                 `yaml:"font"`
	TickTime        float64                `yaml:"tick_time"`
	ProtectedIcons  []string               `yaml:"protected_icons"`
	Colors          map[string]string      `yaml:"colors"`
	Services        map[string]Service     `yaml:"services"`
	Macros          map[string]RawMacro    `yaml:"macros"`
	Buttons         map[string]Button      `yaml:"buttons"`
	Templates       map[string]Template    `yaml:"templates"`
	PageGroups      map[string]PageGroup   `yaml:"page_groups"`
}

// Service is a recurring shell command whose latest trimmed stdout is
// cached for dynamic substitution.
type Service struct {
	Exec     string  `yaml:"exec"`
	Interval float64 `yaml:"interval"`
	Timeout  float64 `yaml:"timeout"`
}

// RawMacro keeps its action body as an uninterpreted YAML node, since
// parameter substitution must happen textually before parsing.
type RawMacro struct {
	Params  map[string]string `yaml:"params"`
	Actions yaml.Node         `yaml:"actions"`
}

// Def converts a RawMacro into the action package's late-parsed form.
func (m RawMacro) Def() action.MacroDef {
	node := m.Actions
	return action.MacroDef{Params: m.Params, Actions: &node}
}

// Text is either a bare string or a {value, font_size} mapping.
type Text struct {
	Value    string
	FontSize float64 // 0 means "use the renderer's default"
}

func (t *Text) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Value = node.Value
		return nil
	}
	var detailed struct {
		Value    string  `yaml:"value"`
		FontSize float64 `yaml:"font_size"`
	}
	if err := node.Decode(&detailed); err != nil {
		return err
	}
	t.Value = detailed.Value
	t.FontSize = detailed.FontSize
	return nil
}

// Draw is a graphic overlay specification; Value may itself be a
// "${provider:arg}" dynamic expression.
type Draw struct {
	Kind      string   `yaml:"kind"` // "bar", "gauge", "multibar"
	Direction string   `yaml:"direction,omitempty"`
	Value     string   `yaml:"value"`
	Min       float64  `yaml:"min"`
	Max       float64  `yaml:"max"`
	Values    []string `yaml:"values,omitempty"` // multibar only, each ${...} resolvable
	Color     string   `yaml:"color,omitempty"`
	ColorMap  []Stop   `yaml:"color_map,omitempty"`
	Colors    []string `yaml:"colors,omitempty"` // multibar only
	Segments  int      `yaml:"segments,omitempty"`
	Spacing   int      `yaml:"spacing,omitempty"`
	X, Y      int      `yaml:"x,omitempty"`
	W, H      int      `yaml:"w,omitempty"`
}

// Stop is one entry of a color_map: at Percent, the color is Color.
type Stop struct {
	Percent float64 `yaml:"percent"`
	Color   string  `yaml:"color"`
}

// Button is a single key's visual and behavioral configuration.
type Button struct {
	Icon         string        `yaml:"icon,omitempty"`
	Background   string        `yaml:"background,omitempty"`
	TextColor    string        `yaml:"text_color,omitempty"`
	Outline      string        `yaml:"outline,omitempty"`
	Text         *Text         `yaml:"text,omitempty"`
	Draw         *Draw         `yaml:"draw,omitempty"`
	Actions      action.List   `yaml:"actions,omitempty"`
	DynamicFlag  *bool         `yaml:"dynamic,omitempty"`

	// IsDynamic is computed at load time (config.Load), not parsed.
	IsDynamic bool `yaml:"-"`
}

// ButtonSlot is either a named reference to a Buttons-map template, or
// an inline Button. A TemplateRef is looked up in Config.Buttons each
// time the page controller renders or dispatches the button.
type ButtonSlot struct {
	TemplateRef string
	Inline      *Button
}

func (s *ButtonSlot) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.TemplateRef = node.Value
		return nil
	}
	var b Button
	if err := node.Decode(&b); err != nil {
		return err
	}
	s.Inline = &b
	return nil
}

// Template is a reusable page skeleton; Load rejects window matchers on
// templates, before validation runs, since templates are never directly
// displayed.
type Template struct {
	Buttons      map[string]ButtonSlot `yaml:"buttons"`
	OnTick       action.List           `yaml:"on_tick,omitempty"`
	Lock         *bool                 `yaml:"lock,omitempty"`
	WindowClass  string                `yaml:"window_class,omitempty"`
	WindowTitle  string                `yaml:"window_title,omitempty"`
}

// Page is a screenful of button slots; exactly one is active per
// device at a time. Buttons are keyed "button1".."buttonN" and looked
// up by that name, so the map's iteration order never matters.
type Page struct {
	Buttons     map[string]ButtonSlot `yaml:"buttons"`
	OnTick      action.List           `yaml:"on_tick,omitempty"`
	Lock        *bool                 `yaml:"lock,omitempty"`
	WindowClass string                `yaml:"window_class,omitempty"`
	WindowTitle string                `yaml:"window_title,omitempty"`
	Inherits    []string              `yaml:"inherits,omitempty"`
}

// PageGroup is a named collection of pages sharing a restore policy.
// Pages must scan in declaration order for focus-driven switching (see
// spec §4.H), which a plain Go map can't preserve — PageGroup therefore
// decodes its own YAML to additionally record that order.
type PageGroup struct {
	MainPage    string          `yaml:"main_page,omitempty"`
	RestoreMode RestoreMode     `yaml:"restore_mode,omitempty"`
	ImageDir    string          `yaml:"image_dir,omitempty"`
	Pages       map[string]Page `yaml:"pages"`

	order []string
}

// PageOrder returns the group's page names in declaration order.
func (g PageGroup) PageOrder() []string { return g.order }

func (g *PageGroup) UnmarshalYAML(node *yaml.Node) error {
	type plain PageGroup
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*g = PageGroup(p)

	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "pages" {
			continue
		}
		pagesNode := node.Content[i+1]
		for j := 0; j+1 < len(pagesNode.Content); j += 2 {
			g.order = append(g.order, pagesNode.Content[j].Value)
		}
	}
	return nil
}
