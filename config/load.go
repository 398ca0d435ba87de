// SPDX-License-Identifier: Unlicense OR MIT

package config

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"keydeck.dev/keydeck/action"
	"keydeck.dev/keydeck/internal/klog"
)

// Config is the fully resolved, validated, immutable configuration the
// daemon runs against: template inheritance is flattened, every
// button's IsDynamic flag is computed, and invariants have been
// checked.
type Config struct {
	Document
}

// Option configures Load's optional behavior.
type Option func(*loadOptions)

type loadOptions struct {
	probeServices bool
}

// ProbeServices causes Load to execute every configured service once
// (respecting its timeout) during validation, surfacing a misconfigured
// exec command before the daemon starts serving devices.
func ProbeServices(enabled bool) Option {
	return func(o *loadOptions) { o.probeServices = enabled }
}

// Load reads, parses, resolves, and validates the configuration at
// path. The returned Config is safe to share read-only across every
// device's paged controller.
func Load(ctx context.Context, path string, opts ...Option) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if doc.TickTime == 0 {
		doc.TickTime = 5
	}

	if err := rejectWindowMatchersInTemplates(doc); err != nil {
		return nil, err
	}

	if err := resolveInheritance(doc); err != nil {
		return nil, err
	}

	computeDynamicFlags(doc)

	cfg := &Config{Document: doc}

	if err := Validate(cfg, o); err != nil {
		return nil, err
	}

	klog.Verbose("config: loaded %d page group(s), %d macro(s), %d service(s)",
		len(doc.PageGroups), len(doc.Macros), len(doc.Services))

	return cfg, nil
}

func rejectWindowMatchersInTemplates(doc Document) error {
	for name, tmpl := range doc.Templates {
		if tmpl.WindowClass != "" || tmpl.WindowTitle != "" {
			return fmt.Errorf("config: template %q declares a window matcher, which is only valid on pages", name)
		}
	}
	return nil
}

// resolveInheritance flattens each page's `inherits` list into its
// button map. Resolution is one level deep: Template has no `inherits`
// key of its own, so a template cannot inherit other templates. Child
// slots already present win over an inherited one; on_tick/lock are
// inherited only when the child doesn't set them.
func resolveInheritance(doc Document) error {
	for groupName, group := range doc.PageGroups {
		for pageName, page := range group.Pages {
			var applied []string
			for _, templateName := range page.Inherits {
				if slices.Contains(applied, templateName) {
					continue // a template listed twice in inherits applies once
				}
				applied = append(applied, templateName)

				buttons, onTick, lock, err := resolveTemplate(templateName, doc.Templates, map[string]bool{})
				if err != nil {
					return fmt.Errorf("config: page group %q page %q: %w", groupName, pageName, err)
				}
				if page.Buttons == nil {
					page.Buttons = map[string]ButtonSlot{}
				}
				for key, slot := range buttons {
					if _, exists := page.Buttons[key]; !exists {
						page.Buttons[key] = slot
					}
				}
				if page.OnTick == nil && onTick != nil {
					page.OnTick = onTick
				}
				if page.Lock == nil && lock != nil {
					page.Lock = lock
				}
			}
			group.Pages[pageName] = page
		}
		doc.PageGroups[groupName] = group
	}
	return nil
}

func resolveTemplate(name string, templates map[string]Template, visited map[string]bool) (map[string]ButtonSlot, action.List, *bool, error) {
	if visited[name] {
		return nil, nil, nil, fmt.Errorf("template inheritance cycle detected at %q", name)
	}
	visited[name] = true

	tmpl, ok := templates[name]
	if !ok {
		return nil, nil, nil, fmt.Errorf("template %q not found", name)
	}

	buttons := map[string]ButtonSlot{}
	var onTick action.List
	var lock *bool

	// The template's own declared buttons/on_tick/lock. This function
	// does not recurse: templates carry no inherits list.
	maps.Copy(buttons, tmpl.Buttons)
	if tmpl.OnTick != nil {
		onTick = tmpl.OnTick
	}
	if tmpl.Lock != nil {
		lock = tmpl.Lock
	}

	return buttons, onTick, lock, nil
}

// computeDynamicFlags scans every button (global definitions and inline
// page buttons) for "${provider:arg}" patterns in text, draw, and
// action strings, following macro calls with call-site overrides, and
// records the result on Button.IsDynamic.
func computeDynamicFlags(doc Document) {
	for name, btn := range doc.Buttons {
		btn.IsDynamic = isButtonDynamic(btn, doc.Macros)
		doc.Buttons[name] = btn
	}
	for _, group := range doc.PageGroups {
		for _, page := range group.Pages {
			for key, slot := range page.Buttons {
				if slot.Inline == nil {
					continue
				}
				slot.Inline.IsDynamic = isButtonDynamic(*slot.Inline, doc.Macros)
				page.Buttons[key] = slot
			}
		}
	}
}

func isButtonDynamic(btn Button, macros map[string]RawMacro) bool {
	if btn.DynamicFlag != nil {
		return *btn.DynamicFlag
	}
	if btn.Text != nil && hasDynamicPattern(btn.Text.Value) {
		return true
	}
	if btn.Draw != nil && hasDynamicInDraw(btn.Draw) {
		return true
	}
	if btn.Actions != nil {
		visited := map[string]bool{}
		if hasDynamicInActions([]action.Action(btn.Actions), macros, visited) {
			return true
		}
	}
	return false
}
