// SPDX-License-Identifier: Unlicense OR MIT

package config

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"keydeck.dev/keydeck/action"
	"keydeck.dev/keydeck/internal/klog"
)

// Validate checks every cross-reference and invariant Load depends on:
// tick_time range, jump targets, template references, button-definition
// references, icon existence, and (optionally) that every service
// actually runs. It returns the first hard error; warnings are logged,
// not fatal.
func Validate(cfg *Config, o loadOptions) error {
	doc := cfg.Document

	if doc.TickTime < 1 || doc.TickTime > 60 {
		return fmt.Errorf("config: tick_time must be between 1 and 60 seconds, got %v", doc.TickTime)
	}

	if err := validatePageReferences(doc); err != nil {
		return err
	}

	if err := validateButtonDefReferences(doc); err != nil {
		return err
	}

	validateMacroSyntax(doc)

	if err := validateIconFiles(doc); err != nil {
		return err
	}

	if o.probeServices {
		if err := probeServices(doc); err != nil {
			return err
		}
	}

	return nil
}

func validatePageReferences(doc Document) error {
	for groupName, group := range doc.PageGroups {
		if group.MainPage != "" {
			if _, ok := group.Pages[group.MainPage]; !ok {
				return fmt.Errorf("config: page group %q: main_page %q does not exist", groupName, group.MainPage)
			}
		}
		for pageName, page := range group.Pages {
			for key, slot := range page.Buttons {
				if slot.Inline == nil || slot.Inline.Actions == nil {
					continue
				}
				loc := fmt.Sprintf("button %q", key)
				if err := validateActionPageRefs([]action.Action(slot.Inline.Actions), groupName, pageName, loc, group.Pages); err != nil {
					return err
				}
			}
			if page.OnTick != nil {
				if err := validateActionPageRefs([]action.Action(page.OnTick), groupName, pageName, "on_tick", group.Pages); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// validateActionPageRefs recurses into Try/And/Or/Not the same way the
// interpreter does, so a Jump buried inside a conditional is still
// checked. Jump targets inside macro bodies are not checked, since macro
// bodies are late-parsed; a Jump to a missing page fails when it runs.
func validateActionPageRefs(actions []action.Action, groupName, pageName, loc string, pages map[string]Page) error {
	for _, a := range actions {
		switch v := a.(type) {
		case action.Jump:
			if _, ok := pages[v.Page]; !ok {
				return fmt.Errorf("config: page group %q, page %q, %s: jump references non-existent page %q",
					groupName, pageName, loc, v.Page)
			}
		case action.Try:
			if err := validateActionPageRefs(v.Try, groupName, pageName, loc, pages); err != nil {
				return err
			}
			if err := validateActionPageRefs(v.Else, groupName, pageName, loc, pages); err != nil {
				return err
			}
		case action.And:
			if err := validateActionPageRefs(v.Actions, groupName, pageName, loc, pages); err != nil {
				return err
			}
		case action.Or:
			if err := validateActionPageRefs(v.Actions, groupName, pageName, loc, pages); err != nil {
				return err
			}
		case action.Not:
			if err := validateActionPageRefs([]action.Action{v.Inner}, groupName, pageName, loc, pages); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateButtonDefReferences(doc Document) error {
	for groupName, group := range doc.PageGroups {
		for pageName, page := range group.Pages {
			for key, slot := range page.Buttons {
				if slot.TemplateRef == "" {
					continue
				}
				if _, ok := doc.Buttons[slot.TemplateRef]; !ok {
					return fmt.Errorf("config: page group %q, page %q, button %q: button definition %q is referenced but not defined",
						groupName, pageName, key, slot.TemplateRef)
				}
			}
		}
	}
	return nil
}

var paramPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// validateMacroSyntax warns (but never fails) when a macro body uses a
// parameter with no default and no guarantee a caller supplies it.
func validateMacroSyntax(doc Document) {
	for name, m := range doc.Macros {
		used := map[string]bool{}
		scanParams(&m.Actions, used)
		for param := range used {
			if _, hasDefault := m.Params[param]; !hasDefault {
				klog.Warn("config: macro %q uses parameter %q but defines no default value", name, param)
			}
		}
	}
}

// scanParams records every "${name}" placeholder referenced anywhere in
// node, macro parameter or not — validateMacroSyntax filters against
// declared defaults afterward.
func scanParams(node *yaml.Node, used map[string]bool) {
	if node == nil {
		return
	}
	switch node.Kind {
	case yaml.ScalarNode:
		for _, m := range paramPattern.FindAllStringSubmatch(node.Value, -1) {
			used[m[1]] = true
		}
	case yaml.MappingNode, yaml.SequenceNode, yaml.DocumentNode:
		for _, c := range node.Content {
			scanParams(c, used)
		}
	}
}

func validateIconFiles(doc Document) error {
	if doc.ImageDir == "" {
		return nil
	}
	referenced := map[string]bool{}
	for _, btn := range doc.Buttons {
		if btn.Icon != "" {
			referenced[btn.Icon] = true
		}
	}
	for _, group := range doc.PageGroups {
		for _, page := range group.Pages {
			for _, slot := range page.Buttons {
				if slot.Inline != nil && slot.Inline.Icon != "" {
					referenced[slot.Inline.Icon] = true
				}
			}
		}
	}

	for icon := range referenced {
		path := filepath.Join(doc.ImageDir, icon)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config: icon %q not found at %s", icon, path)
		}
	}

	entries, err := os.ReadDir(doc.ImageDir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && !referenced[entry.Name()] {
			klog.Verbose("config: icon %q is not referenced by the configuration", entry.Name())
		}
	}
	return nil
}

// probeServices runs every configured service once, honoring its
// timeout, to catch a broken exec command before the daemon starts.
func probeServices(doc Document) error {
	for name, svc := range doc.Services {
		timeout := time.Duration(svc.Timeout * float64(time.Second))
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		if err := probeOne(name, svc.Exec, timeout); err != nil {
			return err
		}
	}
	return nil
}

func probeOne(name, cmdline string, timeout time.Duration) error {
	cmd := exec.Command("bash", "-c", cmdline)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("config: service %q: %w", name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("config: service %q exited with error: %w (stderr: %s)", name, err, stderr.String())
		}
		klog.Verbose("config: service %q ok: %s", name, bytes.TrimSpace(stdout.Bytes()))
		return nil
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		return fmt.Errorf("config: service %q timed out after %s", name, timeout)
	}
}
