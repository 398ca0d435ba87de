// SPDX-License-Identifier: Unlicense OR MIT

package config

import (
	"regexp"

	"gopkg.in/yaml.v3"

	"keydeck.dev/keydeck/action"
)

// dynamicPattern matches "${provider:argument}" — a colon is required to
// distinguish a live substitution from a bare macro parameter
// placeholder like "${name}".
var dynamicPattern = regexp.MustCompile(`\$\{[^:}]+:[^}]+\}`)

func hasDynamicPattern(s string) bool {
	return dynamicPattern.MatchString(s)
}

func hasDynamicInDraw(d *Draw) bool {
	if d == nil {
		return false
	}
	if hasDynamicPattern(d.Value) {
		return true
	}
	for _, v := range d.Values {
		if hasDynamicPattern(v) {
			return true
		}
	}
	return false
}

// hasDynamicInActions mirrors dynamic_detection.rs's has_dynamic_in_actions,
// walking the already-decoded action tree. Macro bodies are still raw YAML
// nodes at this point (late-parsed), so a Macro action defers to
// isMacroDynamic, which scans the node directly.
func hasDynamicInActions(actions []action.Action, macros map[string]RawMacro, visited map[string]bool) bool {
	for _, a := range actions {
		switch v := a.(type) {
		case action.Exec:
			if hasDynamicPattern(v.Cmd) {
				return true
			}
		case action.Text:
			if hasDynamicPattern(v.Value) {
				return true
			}
		case action.Key:
			if hasDynamicPattern(v.Combo) {
				return true
			}
		case action.Focus:
			if hasDynamicPattern(v.Target) {
				return true
			}
		case action.Macro:
			for _, pv := range v.Params {
				if hasDynamicPattern(pv) {
					return true
				}
			}
			if isMacroDynamic(v.Name, v.Params, macros, visited) {
				return true
			}
		case action.Try:
			if hasDynamicInActions(v.Try, macros, visited) {
				return true
			}
			if hasDynamicInActions(v.Else, macros, visited) {
				return true
			}
		case action.And:
			if hasDynamicInActions(v.Actions, macros, visited) {
				return true
			}
		case action.Or:
			if hasDynamicInActions(v.Actions, macros, visited) {
				return true
			}
		case action.Not:
			if hasDynamicInActions([]action.Action{v.Inner}, macros, visited) {
				return true
			}
		}
		// Jump, AutoJump, Wait, WaitFor, Return, Fail, Refresh carry no
		// substitutable content.
	}
	return false
}

// isMacroDynamic decides whether invoking name (with the given call-site
// overrides) can ever produce dynamic content: either a default parameter
// value the call site didn't override, or the macro body itself.
func isMacroDynamic(name string, callParams map[string]string, macros map[string]RawMacro, visited map[string]bool) bool {
	if visited[name] {
		return false
	}
	def, ok := macros[name]
	if !ok {
		return false
	}
	visited[name] = true
	defer delete(visited, name)

	for param, defaultValue := range def.Params {
		if _, overridden := callParams[param]; !overridden && hasDynamicPattern(defaultValue) {
			return true
		}
	}

	return scanYAMLNode(&def.Actions, macros, visited)
}

// scanYAMLNode walks a raw, not-yet-parsed macro body for dynamic content,
// recognizing nested macro calls ("macro: name") by their mapping shape
// since the body hasn't been decoded into action.List yet.
func scanYAMLNode(node *yaml.Node, macros map[string]RawMacro, visited map[string]bool) bool {
	if node == nil {
		return false
	}
	switch node.Kind {
	case yaml.ScalarNode:
		return hasDynamicPattern(node.Value)

	case yaml.MappingNode:
		var macroName string
		callParams := map[string]string{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val := node.Content[i+1]
			if key == "macro" && val.Kind == yaml.ScalarNode {
				macroName = val.Value
				continue
			}
			if val.Kind == yaml.ScalarNode {
				callParams[key] = val.Value
			}
		}
		if macroName != "" {
			for _, pv := range callParams {
				if hasDynamicPattern(pv) {
					return true
				}
			}
			return isMacroDynamic(macroName, callParams, macros, visited)
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			if scanYAMLNode(node.Content[i+1], macros, visited) {
				return true
			}
		}
		return false

	case yaml.SequenceNode, yaml.DocumentNode:
		for _, c := range node.Content {
			if scanYAMLNode(c, macros, visited) {
				return true
			}
		}
		return false
	}
	return false
}
