// SPDX-License-Identifier: Unlicense OR MIT

package action

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

// MacroDef is a named, parameterized action list. Its body is kept as an
// uninterpreted YAML node rather than parsed Actions, since parameter
// substitution is textual and must happen before parsing — the only
// place the loader permits deferred parsing.
type MacroDef struct {
	Params  map[string]string // name -> default value
	Actions *yaml.Node
}

// Expand merges callParams over MacroDef's own defaults, substitutes
// every "${name}" occurrence in a clone of the macro body, and parses
// the result into an action list.
func Expand(def MacroDef, callParams map[string]string) ([]Action, error) {
	final := make(map[string]string, len(def.Params)+len(callParams))
	maps.Copy(final, def.Params)
	maps.Copy(final, callParams) // caller-supplied values win over macro defaults

	substituted := substituteNode(def.Actions, final)

	var list List
	if err := substituted.Decode(&list); err != nil {
		return nil, fmt.Errorf("action: parse macro body after substitution: %w", err)
	}
	return []Action(list), nil
}

func substituteNode(node *yaml.Node, params map[string]string) *yaml.Node {
	clone := *node
	switch node.Kind {
	case yaml.ScalarNode:
		clone.Value = substituteString(node.Value, params)
	case yaml.SequenceNode, yaml.MappingNode, yaml.DocumentNode:
		clone.Content = make([]*yaml.Node, len(node.Content))
		for i, c := range node.Content {
			clone.Content[i] = substituteNode(c, params)
		}
	}
	return &clone
}

func substituteString(s string, params map[string]string) string {
	for name, value := range params {
		s = strings.ReplaceAll(s, "${"+name+"}", value)
	}
	return s
}
