// SPDX-License-Identifier: Unlicense OR MIT

package action

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func parseActionsNode(t *testing.T, doc string) *yaml.Node {
	t.Helper()
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if root.Kind == yaml.DocumentNode {
		return root.Content[0]
	}
	return &root
}

func TestExpandSubstitutesCallSiteParam(t *testing.T) {
	body := parseActionsNode(t, `- focus: "${name}"`)
	def := MacroDef{Params: map[string]string{"name": "app"}, Actions: body}

	actions, err := Expand(def, map[string]string{"name": "firefox"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	f, ok := actions[0].(Focus)
	if !ok || f.Target != "firefox" {
		t.Fatalf("expected Focus{firefox}, got %#v", actions[0])
	}
}

func TestExpandFallsBackToDefault(t *testing.T) {
	body := parseActionsNode(t, `- focus: "${name}"`)
	def := MacroDef{Params: map[string]string{"name": "app"}, Actions: body}

	actions, err := Expand(def, map[string]string{})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	f := actions[0].(Focus)
	if f.Target != "app" {
		t.Fatalf("expected default 'app', got %q", f.Target)
	}
}
