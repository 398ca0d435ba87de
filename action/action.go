// SPDX-License-Identifier: Unlicense OR MIT

// Package action defines the tagged-union action model a button, macro,
// or on_tick list executes, and the interpreter that runs it with
// cooperative pause/resume at Wait and WaitFor.
package action

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Action is the union of things a trigger list can do.
type Action interface {
	isAction()
}

// Exec runs a shell command via "bash -c". If Wait is true the
// interpreter blocks until it exits and a non-zero exit is a failure;
// otherwise it is fire-and-forget and only a spawn error fails.
type Exec struct {
	Cmd  string
	Wait bool
}

func (Exec) isAction() {}

// Jump switches the device to the named page within its current group.
type Jump struct{ Page string }

func (Jump) isAction() {}

// AutoJump re-evaluates focus-driven page selection with force=true.
type AutoJump struct{}

func (AutoJump) isAction() {}

// Focus requests window activation via the focus bridge.
type Focus struct{ Target string }

func (Focus) isAction() {}

// Key synthesizes a keystroke combination, e.g. "ctrl+shift+z".
type Key struct{ Combo string }

func (Key) isAction() {}

// Text synthesizes literal text input, one character at a time.
type Text struct{ Value string }

func (Text) isAction() {}

// Wait schedules a timer and suspends the remaining actions until it
// fires or the 2x-generous deadline passes.
type Wait struct{ Seconds float64 }

func (Wait) isAction() {}

// WaitFor suspends the remaining actions until an event of the named
// category arrives, or Timeout elapses.
type WaitFor struct {
	Event   string
	Timeout float64
}

func (WaitFor) isAction() {}

// Try runs Try; on failure it runs Else (if present), propagating any
// Else failure; with no Else, failure is swallowed.
type Try struct {
	Try  []Action
	Else []Action
}

func (Try) isAction() {}

// And runs each action in order, short-circuiting on the first failure.
type And struct{ Actions []Action }

func (And) isAction() {}

// Or runs each action in order, stopping at the first success; if every
// one fails, the last error is returned.
type Or struct{ Actions []Action }

func (Or) isAction() {}

// Not inverts the pass/fail outcome of Inner.
type Not struct{ Inner Action }

func (Not) isAction() {}

// Return stops the enclosing trigger list as a success.
type Return struct{}

func (Return) isAction() {}

// Fail stops the enclosing trigger list as a failure.
type Fail struct{}

func (Fail) isAction() {}

// Refresh forces a re-render of a page, button, or "all"; never fails.
type Refresh struct{ Target string }

func (Refresh) isAction() {}

// Macro expands to the named macro's body, parameters overriding the
// macro's own defaults, prepended in front of the remaining actions.
type Macro struct {
	Name   string
	Params map[string]string
}

func (Macro) isAction() {}

// List decodes a YAML sequence of single-key action mappings into
// concrete Action values.
type List []Action

func (l *List) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == 0 {
		*l = nil
		return nil
	}
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("action: expected a sequence of actions, got kind %d", node.Kind)
	}
	out := make(List, 0, len(node.Content))
	for _, item := range node.Content {
		a, err := decodeOne(item)
		if err != nil {
			return err
		}
		out = append(out, a)
	}
	*l = out
	return nil
}

func decodeOne(node *yaml.Node) (Action, error) {
	if node.Kind == yaml.ScalarNode {
		switch node.Value {
		case "return":
			return Return{}, nil
		case "fail":
			return Fail{}, nil
		case "autojump":
			return AutoJump{}, nil
		}
		return nil, fmt.Errorf("action: unrecognized bare action %q", node.Value)
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("action: expected a mapping, got kind %d", node.Kind)
	}

	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		fields[node.Content[i].Value] = node.Content[i+1]
	}

	switch {
	case fields["exec"] != nil:
		var e Exec
		if err := fields["exec"].Decode(&e.Cmd); err != nil {
			return nil, fmt.Errorf("action: exec: %w", err)
		}
		if w, ok := fields["wait"]; ok {
			if err := w.Decode(&e.Wait); err != nil {
				return nil, fmt.Errorf("action: exec.wait: %w", err)
			}
		}
		return e, nil
	case fields["jump"] != nil:
		var j Jump
		if err := fields["jump"].Decode(&j.Page); err != nil {
			return nil, fmt.Errorf("action: jump: %w", err)
		}
		return j, nil
	case fields["autojump"] != nil:
		return AutoJump{}, nil
	case fields["focus"] != nil:
		var f Focus
		if err := fields["focus"].Decode(&f.Target); err != nil {
			return nil, fmt.Errorf("action: focus: %w", err)
		}
		return f, nil
	case fields["key"] != nil:
		var k Key
		if err := fields["key"].Decode(&k.Combo); err != nil {
			return nil, fmt.Errorf("action: key: %w", err)
		}
		return k, nil
	case fields["text"] != nil:
		var t Text
		if err := fields["text"].Decode(&t.Value); err != nil {
			return nil, fmt.Errorf("action: text: %w", err)
		}
		return t, nil
	case fields["wait"] != nil:
		var w Wait
		if err := fields["wait"].Decode(&w.Seconds); err != nil {
			return nil, fmt.Errorf("action: wait: %w", err)
		}
		return w, nil
	case fields["waitFor"] != nil:
		var inner struct {
			Event   string  `yaml:"event"`
			Timeout float64 `yaml:"timeout"`
		}
		if err := fields["waitFor"].Decode(&inner); err != nil {
			return nil, fmt.Errorf("action: waitFor: %w", err)
		}
		if inner.Timeout <= 0 {
			inner.Timeout = 10
		}
		return WaitFor{Event: inner.Event, Timeout: inner.Timeout}, nil
	case fields["try"] != nil:
		var tr Try
		var tryList List
		if err := fields["try"].Decode(&tryList); err != nil {
			return nil, fmt.Errorf("action: try: %w", err)
		}
		tr.Try = []Action(tryList)
		if e, ok := fields["else"]; ok {
			var elseList List
			if err := e.Decode(&elseList); err != nil {
				return nil, fmt.Errorf("action: else: %w", err)
			}
			tr.Else = []Action(elseList)
		}
		return tr, nil
	case fields["and"] != nil:
		var list List
		if err := fields["and"].Decode(&list); err != nil {
			return nil, fmt.Errorf("action: and: %w", err)
		}
		return And{Actions: []Action(list)}, nil
	case fields["or"] != nil:
		var list List
		if err := fields["or"].Decode(&list); err != nil {
			return nil, fmt.Errorf("action: or: %w", err)
		}
		return Or{Actions: []Action(list)}, nil
	case fields["not"] != nil:
		inner, err := decodeOne(fields["not"])
		if err != nil {
			return nil, fmt.Errorf("action: not: %w", err)
		}
		return Not{Inner: inner}, nil
	case fields["return"] != nil:
		return Return{}, nil
	case fields["fail"] != nil:
		return Fail{}, nil
	case fields["refresh"] != nil:
		var r Refresh
		if err := fields["refresh"].Decode(&r.Target); err != nil {
			return nil, fmt.Errorf("action: refresh: %w", err)
		}
		return r, nil
	case fields["macro"] != nil:
		var m Macro
		if err := fields["macro"].Decode(&m.Name); err != nil {
			return nil, fmt.Errorf("action: macro: %w", err)
		}
		m.Params = make(map[string]string, len(fields)-1)
		for k, v := range fields {
			if k == "macro" {
				continue
			}
			var s string
			if err := v.Decode(&s); err == nil {
				m.Params[k] = s
			}
		}
		return m, nil
	}
	return nil, fmt.Errorf("action: mapping has no recognized action key")
}
