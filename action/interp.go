// SPDX-License-Identifier: Unlicense OR MIT

package action

import (
	"fmt"
	"strings"
	"time"
)

// Host is everything the interpreter needs from the surrounding paged
// controller to carry out an action's effect.
type Host interface {
	Exec(cmd string, wait bool) error
	Jump(page string) error
	AutoJump()
	RequestFocus(target string) error
	SendKey(combo string) error
	SendText(text string) error
	ScheduleWait(seconds float64)
	Refresh(target string)
	ExpandMacro(name string, params map[string]string) ([]Action, error)
}

// Pending is what remains of a trigger list suspended by Wait or
// WaitFor, stored by the paged controller until a matching event
// arrives or the deadline passes.
type Pending struct {
	Actions   []Action
	EventType string
	Deadline  time.Time
}

// Run executes actions against host in order until they complete,
// fail, or a Wait/WaitFor suspends the remainder — in which case Run
// returns the Pending queue the caller should remember and later
// resume via Run(host, pending.Actions).
func Run(host Host, actions []Action) (*Pending, error) {
	for i := 0; i < len(actions); i++ {
		switch v := actions[i].(type) {
		case Wait:
			host.ScheduleWait(v.Seconds)
			return &Pending{
				Actions:   append([]Action(nil), actions[i+1:]...),
				EventType: "timer",
				Deadline:  time.Now().Add(time.Duration(v.Seconds * 2 * float64(time.Second))),
			}, nil

		case WaitFor:
			timeout := v.Timeout
			if timeout <= 0 {
				timeout = 10
			}
			return &Pending{
				Actions:   append([]Action(nil), actions[i+1:]...),
				EventType: strings.ToLower(v.Event),
				Deadline:  time.Now().Add(time.Duration(timeout * float64(time.Second))),
			}, nil

		case Macro:
			expanded, err := host.ExpandMacro(v.Name, v.Params)
			if err != nil {
				return nil, err
			}
			rest := make([]Action, 0, len(expanded)+len(actions)-i-1)
			rest = append(rest, expanded...)
			rest = append(rest, actions[i+1:]...)
			return Run(host, rest)

		case Return:
			return nil, nil

		case Fail:
			return nil, fmt.Errorf("action: fail action executed")

		case Exec:
			if err := host.Exec(v.Cmd, v.Wait); err != nil {
				return nil, err
			}

		case Jump:
			if err := host.Jump(v.Page); err != nil {
				return nil, err
			}

		case AutoJump:
			host.AutoJump()

		case Focus:
			if err := host.RequestFocus(v.Target); err != nil {
				return nil, err
			}

		case Key:
			if err := host.SendKey(v.Combo); err != nil {
				return nil, err
			}

		case Text:
			if err := host.SendText(v.Value); err != nil {
				return nil, err
			}

		case Refresh:
			host.Refresh(v.Target)

		case Try:
			pending, err := Run(host, v.Try)
			if pending != nil {
				return pending, nil
			}
			if err != nil && v.Else != nil {
				p2, err2 := Run(host, v.Else)
				if p2 != nil {
					return p2, nil
				}
				if err2 != nil {
					return nil, err2
				}
			}

		case And:
			for _, sub := range v.Actions {
				p, err := Run(host, []Action{sub})
				if p != nil {
					return p, nil
				}
				if err != nil {
					return nil, err
				}
			}

		case Or:
			var lastErr error
			succeeded := false
			for _, sub := range v.Actions {
				p, err := Run(host, []Action{sub})
				if p != nil {
					return p, nil
				}
				if err == nil {
					succeeded = true
					break
				}
				lastErr = err
			}
			if !succeeded {
				if lastErr == nil {
					lastErr = fmt.Errorf("action: all OR conditions failed")
				}
				return nil, lastErr
			}

		case Not:
			p, err := Run(host, []Action{v.Inner})
			if p != nil {
				return p, nil
			}
			if err == nil {
				return nil, fmt.Errorf("action: NOT condition: action succeeded (inverted to failure)")
			}

		default:
			return nil, fmt.Errorf("action: unsupported action type %T", actions[i])
		}
	}
	return nil, nil
}
