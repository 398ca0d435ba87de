// SPDX-License-Identifier: Unlicense OR MIT

package page

import (
	"bytes"
	"fmt"
	"os/exec"
	"time"

	"keydeck.dev/keydeck/action"
	"keydeck.dev/keydeck/internal/klog"
)

// Controller implements action.Host so the interpreter can drive this
// device's focus requests, keystrokes, page jumps and macro expansion
// without knowing anything about hardware or rendering.
var _ action.Host = (*Controller)(nil)

// Exec runs cmd via "bash -c". If wait is true it blocks for the exit
// status and a non-zero exit is a failure; otherwise it is
// fire-and-forget and only a spawn error is reported.
func (c *Controller) Exec(cmd string, wait bool) error {
	if wait {
		command := exec.Command("bash", "-c", cmd)
		var stderr bytes.Buffer
		command.Stderr = &stderr
		if err := command.Run(); err != nil {
			return fmt.Errorf("command %q failed: %w: %s", cmd, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil
	}
	if err := exec.Command("bash", "-c", cmd).Start(); err != nil {
		return fmt.Errorf("failed to start command %q: %w", cmd, err)
	}
	return nil
}

// Jump switches to page within this controller's group, clearing any
// last-active-page restore target the way an explicit user choice should.
func (c *Controller) Jump(pageName string) error {
	return c.SetPage(pageName, false)
}

// AutoJump re-evaluates focus-driven page selection immediately, as if
// the current window had just gained focus again.
func (c *Controller) AutoJump() {
	c.HandleFocusChanged(c.currentClass, c.currentTitle, true)
}

// RequestFocus asks the configured focus backend to activate target.
func (c *Controller) RequestFocus(target string) error {
	if c.focus == nil {
		return fmt.Errorf("page: no focus backend configured")
	}
	if err := c.focus.RequestFocus(target); err != nil {
		return err
	}
	klog.Verbose("page %s: requested focus for %q", c.Serial, target)
	return nil
}

// SendKey synthesizes combo via the configured keyboard backend.
func (c *Controller) SendKey(combo string) error {
	if c.keyboard == nil {
		return fmt.Errorf("page: no keyboard backend configured")
	}
	return c.keyboard.SendKey(combo)
}

// SendText synthesizes text via the configured keyboard backend.
func (c *Controller) SendText(text string) error {
	if c.keyboard == nil {
		return fmt.Errorf("page: no keyboard backend configured")
	}
	return c.keyboard.SendText(text)
}

// ScheduleWait arranges for a TimerComplete event to arrive after
// seconds, with a generously doubled deadline recorded by action.Run
// itself.
func (c *Controller) ScheduleWait(seconds float64) {
	c.sched.ScheduleTimer(c.Serial, time.Duration(seconds*float64(time.Second)))
}

// Refresh forces a re-render. target is currently always treated as
// "this device's active page" — per-button and cross-device refresh
// targets are not addressable from config (spec §9).
func (c *Controller) Refresh(target string) {
	c.cache.InvalidateDevice(c.Serial)
	c.refreshPage()
}

// ExpandMacro looks up name in the loaded configuration and expands it
// with params overriding the macro's own defaults.
func (c *Controller) ExpandMacro(name string, params map[string]string) ([]action.Action, error) {
	raw, ok := c.cfg.Macros[name]
	if !ok {
		return nil, fmt.Errorf("macro %q not found", name)
	}
	return action.Expand(raw.Def(), params)
}
