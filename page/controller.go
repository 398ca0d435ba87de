// SPDX-License-Identifier: Unlicense OR MIT

// Package page runs the paged controller: the per-device state machine
// that tracks which page is active, dispatches input to button
// actions, drives focus-triggered page switching, and renders the
// active page's buttons onto the device.
package page

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"keydeck.dev/keydeck/action"
	"keydeck.dev/keydeck/config"
	"keydeck.dev/keydeck/device"
	"keydeck.dev/keydeck/event"
	"keydeck.dev/keydeck/internal/klog"
	"keydeck.dev/keydeck/render"
	"keydeck.dev/keydeck/scheduler"
	"keydeck.dev/keydeck/service"
)

// FocusBackend requests activation of the window matching target,
// implemented per-session-type by the focus package.
type FocusBackend interface {
	RequestFocus(target string) error
}

// Keyboard synthesizes key combinations and literal text, implemented
// by the focus package's XTest-backed keyboard driver.
type Keyboard interface {
	SendKey(combo string) error
	SendText(text string) error
}

// noPage is the sentinel current-page index: larger than any real page
// count, so the very first SetPage call always sees a change and
// renders, mirroring usize::MAX in the original.
const noPage = ^uint(0)

// Controller owns one device's paged state: current page, per-button
// render cache, the pending action queue left by a Wait/WaitFor, and
// focus-driven page-switch bookkeeping.
type Controller struct {
	Serial string

	dev   device.Device
	cfg   *config.Config
	group config.PageGroup
	order []string // PageGroup.PageOrder(), stable for this Controller's lifetime

	hub      *event.Hub
	sched    *scheduler.Scheduler
	services *service.State
	focus    FocusBackend
	keyboard Keyboard
	cache    *render.Cache

	currentPage    uint
	lastActivePage *string
	currentClass   string
	currentTitle   string
	pending        *action.Pending
}

// New builds a Controller for dev, starting on group's main page (or its
// first page, in declaration order, if main_page is unset).
func New(serial string, dev device.Device, cfg *config.Config, group config.PageGroup, hub *event.Hub, sched *scheduler.Scheduler, services *service.State, focus FocusBackend, keyboard Keyboard, cache *render.Cache) *Controller {
	c := &Controller{
		Serial:      serial,
		dev:         dev,
		cfg:         cfg,
		group:       group,
		order:       group.PageOrder(),
		hub:         hub,
		sched:       sched,
		services:    services,
		focus:       focus,
		keyboard:    keyboard,
		cache:       cache,
		currentPage: noPage,
	}

	if err := dev.ClearAllButtonImages(); err != nil {
		klog.Warn("page %s: clear button images: %v", serial, err)
	}
	cache.InvalidateDevice(serial)
	if err := dev.SetBrightness(50); err != nil {
		klog.Warn("page %s: set brightness: %v", serial, err)
	}

	mainPage := c.group.MainPage
	if mainPage == "" && len(c.order) > 0 {
		mainPage = c.order[0]
	}
	if mainPage != "" {
		if err := c.SetPage(mainPage, false); err != nil {
			klog.Warn("page %s: initial page %q: %v", serial, mainPage, err)
		}
	}

	return c
}

// HandleTick runs the active page's on_tick actions, then re-renders its
// dynamic buttons (the cache skips any whose content is unchanged).
func (c *Controller) HandleTick() {
	if page, ok := c.findPage(c.currentPage); ok && page.OnTick != nil {
		if err := c.run([]action.Action(page.OnTick)); err != nil {
			klog.Error("page %s: tick actions: %v", c.Serial, err)
		}
	}
	dynamic := false
	now := time.Now()
	for i := uint8(1); i <= c.dev.ButtonCount(); i++ {
		if btn, ok := c.findButton(c.currentPage, i); ok && btn.IsDynamic {
			c.renderButton(i, btn, now)
			dynamic = true
		}
	}
	if dynamic {
		if err := c.dev.Flush(); err != nil {
			klog.Warn("page %s: flush: %v", c.Serial, err)
		}
	}
}

// HandleButtonDown is a no-op: every button's actions fire on release,
// matching a physical key's natural click semantics.
func (c *Controller) HandleButtonDown(buttonID uint8) {}

// HandleButtonUp cancels any pending wait and runs the pressed button's
// actions.
func (c *Controller) HandleButtonUp(buttonID uint8) {
	c.cancelPending()
	btn, ok := c.findButton(c.currentPage, buttonID)
	if !ok || btn.Actions == nil {
		return
	}
	if err := c.run([]action.Action(btn.Actions)); err != nil {
		klog.Error("page %s: button %d actions: %v", c.Serial, buttonID, err)
	}
}

// HandleEncoderDown, HandleEncoderUp, HandleEncoderTwist, HandleTouchPointDown,
// HandleTouchPointUp and HandleTouchScreenEvent all cancel a pending
// wait the same way button input does; none of them carry their own
// trigger-list actions (spec §9, open question a — these events are
// not yet addressable from page config).
func (c *Controller) HandleEncoderDown(uint8)      { c.cancelPending() }
func (c *Controller) HandleEncoderUp(uint8)        { c.cancelPending() }
func (c *Controller) HandleEncoderTwist(uint8, int8) { c.cancelPending() }
func (c *Controller) HandleTouchPointDown(uint8)   { c.cancelPending() }
func (c *Controller) HandleTouchPointUp(uint8)     { c.cancelPending() }
func (c *Controller) HandleTouchScreenEvent()      { c.cancelPending() }

// HandleTimerComplete resumes a pending queue that was waiting on the
// device's own Wait{} timer.
func (c *Controller) HandleTimerComplete() {
	c.resumePending("timer")
}

// HandleWaitForEvent resumes a pending queue waiting on eventType (e.g.
// "focus", "page"), if one exists and hasn't timed out. Returns true if
// a queue was consumed.
func (c *Controller) HandleWaitForEvent(eventType string) bool {
	return c.resumePending(eventType)
}

func (c *Controller) resumePending(eventType string) bool {
	p := c.pending
	if p == nil {
		return false
	}
	c.pending = nil

	if time.Now().After(p.Deadline) {
		klog.Verbose("page %s: pending action queue timed out waiting for %q", c.Serial, p.EventType)
		return false
	}
	if p.EventType != eventType {
		c.pending = p
		return false
	}

	klog.Verbose("page %s: resuming actions waiting for %q", c.Serial, eventType)
	if err := c.run(p.Actions); err != nil {
		klog.Error("page %s: resumed actions: %v", c.Serial, err)
	}
	return true
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		klog.Verbose("page %s: canceling actions waiting for %q", c.Serial, c.pending.EventType)
		c.pending = nil
	}
}

func (c *Controller) run(actions []action.Action) error {
	pending, err := action.Run(c, actions)
	c.pending = pending
	return err
}

// HandleFocusChanged records the new foreground window and switches
// pages per spec §4.H: the first page whose window_class/window_title
// matches wins; otherwise the group's restore_mode decides what to show.
func (c *Controller) HandleFocusChanged(class, title string, force bool) {
	c.currentClass, c.currentTitle = class, title
	if class == "" && title == "" {
		return
	}

	if !force {
		if page, ok := c.findPage(c.currentPage); ok && boolValue(page.Lock) {
			return
		}
	}

	for _, name := range c.order {
		p := c.group.Pages[name]
		if p.WindowClass != "" && strings.Contains(foldCase(class), foldCase(p.WindowClass)) {
			c.setPageChecked(name, true)
			return
		}
		if p.WindowTitle != "" && strings.Contains(foldCase(title), foldCase(p.WindowTitle)) {
			c.setPageChecked(name, true)
			return
		}
	}

	if c.lastActivePage != nil {
		last := *c.lastActivePage
		switch c.group.RestoreMode {
		case config.RestoreLast:
			c.setPageChecked(last, false)
		case config.RestoreMain:
			c.setPageChecked(c.mainOrFirstPage(), false)
		case config.RestoreKeep:
			// leave the current page as-is
		}
		c.lastActivePage = nil
		return
	}

	if force {
		c.setPageChecked(c.mainOrFirstPage(), false)
	}
}

func (c *Controller) mainOrFirstPage() string {
	if c.group.MainPage != "" {
		return c.group.MainPage
	}
	if len(c.order) > 0 {
		return c.order[0]
	}
	return ""
}

func (c *Controller) setPageChecked(name string, auto bool) {
	if name == "" {
		return
	}
	if err := c.SetPage(name, auto); err != nil {
		klog.Error("page %s: %v", c.Serial, err)
	}
}

// SetPage switches the device to name within its current group. auto
// distinguishes a focus-driven switch (which remembers the page to
// restore to later) from an explicit Jump action (which doesn't).
func (c *Controller) SetPage(name string, auto bool) error {
	idx := c.indexOf(name)
	if idx < 0 {
		return fmt.Errorf("page: page %q not found", name)
	}
	newIdx := uint(idx)
	if newIdx == c.currentPage {
		return nil
	}
	klog.Verbose("page %s: switching to %q", c.Serial, name)

	if auto {
		if c.lastActivePage == nil {
			if oldPage, ok := c.findPage(c.currentPage); ok && !boolValue(oldPage.Lock) {
				if oldName, ok := c.nameAt(c.currentPage); ok {
					c.lastActivePage = &oldName
				}
			}
		}
	} else {
		c.lastActivePage = nil
	}

	c.currentPage = newIdx
	c.refreshPage()
	return nil
}

func (c *Controller) indexOf(name string) int {
	for i, n := range c.order {
		if n == name {
			return i
		}
	}
	return -1
}

func (c *Controller) nameAt(idx uint) (string, bool) {
	if idx >= uint(len(c.order)) {
		return "", false
	}
	return c.order[idx], true
}

func (c *Controller) findPage(idx uint) (config.Page, bool) {
	name, ok := c.nameAt(idx)
	if !ok {
		return config.Page{}, false
	}
	p, ok := c.group.Pages[name]
	return p, ok
}

func (c *Controller) findButton(pageIdx uint, buttonID uint8) (config.Button, bool) {
	page, ok := c.findPage(pageIdx)
	if !ok {
		return config.Button{}, false
	}
	key := "button" + strconv.Itoa(int(buttonID))
	slot, ok := page.Buttons[key]
	if !ok {
		return config.Button{}, false
	}
	if slot.Inline != nil {
		return *slot.Inline, true
	}
	btn, ok := c.cfg.Buttons[slot.TemplateRef]
	if !ok {
		klog.Warn("page %s: button definition %q not found", c.Serial, slot.TemplateRef)
		return config.Button{}, false
	}
	return btn, true
}

// refreshPage re-renders every button position of the current page,
// skipping any whose fingerprint hasn't changed since the last render.
func (c *Controller) refreshPage() {
	count := c.dev.ButtonCount()
	now := time.Now()
	for i := uint8(1); i <= count; i++ {
		btn, ok := c.findButton(c.currentPage, i)
		if !ok {
			c.clearButton(i)
			continue
		}
		c.renderButton(i, btn, now)
	}
	if err := c.dev.Flush(); err != nil {
		klog.Warn("page %s: flush: %v", c.Serial, err)
	}
}

func (c *Controller) clearButton(i uint8) {
	if !c.cache.ShouldRender(c.Serial, i, "") {
		return
	}
	if err := c.dev.ClearButtonImage(i - 1); err != nil {
		klog.Warn("page %s: clear button %d: %v", c.Serial, i, err)
	}
}

func (c *Controller) renderButton(i uint8, btn config.Button, now time.Time) {
	spec, err := c.buildButtonSpec(btn, now)
	if err != nil {
		klog.Error("page %s: button %d: %v", c.Serial, i, err)
		c.cache.Invalidate(c.Serial, i)
		if err := c.dev.ClearButtonImage(i - 1); err != nil {
			klog.Warn("page %s: clear button %d: %v", c.Serial, i, err)
		}
		return
	}

	if !c.cache.ShouldRender(c.Serial, i, spec.Fingerprint()) {
		return
	}

	canvas := c.cache.Acquire()
	defer c.cache.Release(canvas)
	if err := render.Render(canvas, spec); err != nil {
		klog.Error("page %s: button %d render: %v", c.Serial, i, err)
		if err := c.dev.ClearButtonImage(i - 1); err != nil {
			klog.Warn("page %s: clear button %d: %v", c.Serial, i, err)
		}
		return
	}
	if err := c.dev.SetButtonImage(i-1, canvas); err != nil {
		klog.Warn("page %s: set button %d image: %v", c.Serial, i, err)
	}
}

func (c *Controller) buildButtonSpec(btn config.Button, now time.Time) (render.ButtonSpec, error) {
	var spec render.ButtonSpec

	text := ""
	fontSize := 0.0
	if btn.Text != nil {
		text = c.substitute(btn.Text.Value, now)
		fontSize = btn.Text.FontSize
	}
	spec.Text = text
	spec.FontSize = fontSize

	if btn.Icon != "" {
		spec.IconPath = c.resolveIconPath(btn.Icon)
	}

	if btn.Background != "" {
		col, err := render.ParseColor(c.resolveColorName(c.substitute(btn.Background, now)))
		if err != nil {
			return spec, fmt.Errorf("background color: %w", err)
		}
		spec.Background = &col
	}

	if btn.TextColor != "" {
		col, err := render.ParseColor(c.resolveColorName(c.substitute(btn.TextColor, now)))
		if err != nil {
			return spec, fmt.Errorf("text color: %w", err)
		}
		spec.TextColor = col
	} else if white, err := render.ParseColor("white"); err == nil {
		spec.TextColor = white
	}

	if btn.Outline != "" {
		col, err := render.ParseColor(c.resolveColorName(c.substitute(btn.Outline, now)))
		if err != nil {
			return spec, fmt.Errorf("outline color: %w", err)
		}
		spec.OutlineColor = &col
	}

	if btn.Draw != nil {
		draw, err := c.buildDrawSpec(*btn.Draw, now)
		if err != nil {
			return spec, err
		}
		spec.Draws = append(spec.Draws, draw)
	}

	return spec, nil
}

func (c *Controller) buildDrawSpec(d config.Draw, now time.Time) (render.DrawSpec, error) {
	spec := render.DrawSpec{
		X: d.X, Y: d.Y, W: d.W, H: d.H,
		Min: d.Min, Max: d.Max,
		Segments: d.Segments,
		Spacing:  d.Spacing,
	}

	switch strings.ToLower(d.Kind) {
	case "gauge":
		spec.Kind = render.GraphicGauge
	case "multibar":
		spec.Kind = render.GraphicMultiBar
	default:
		spec.Kind = render.GraphicBar
	}
	switch strings.ToLower(d.Direction) {
	case "right_to_left":
		spec.Direction = render.RightToLeft
	case "top_to_bottom":
		spec.Direction = render.TopToBottom
	case "bottom_to_top":
		spec.Direction = render.BottomToTop
	default:
		spec.Direction = render.LeftToRight
	}

	if spec.Kind == render.GraphicMultiBar {
		for _, raw := range d.Values {
			v, err := parseFloat(c.substitute(raw, now))
			if err != nil {
				return spec, fmt.Errorf("draw value %q: %w", raw, err)
			}
			spec.Values = append(spec.Values, v)
		}
		for _, cstr := range d.Colors {
			col, err := render.ParseColor(c.resolveColorName(cstr))
			if err != nil {
				return spec, err
			}
			spec.Colors = append(spec.Colors, col)
		}
		return spec, nil
	}

	v, err := parseFloat(c.substitute(d.Value, now))
	if err != nil {
		return spec, fmt.Errorf("draw value %q: %w", d.Value, err)
	}
	spec.Value = v

	if len(d.ColorMap) > 0 {
		var stops []render.Stop
		for _, s := range d.ColorMap {
			col, err := render.ParseColor(c.resolveColorName(s.Color))
			if err != nil {
				return spec, err
			}
			stops = append(stops, render.Stop{Percent: s.Percent, Color: col})
		}
		rng := d.Max - d.Min
		percent := 0.0
		if rng != 0 {
			percent = (v - d.Min) / rng * 100
		}
		spec.Color = render.FromMap(percent, stops)
	} else if d.Color != "" {
		col, err := render.ParseColor(c.resolveColorName(d.Color))
		if err != nil {
			return spec, err
		}
		spec.Color = col
	}

	return spec, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// resolveColorName follows the configuration's named color map to a
// fixed point, matching string_to_color's recursion so one named color
// can alias another (colors: {danger: warn, warn: "#ff0000"}). A name
// that reappears while resolving breaks the chain and returns the name
// as-is, so a cycle fails at ParseColor rather than looping forever.
func (c *Controller) resolveColorName(s string) string {
	seen := map[string]bool{}
	for {
		named, ok := c.cfg.Colors[s]
		if !ok || seen[s] {
			return s
		}
		seen[s] = true
		s = named
	}
}

func (c *Controller) resolveIconPath(icon string) string {
	if c.cfg.ImageDir == "" {
		return icon
	}
	return c.cfg.ImageDir + "/" + icon
}

// substitute resolves "${provider:arg}" placeholders for a currently
// rendering button. Buttons not flagged IsDynamic never reach here with
// unresolved content, but substitute is harmless to call unconditionally.
func (c *Controller) substitute(s string, now time.Time) string {
	return service.Evaluate(s, c.services, now)
}

func boolValue(b *bool) bool { return b != nil && *b }

var foldCaser = cases.Fold()

// foldCase applies full Unicode case folding (e.g. "ß" folds to "ss"),
// which strings.ToLower's per-rune lower-casing does not, so
// window_class/window_title matching is case-insensitive for non-ASCII
// window titles too.
func foldCase(s string) string { return foldCaser.String(s) }
