// SPDX-License-Identifier: Unlicense OR MIT

// Package daemon wires every other package into the running process:
// it owns the event hub, the device watcher, the scheduler, the service
// state, the focus bridge, and one page.Controller per attached device,
// and runs the single consumer loop that drains the hub and dispatches
// each event to the right place. It is the Go equivalent of server.rs's
// start_server and paged_device.rs's per-device dispatch combined.
package daemon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"keydeck.dev/keydeck/config"
	"keydeck.dev/keydeck/device"
	"keydeck.dev/keydeck/event"
	"keydeck.dev/keydeck/focus"
	"keydeck.dev/keydeck/internal/klog"
	"keydeck.dev/keydeck/page"
	"keydeck.dev/keydeck/render"
	"keydeck.dev/keydeck/scheduler"
	"keydeck.dev/keydeck/service"
)

// Daemon owns every piece of shared runtime state and the goroutines
// that feed events into hub.
type Daemon struct {
	cfgPath       string
	registryPaths []string
	lock          Lock

	cfg      *config.Config
	hub      *event.Hub
	sched    *scheduler.Scheduler
	registry *device.Registry
	watcher  *device.Watcher
	bridge   focus.Bridge

	mu          sync.Mutex
	services    *service.State
	controllers map[string]*page.Controller
	devices     map[string]device.Device
	readerStops map[string]chan struct{}
	caches      map[[2]uint16]*render.Cache

	stop chan struct{}
	wg   sync.WaitGroup
}

// New loads configuration and the device registry, opens the focus
// bridge for the current session, and returns a Daemon ready for Run.
// registryPaths lists directories searched (in order) for Mirajazz
// device-definition JSON files; a registry that matches nothing is not
// fatal; Elgato-class devices still work.
func New(cfgPath string, registryPaths []string, lock Lock) (*Daemon, error) {
	cfg, err := config.Load(context.Background(), cfgPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	registry, err := device.LoadRegistry(registryPaths)
	if err != nil {
		klog.Warn("daemon: device registry unavailable (%v); only Elgato-class panels will be recognized", err)
		registry = nil
	}

	bridge, err := focus.New()
	if err != nil {
		return nil, fmt.Errorf("daemon: focus bridge: %w", err)
	}

	if lock == nil {
		lock = NoopLock{}
	}

	return &Daemon{
		cfgPath:       cfgPath,
		registryPaths: registryPaths,
		lock:          lock,
		cfg:           cfg,
		hub:           event.NewHub(64),
		sched:         scheduler.New(),
		registry:      registry,
		watcher:       device.NewWatcher(registry),
		bridge:        bridge,
		services:      service.NewState(buildServiceConfigs(cfg)),
		controllers:   make(map[string]*page.Controller),
		devices:       make(map[string]device.Device),
		readerStops:   make(map[string]chan struct{}),
		caches:        make(map[[2]uint16]*render.Cache),
	}, nil
}

// Run starts every listener goroutine and blocks in the consumer loop
// until an Exit event arrives (sent by the signal listener on SIGINT or
// SIGTERM), then shuts everything down in reverse order.
func (d *Daemon) Run() error {
	ok, err := d.lock.TryAcquire()
	if err != nil {
		return fmt.Errorf("daemon: acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("daemon: another instance is already running")
	}
	defer d.lock.Release()

	d.stop = make(chan struct{})

	go d.watcher.Run(d.stop, d.onAttach, d.onDetach)
	go d.sched.Run(d.stop, d.hub.Send)
	go d.runClock()
	go runSignalListener(d.stop, d.hub.Send)
	go runReloadListener(d.stop, d.hub.Send)
	go runSleepListener(d.stop, d.hub.Send, d.watcher.SignalSleepResume)

	if watcher, ok := d.bridge.(focus.Watcher); ok {
		go watcher.Watch(d.stop, d.onFocusChanged)
	} else {
		klog.Warn("daemon: focus backend reports no change notifications; focus-driven page switching is disabled")
	}

	klog.Info("daemon: running")
	for ev := range d.hub.Events() {
		if d.dispatch(ev) {
			break
		}
	}

	close(d.stop)
	d.shutdownDevices()
	d.services.Stop()
	d.wg.Wait()
	klog.Info("daemon: stopped")
	return nil
}

// dispatch routes one event to the right controller/daemon-level
// handler, reporting true when the daemon should exit.
func (d *Daemon) dispatch(ev event.Event) (exit bool) {
	if cat, ok := event.Category(ev); ok && cat != event.WaitTimer {
		d.forEachController(func(c *page.Controller) { c.HandleWaitForEvent(string(cat)) })
	}
	switch e := ev.(type) {
	case event.ButtonDown:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleButtonDown(e.Button) })
	case event.ButtonUp:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleButtonUp(e.Button) })
	case event.EncoderDown:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleEncoderDown(e.Encoder) })
	case event.EncoderUp:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleEncoderUp(e.Encoder) })
	case event.EncoderTwist:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleEncoderTwist(e.Encoder, e.Ticks) })
	case event.TouchPointDown:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleTouchPointDown(e.Point) })
	case event.TouchPointUp:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleTouchPointUp(e.Point) })
	case event.TouchScreenPress:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleTouchScreenEvent() })
	case event.TouchScreenLongPress:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleTouchScreenEvent() })
	case event.TouchScreenSwipe:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleTouchScreenEvent() })
	case event.FocusChanged:
		d.forEachController(func(c *page.Controller) { c.HandleFocusChanged(e.Class, e.Title, false) })
	case event.Tick:
		d.forEachController(func(c *page.Controller) { c.HandleTick() })
	case event.TimerComplete:
		d.withController(e.Serial, func(c *page.Controller) { c.HandleTimerComplete() })
	case event.SetBrightness:
		d.applyBrightness(e.Serial, e.Value)
	case event.NewDevice:
		d.attachDevice(e.Serial)
	case event.RemovedDevice:
		d.detachDevice(e.Serial)
	case event.Sleep:
		if e.Going {
			klog.Verbose("daemon: system going to sleep")
		} else {
			klog.Verbose("daemon: system resumed")
		}
	case event.Reload:
		d.reload()
	case event.Exit:
		return true
	}
	return false
}

func (d *Daemon) withController(serial string, fn func(*page.Controller)) {
	d.mu.Lock()
	c, ok := d.controllers[serial]
	d.mu.Unlock()
	if ok {
		fn(c)
	}
}

func (d *Daemon) forEachController(fn func(*page.Controller)) {
	d.mu.Lock()
	cs := make([]*page.Controller, 0, len(d.controllers))
	for _, c := range d.controllers {
		cs = append(cs, c)
	}
	d.mu.Unlock()
	for _, c := range cs {
		fn(c)
	}
}

func (d *Daemon) applyBrightness(serial string, value uint8) {
	d.mu.Lock()
	dev, ok := d.devices[serial]
	d.mu.Unlock()
	if !ok {
		return
	}
	if err := dev.SetBrightness(value); err != nil {
		klog.Warn("daemon: set brightness on %s: %v", serial, err)
	}
}

func (d *Daemon) onFocusChanged(class, title string) {
	d.hub.Send(event.FocusChanged{Class: class, Title: title})
}

// onAttach is the device watcher's NewDevice callback; it only sends
// the hub event, keeping device classification/opening on the
// consumer-loop goroutine via attachDevice so controllers are never
// touched from two goroutines at once.
func (d *Daemon) onAttach(serial string) { d.hub.Send(event.NewDevice{Serial: serial}) }
func (d *Daemon) onDetach(serial string) { d.hub.Send(event.RemovedDevice{Serial: serial}) }

// attachDevice opens serial, assigns it a page group, and starts its
// reader goroutine. Runs on the consumer loop.
func (d *Daemon) attachDevice(serial string) {
	dev, err := d.watcher.Open(serial)
	if err != nil {
		klog.Warn("daemon: open device %s: %v", serial, err)
		return
	}

	group, groupName, ok := d.assignGroup(dev, serial)
	if !ok {
		klog.Warn("daemon: no page group configured for device %s (kind %q); leaving unmanaged", serial, dev.KindName())
		dev.ClearAllButtonImages()
		return
	}

	w, h := dev.ButtonImageSize()
	ctrl := page.New(serial, dev, d.cfg, group, d.hub, d.sched, d.services, d.bridge, d.bridge, d.cacheFor(w, h))

	stopRead := make(chan struct{})
	d.mu.Lock()
	d.devices[serial] = dev
	d.controllers[serial] = ctrl
	d.readerStops[serial] = stopRead
	d.mu.Unlock()

	d.wg.Add(1)
	go d.readDevice(serial, dev, stopRead)

	klog.Info("daemon: attached device %s (%s), page group %q", serial, dev.KindName(), groupName)
}

// detachDevice stops serial's reader, drops its scheduled timers and
// controller, and releases the underlying device.
func (d *Daemon) detachDevice(serial string) {
	d.mu.Lock()
	stopRead, hasReader := d.readerStops[serial]
	dev, hasDev := d.devices[serial]
	delete(d.controllers, serial)
	delete(d.devices, serial)
	delete(d.readerStops, serial)
	d.mu.Unlock()

	if hasReader {
		close(stopRead)
	}
	d.sched.CancelDevice(serial)
	if hasDev {
		if err := dev.Shutdown(); err != nil {
			klog.Verbose("daemon: shutdown %s: %v", serial, err)
		}
	}
	klog.Info("daemon: detached device %s", serial)
}

func (d *Daemon) shutdownDevices() {
	d.mu.Lock()
	serials := make([]string, 0, len(d.devices))
	for s := range d.devices {
		serials = append(serials, s)
	}
	d.mu.Unlock()
	for _, s := range serials {
		d.detachDevice(s)
	}
}

// readDevice polls dev's input endpoint until stop closes, forwarding
// every StateUpdate onto the hub as the matching event.Event.
func (d *Daemon) readDevice(serial string, dev device.Device, stop <-chan struct{}) {
	defer d.wg.Done()
	reader, err := dev.Reader()
	if err != nil {
		klog.Warn("daemon: %s: no input reader: %v", serial, err)
		return
	}
	for {
		select {
		case <-stop:
			return
		default:
		}
		updates, err := reader.Read(200 * time.Millisecond)
		if err != nil {
			klog.Verbose("daemon: %s: read: %v", serial, err)
			continue
		}
		for _, u := range updates {
			if ev, ok := toEvent(serial, u); ok && !d.hub.TrySend(ev) {
				klog.Warn("daemon: hub full, dropping input event from %s", serial)
			}
		}
	}
}

func toEvent(serial string, u device.StateUpdate) (event.Event, bool) {
	switch u.Kind {
	case device.ButtonDown:
		return event.ButtonDown{Serial: serial, Button: u.Key + 1}, true
	case device.ButtonUp:
		return event.ButtonUp{Serial: serial, Button: u.Key + 1}, true
	case device.EncoderDown:
		return event.EncoderDown{Serial: serial, Encoder: u.Key}, true
	case device.EncoderUp:
		return event.EncoderUp{Serial: serial, Encoder: u.Key}, true
	case device.EncoderTwist:
		return event.EncoderTwist{Serial: serial, Encoder: u.Key, Ticks: u.Ticks}, true
	case device.TouchPointDown:
		return event.TouchPointDown{Serial: serial, Point: u.Key}, true
	case device.TouchPointUp:
		return event.TouchPointUp{Serial: serial, Point: u.Key}, true
	case device.TouchScreenPress:
		return event.TouchScreenPress{Serial: serial, X: u.X, Y: u.Y}, true
	case device.TouchScreenLongPress:
		return event.TouchScreenLongPress{Serial: serial, X: u.X, Y: u.Y}, true
	case device.TouchScreenSwipe:
		return event.TouchScreenSwipe{Serial: serial, FromX: u.X, FromY: u.Y, ToX: u.TargetX, ToY: u.TargetY}, true
	default:
		return nil, false
	}
}

// runClock sends a Tick event every configured tick_time, defaulting to
// 5s (config.Load already fills this default, but Run may be exercised
// directly in tests against a zero-value Document).
func (d *Daemon) runClock() {
	interval := time.Duration(d.cfg.TickTime * float64(time.Second))
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.hub.TrySend(event.Tick{})
		}
	}
}

func (d *Daemon) cacheFor(w, h uint16) *render.Cache {
	key := [2]uint16{w, h}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.caches[key]; ok {
		return c
	}
	c := render.NewCache(int(w), int(h))
	d.caches[key] = c
	return c
}

// assignGroup picks which config.PageGroup a newly attached device
// should run. The original Rust daemon only ever supported one global
// page set (server.rs/paged_device.rs); this port generalizes to
// config's named page_groups map with no explicit device-binding field,
// so the match falls through, in order: the device's own serial, its
// KindName() (so every panel of one model shares a group by default),
// a literal "default" group, and finally the lexicographically-first
// configured group, so a single-page_groups config always binds to
// something.
func (d *Daemon) assignGroup(dev device.Device, serial string) (config.PageGroup, string, bool) {
	groups := d.cfg.PageGroups
	if g, ok := groups[serial]; ok {
		return g, serial, true
	}
	if g, ok := groups[dev.KindName()]; ok {
		return g, dev.KindName(), true
	}
	if g, ok := groups["default"]; ok {
		return g, "default", true
	}
	if len(groups) == 0 {
		return config.PageGroup{}, "", false
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return groups[names[0]], names[0], true
}

// reload re-reads configuration from cfgPath and rebuilds services and
// every attached device's controller in place, preserving each device's
// open connection (devices are not re-probed, matching the original's
// "reload config without replugging hardware" behavior).
func (d *Daemon) reload() {
	cfg, err := config.Load(context.Background(), d.cfgPath)
	if err != nil {
		klog.Error("daemon: reload: %v", err)
		return
	}

	d.mu.Lock()
	oldServices := d.services
	d.cfg = cfg
	d.services = service.NewState(buildServiceConfigs(cfg))
	devices := make(map[string]device.Device, len(d.devices))
	for s, dev := range d.devices {
		devices[s] = dev
	}
	d.mu.Unlock()
	oldServices.Stop()

	for serial, dev := range devices {
		group, groupName, ok := d.assignGroup(dev, serial)
		if !ok {
			klog.Warn("daemon: reload: no page group for device %s; leaving unmanaged", serial)
			d.mu.Lock()
			delete(d.controllers, serial)
			d.mu.Unlock()
			continue
		}
		w, h := dev.ButtonImageSize()
		ctrl := page.New(serial, dev, cfg, group, d.hub, d.sched, d.services, d.bridge, d.bridge, d.cacheFor(w, h))
		d.mu.Lock()
		d.controllers[serial] = ctrl
		d.mu.Unlock()
		klog.Info("daemon: reloaded device %s, page group %q", serial, groupName)
	}
	klog.Info("daemon: configuration reloaded")
}

func buildServiceConfigs(cfg *config.Config) []service.Config {
	out := make([]service.Config, 0, len(cfg.Services))
	for name, s := range cfg.Services {
		out = append(out, service.Config{
			Name:     name,
			Command:  s.Exec,
			Interval: time.Duration(s.Interval * float64(time.Second)),
			Timeout:  time.Duration(s.Timeout * float64(time.Second)),
		})
	}
	return out
}
