// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux

package device

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"keydeck.dev/keydeck/internal/klog"
)

// Watcher polls /dev/hidraw* every pollInterval, classifies each node
// against the Elgato VID or the Mirajazz registry, and reports attach/
// detach transitions by serial number.
type Watcher struct {
	registry     *Registry
	pollInterval time.Duration
	shouldReset  int32 // set by SignalSleepResume, cleared once consumed
}

// NewWatcher builds a Watcher. registry may be nil if no Mirajazz
// registry could be loaded; in that case only Elgato-class devices are
// recognized.
func NewWatcher(registry *Registry) *Watcher {
	return &Watcher{registry: registry, pollInterval: 2 * time.Second}
}

// SignalSleepResume marks the watcher's known-device set to be cleared
// on the next poll, so devices that silently dropped off a USB hub
// during system sleep are re-announced as NewDevice rather than staying
// stuck in the "already seen" set forever.
func (w *Watcher) SignalSleepResume() {
	atomic.StoreInt32(&w.shouldReset, 1)
}

// seen identifies one classified hidraw node.
type seen struct {
	path   string
	serial string
	family Family
	vid    uint16
	pid    uint16
}

// Family distinguishes which backend a node classified as.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyElgato
	FamilyMirajazz
)

// Run polls until stop is closed, sending NewDevice/RemovedDevice
// transitions to onAttach/onDetach. It is meant to run in its own
// goroutine, mirroring the original's dedicated listener thread.
func (w *Watcher) Run(stop <-chan struct{}, onAttach, onDetach func(serial string)) {
	known := make(map[string]struct{})
	klog.Verbose("device watcher: starting")
	for {
		select {
		case <-stop:
			klog.Verbose("device watcher: exiting")
			return
		default:
		}

		if atomic.CompareAndSwapInt32(&w.shouldReset, 1, 0) {
			known = make(map[string]struct{})
		}

		current := w.scan()
		remaining := make(map[string]struct{}, len(known))
		for s := range known {
			remaining[s] = struct{}{}
		}
		for _, d := range current {
			if _, ok := remaining[d.serial]; ok {
				delete(remaining, d.serial)
				continue
			}
			klog.Verbose("device watcher: new device %s", d.serial)
			known[d.serial] = struct{}{}
			onAttach(d.serial)
		}
		for s := range remaining {
			klog.Verbose("device watcher: removed device %s", s)
			delete(known, s)
			onDetach(s)
		}

		select {
		case <-stop:
			return
		case <-time.After(w.pollInterval):
		}
	}
}

// Open reclassifies and opens the hidraw node named by id (the path
// reported as a NewDevice serial by Run), returning a ready Device.
// Re-probing rather than caching the Watcher's last scan keeps this
// safe to call from a different goroutine than Run's.
func (w *Watcher) Open(id string) (Device, error) {
	info, err := probeHidraw(id)
	if err != nil {
		return nil, err
	}
	switch {
	case ElgatoSupports(info.Vendor, info.Product):
		return OpenElgato(id, info.Product, id)
	case MirajazzSupports(w.registry, info.Vendor, info.Product):
		return OpenMirajazz(id, w.registry, info.Vendor, info.Product, id)
	default:
		return nil, newErr(KindUnsupported, "Open", fmt.Errorf("%s: no matching device family", id))
	}
}

// scan enumerates /dev/hidraw* and classifies each node, skipping ones
// that match neither family, per spec.
func (w *Watcher) scan() []seen {
	matches, err := filepath.Glob("/dev/hidraw*")
	if err != nil {
		klog.Warn("device watcher: glob /dev/hidraw*: %v", err)
		return nil
	}
	var out []seen
	for _, path := range matches {
		info, err := probeHidraw(path)
		if err != nil {
			klog.Verbose("device watcher: probe %s: %v", path, err)
			continue
		}
		switch {
		case ElgatoSupports(info.Vendor, info.Product):
			out = append(out, seen{path: path, serial: path, family: FamilyElgato, vid: info.Vendor, pid: info.Product})
		case MirajazzSupports(w.registry, info.Vendor, info.Product):
			out = append(out, seen{path: path, serial: path, family: FamilyMirajazz, vid: info.Vendor, pid: info.Product})
		}
	}
	return out
}
