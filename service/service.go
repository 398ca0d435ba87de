// SPDX-License-Identifier: Unlicense OR MIT

// Package service runs named background shell commands ("services")
// and caches their most recent stdout, so button text and draw config
// can reference live system state without spawning a process per
// render.
package service

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"keydeck.dev/keydeck/internal/klog"
)

// Config describes one configured service.
type Config struct {
	Name     string
	Command  string
	Interval time.Duration // how often Command is re-run
	Timeout  time.Duration // how long a single run may take before being killed
}

// service is the live runtime state for one configured service.
type service struct {
	cfg     Config
	mu      sync.RWMutex
	value   string
	started bool
	stop    chan struct{}
}

// State owns every configured service's background goroutine and most
// recent value. One State is created per daemon run (and recreated
// whole on Reload).
type State struct {
	mu       sync.Mutex
	services map[string]*service
}

// NewState builds a State from the given configs. Goroutines are not
// started until EnsureStarted is called for a name, mirroring the
// original's lazy start: a service nothing ever references never runs.
func NewState(configs []Config) *State {
	s := &State{services: make(map[string]*service, len(configs))}
	for _, c := range configs {
		s.services[c.Name] = &service{cfg: c, stop: make(chan struct{})}
	}
	return s
}

// EnsureStarted starts name's background loop if it has not already
// been started. Safe to call repeatedly and concurrently.
func (st *State) EnsureStarted(name string) {
	st.mu.Lock()
	svc, ok := st.services[name]
	st.mu.Unlock()
	if !ok {
		return
	}
	svc.mu.Lock()
	if svc.started {
		svc.mu.Unlock()
		return
	}
	svc.started = true
	svc.mu.Unlock()

	go svc.run()
}

// Value returns the most recently captured stdout for name, trimmed of
// trailing whitespace, and whether the service is known at all.
func (st *State) Value(name string) (string, bool) {
	st.mu.Lock()
	svc, ok := st.services[name]
	st.mu.Unlock()
	if !ok {
		return "", false
	}
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.value, true
}

// Stop halts every service's background loop. Called once at shutdown
// or immediately before a Reload rebuilds State from new configuration.
func (st *State) Stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, svc := range st.services {
		svc.mu.Lock()
		if svc.started {
			close(svc.stop)
		}
		svc.mu.Unlock()
	}
}

func (svc *service) run() {
	klog.Verbose("service %s: starting, interval=%s timeout=%s", svc.cfg.Name, svc.cfg.Interval, svc.cfg.Timeout)
	svc.execute()
	if svc.cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(svc.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-svc.stop:
			klog.Verbose("service %s: stopping", svc.cfg.Name)
			return
		case <-ticker.C:
			svc.execute()
		}
	}
}

func (svc *service) execute() {
	out, err := runWithTimeout(svc.cfg.Command, svc.cfg.Timeout)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if err != nil {
		klog.Warn("service %s: %v", svc.cfg.Name, err)
		return
	}
	svc.value = strings.TrimRight(out, " \t\r\n")
}

// runWithTimeout runs command through "bash -c", killing it if it does
// not complete within timeout (zero meaning no timeout).
func runWithTimeout(command string, timeout time.Duration) (string, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	return stdout.String(), nil
}
