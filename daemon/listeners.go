// SPDX-License-Identifier: Unlicense OR MIT

package daemon

import (
	"bufio"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"keydeck.dev/keydeck/event"
	"keydeck.dev/keydeck/internal/klog"
)

// runSignalListener translates SIGINT/SIGTERM into a single Exit event,
// mirroring listener_signal.rs's role with Go's signal package standing
// in for the original's dedicated signal-handling thread.
func runSignalListener(stop <-chan struct{}, send func(event.Event)) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	select {
	case sig := <-sigc:
		klog.Info("received %s, shutting down", sig)
		send(event.Exit{})
	case <-stop:
	}
}

// runReloadListener turns SIGHUP into a Reload event, the conventional
// Unix "re-read my configuration" signal.
func runReloadListener(stop <-chan struct{}, send func(event.Event)) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP)
	defer signal.Stop(sigc)
	for {
		select {
		case <-sigc:
			klog.Info("received SIGHUP, reloading configuration")
			send(event.Reload{})
		case <-stop:
			return
		}
	}
}

// runSleepListener watches logind's PrepareForSleep signal by shelling
// out to gdbus monitor, the same qdbus/gdbus-over-exec policy the focus
// package uses for KWin scripting: grounded on listener_sleep.rs's
// org.freedesktop.login1.Manager subscription, minus the linked D-Bus
// client. A missing gdbus binary (non-systemd hosts) just means sleep/
// resume re-announcement never fires; every other feature still works.
func runSleepListener(stop <-chan struct{}, send func(event.Event), onSleep func()) {
	path, err := exec.LookPath("gdbus")
	if err != nil {
		klog.Verbose("sleep listener: gdbus not found, sleep/resume detection disabled")
		return
	}

	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := monitorSleepOnce(path, stop, send, onSleep); err != nil {
			klog.Warn("sleep listener: %v", err)
		}
		select {
		case <-stop:
			return
		default:
		}
	}
}

func monitorSleepOnce(gdbusPath string, stop <-chan struct{}, send func(event.Event), onSleep func()) error {
	cmd := exec.Command(gdbusPath, "monitor", "--system", "--dest", "org.freedesktop.login1",
		"--object-path", "/org/freedesktop/login1")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan struct{})
	killed := make(chan struct{})
	go func() {
		select {
		case <-stop:
			cmd.Process.Kill()
		case <-done:
		}
		close(killed)
	}()
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.Contains(line, "PrepareForSleep") {
				continue
			}
			going := strings.Contains(line, "(true")
			if going {
				onSleep()
			}
			send(event.Sleep{Going: going})
		}
	}()
	<-done
	cmd.Wait()
	<-killed
	return nil
}
