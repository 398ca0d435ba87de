// Package klog is the leveled logger shared by every KeyDeck package.
//
// Levels mirror the original daemon's log macros: ERROR: is always
// printed, warnings and info are plain, and verbose output is gated by
// a debug flag set once at startup.
package klog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
)

var debug int32

var std = log.New(os.Stderr, "", log.LstdFlags)

// SetDebug toggles verbose logging process-wide. It is a single-writer
// flag set once at startup by cmd/keydeckd, then read by every goroutine.
func SetDebug(on bool) {
	if on {
		atomic.StoreInt32(&debug, 1)
	} else {
		atomic.StoreInt32(&debug, 0)
	}
}

// Debug reports whether verbose logging is enabled.
func Debug() bool {
	return atomic.LoadInt32(&debug) != 0
}

// Error logs an unconditional error-level message, tagged ERROR: so log
// scrapers can filter on it.
func Error(format string, args ...any) {
	std.Output(2, "ERROR: "+fmt.Sprintf(format, args...))
}

// Warn logs a warning. Warnings are plain (no tag) per the original's
// taxonomy: a warning is "things keep working, but degraded".
func Warn(format string, args ...any) {
	std.Output(2, fmt.Sprintf(format, args...))
}

// Info logs a plain informational message.
func Info(format string, args ...any) {
	std.Output(2, fmt.Sprintf(format, args...))
}

// Verbose logs only when debug is enabled.
func Verbose(format string, args ...any) {
	if Debug() {
		std.Output(2, fmt.Sprintf(format, args...))
	}
}

// Dump renders v with spew when verbose logging is enabled. Formatting v
// is skipped entirely when verbose is off, so callers may pass arbitrary
// config/state values without worrying about the cost of formatting them.
func Dump(label string, v any) {
	if !Debug() {
		return
	}
	std.Output(2, label+":\n"+spew.Sdump(v))
}
