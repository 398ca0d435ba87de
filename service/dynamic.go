// SPDX-License-Identifier: Unlicense OR MIT

package service

import (
	"os"
	"regexp"
	"strings"
	"time"
)

// ErrorIndicator replaces a dynamic parameter that failed to evaluate,
// so a button keeps rendering instead of showing a raw error string.
const ErrorIndicator = "⚠" // ⚠

// PendingIndicator stands in for a service that has not produced output
// yet, such as on its first reference.
const PendingIndicator = "…"

var paramPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Evaluate substitutes every ${provider:arg} occurrence in text. now is
// passed in rather than read from time.Now() so callers in tests (and
// eventually the workflow harness, which forbids direct clock reads)
// get deterministic output.
func Evaluate(text string, services *State, now time.Time) string {
	return paramPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := match[2 : len(match)-1] // strip ${ and }
		provider, arg := splitProvider(inner)
		switch provider {
		case "time":
			return evaluateTime(arg, now)
		case "env":
			return evaluateEnv(arg)
		case "service":
			return evaluateService(arg, services)
		default:
			return ErrorIndicator
		}
	})
}

func splitProvider(s string) (provider, arg string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

func evaluateTime(format string, now time.Time) string {
	if format == "" {
		format = "15:04:05"
	}
	layout := strftimeToGo(format)
	return now.Format(layout)
}

func evaluateEnv(name string) string {
	if name == "" {
		return ErrorIndicator
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return ErrorIndicator
	}
	return v
}

func evaluateService(name string, services *State) string {
	if services == nil || name == "" {
		return ErrorIndicator
	}
	services.EnsureStarted(name)
	v, ok := services.Value(name)
	if !ok {
		return ErrorIndicator
	}
	if v == "" {
		return PendingIndicator
	}
	return v
}

// strftimeToGo translates the handful of strftime directives the
// original's time provider accepted into Go's reference-time layout,
// since config authors coming from the original tool write %H:%M style
// formats rather than Go's "15:04".
func strftimeToGo(format string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
		"%p", "PM",
		"%I", "03",
	)
	return replacer.Replace(format)
}
