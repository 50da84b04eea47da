// Package logging provides process-wide debug logging for the bot runtime.
//
// Logging and configuration are process-wide but frozen after init; this
// mirrors the rest of the runtime's "no ambient mutable globals except the
// swarm manager" rule.
package logging

import (
	"log"
	"os"
)

// DebugEnabled controls whether Debug() produces output. It defaults to
// false; neither command-line program exposes a flag or environment
// variable for it, so only code that assigns it directly turns it on.
var DebugEnabled bool

// std is the process-wide logger. It writes to stderr so stdout stays free
// for any future machine-readable CLI output.
var std = log.New(os.Stderr, "", log.LstdFlags)

// Debug logs a message only when DebugEnabled is true.
func Debug(format string, args ...any) {
	if DebugEnabled {
		std.Printf("DEBUG: "+format, args...)
	}
}

// Info logs an informational message unconditionally.
func Info(format string, args ...any) {
	std.Printf("INFO: "+format, args...)
}

// Warn logs a warning unconditionally.
func Warn(format string, args ...any) {
	std.Printf("WARN: "+format, args...)
}

// Error logs an error unconditionally.
func Error(format string, args ...any) {
	std.Printf("ERROR: "+format, args...)
}
