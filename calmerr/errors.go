// Package calmerr defines the three error kinds the forward-pass core can
// raise: configuration errors (recoverable by the caller, returned as plain
// errors), and device/argument errors (fatal by construction, since the
// engine runs in a single-process sampler where any fault past prepare-time
// is irrecoverable).
package calmerr

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// ConfigError names the offending field in an invalid Config or weight set.
// Detected at prepare-time or at first forward call; the caller may inspect
// and report it, no process termination is implied.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("calm: invalid config field %q: %s", e.Field, e.Reason)
}

// ArgumentError reports a caller contract violation (token >= V, pos < 0).
// Detected via assertion in the Forward Driver; fatal by design (see
// DeviceError).
type ArgumentError struct {
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("calm: invalid argument %q: %s", e.Arg, e.Reason)
}

// DeviceError wraps an accelerator-side fault: allocation failure, kernel
// launch failure, synchronization error. There is no recovery path; the
// kernel name and call site are captured so Fatal can print a diagnostic
// before terminating.
type DeviceError struct {
	Kernel string
	File   string
	Line   int
	Cause  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("calm: device error in %s at %s:%d: %v", e.Kernel, e.File, e.Line, e.Cause)
}

func (e *DeviceError) Unwrap() error { return e.Cause }

// fatalHook is called by Fatal after logging. Production builds exit the
// process; tests override it to observe the call instead of dying.
var fatalHook = func() { os.Exit(1) }

// SetFatalHook overrides the action taken after a fatal error is logged.
// Intended for tests only.
func SetFatalHook(f func()) { fatalHook = f }

// NewDeviceError builds a DeviceError with the caller's file/line attached.
func NewDeviceError(kernel string, cause error) *DeviceError {
	_, file, line, _ := runtime.Caller(1)
	return &DeviceError{Kernel: kernel, File: file, Line: line, Cause: cause}
}

// Fatal logs a device or argument error with structured fields and
// terminates the process. There is no retry and no partial recovery: the
// spec treats every device/argument fault as irrecoverable by construction.
func Fatal(err error) {
	switch e := err.(type) {
	case *DeviceError:
		slog.Error("fatal device error",
			"kernel", e.Kernel, "file", e.File, "line", e.Line, "cause", e.Cause)
	case *ArgumentError:
		slog.Error("fatal argument error", "arg", e.Arg, "reason", e.Reason)
	default:
		slog.Error("fatal error", "cause", err)
	}
	fatalHook()
}
