// Package monitoring holds the diagnostic logger shared by the tractogram
// containers and the command-line tools.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// can be swapped with SetLogger, e.g. to capture warnings in tests.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the logger. Passing nil mutes diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a warning through Logf.
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}
