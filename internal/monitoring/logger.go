// Package monitoring routes the converter's diagnostic output. Conversions run
// headless inside processing pipelines, so every notice goes through one
// swappable function that callers can capture or silence.
package monitoring

import "log"

// Logf emits a diagnostic line. It defaults to log.Printf and may be replaced
// with SetLogger to redirect or mute converter output.
var Logf func(format string, v ...interface{}) = log.Printf

// Warnf emits a diagnostic line with a WARNING prefix. The converter warns
// instead of failing when it falls back to a guess it cannot verify, such as
// an unrecognized image suffix or archive URL.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
