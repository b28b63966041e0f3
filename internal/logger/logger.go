// Package logger provides leveled logging with a verbosity switch
package logger

import (
	"log"
)

// Logger wraps the standard logger with a verbosity switch. Debug output is
// suppressed unless verbose mode is enabled.
type Logger struct {
	verbose bool
}

// New creates a logger; pass true to enable debug output.
func New(verbose bool) *Logger {
	return &Logger{verbose: verbose}
}

// Info logs messages that are always shown.
func (l *Logger) Info(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Debug logs messages only when verbose mode is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.verbose {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Warn logs warning messages.
func (l *Logger) Warn(format string, v ...interface{}) {
	log.Printf("[WARN] "+format, v...)
}

// Error logs error messages.
func (l *Logger) Error(format string, v ...interface{}) {
	log.Printf("[ERROR] "+format, v...)
}

// Fatal logs an error message and exits the process.
func (l *Logger) Fatal(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}

// IsVerbose reports whether debug output is enabled.
func (l *Logger) IsVerbose() bool {
	return l.verbose
}
