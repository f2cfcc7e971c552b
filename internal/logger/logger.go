package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger writes human-readable output to the terminal and, optionally,
// a timestamped copy of everything to a log file. When a progress bar
// owns the terminal, non-verbose output is diverted to the file only.
type Logger struct {
	Verbose bool
	out     io.Writer
	errOut  io.Writer
	mu      sync.Mutex
	file    *os.File
	hasBar  bool
}

// New creates a Logger writing to stdout/stderr.
func New(verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
}

// SetFileLog mirrors all output, including debug lines, to the given file.
func (l *Logger) SetFileLog(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.file = f
	return nil
}

// SetProgressBar tells the logger whether a progress bar currently owns
// the terminal line.
func (l *Logger) SetProgressBar(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasBar = active
}

// Close flushes and closes the log file if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Info prints a plain message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("INFO", l.out, format, args...)
}

// Debug prints only in verbose mode but always reaches the file.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.Verbose {
		l.emit("DEBUG", l.out, format, args...)
		return
	}
	l.mu.Lock()
	l.toFile("DEBUG", fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

// Warn prints a tagged warning.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("WARN", l.out, format, args...)
}

// Error prints a tagged message to stderr. Errors always reach the
// terminal even while a progress bar is active.
func (l *Logger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.errOut, "[ERROR] %s\n", msg)
	l.toFile("ERROR", msg)
}

func (l *Logger) emit(level string, w io.Writer, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)

	// Info lines read better without the level tag.
	line := msg
	if level != "INFO" {
		line = "[" + level + "] " + msg
	}

	if l.Verbose || !l.hasBar {
		fmt.Fprintln(w, line)
	}
	l.toFile(level, msg)
}

// toFile appends a timestamped line. Caller must hold the mutex.
func (l *Logger) toFile(level, msg string) {
	if l.file == nil {
		return
	}
	fmt.Fprintf(l.file, "%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), level, msg)
}
