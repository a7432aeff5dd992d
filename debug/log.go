// Package debug is a categorized file log for events too frequent or too
// low-level for the console: dropped pulses, send failures, scan timing.
// Everything is a no-op until Enable is called.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu       sync.Mutex
	out      *os.File
	counters = make(map[string]int)
)

// DefaultPath returns ~/.config/midiclock/debug.log
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "midiclock", "debug.log")
}

// Enable truncates and opens path (DefaultPath if empty). Calling it again
// while enabled is a no-op.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	out = f
	writeLine("debug", "=== midiclock debug log ===")
	return nil
}

// Enabled reports whether the debug log is open
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return out != nil
}

// Disable closes the log and resets the LogEvery counters
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		out.Close()
		out = nil
	}
	counters = make(map[string]int)
}

// Log writes one line under category
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	writeLine(category, fmt.Sprintf(format, args...))
}

// LogEvery logs only every nth call with the same category and format.
// Meant for per-pulse events.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if out == nil || n <= 0 {
		return
	}
	key := category + "\x00" + format
	counters[key]++
	if count := counters[key]; count%n == 0 {
		writeLine(category, fmt.Sprintf(format, args...)+fmt.Sprintf(" (x%d)", count))
	}
}

// writeLine must be called with mu held
func writeLine(category, msg string) {
	if out == nil {
		return
	}
	fmt.Fprintf(out, "[%s] %-10s %s\n", time.Now().Format("15:04:05.000"), category, msg)
	// flush so the tail survives a crash
	out.Sync()
}

// Writer returns an io.Writer that appends raw bytes to the debug log, or
// discards them while it is disabled. The monitor routes slog here so log
// lines do not tear the alt screen.
func Writer() io.Writer {
	return writer{}
}

type writer struct{}

func (writer) Write(p []byte) (int, error) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return len(p), nil
	}
	return out.Write(p)
}
