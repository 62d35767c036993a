package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (device, captures, exports)
	LevelLive    = 2 // Live info (state transitions, user input)
	LevelVerbose = 3 // Verbose (filter parameters, render loop details)
	LevelTrace   = 4 // Trace (every tick, GPIO polling)
)

var (
	mu     sync.RWMutex
	level  int
	logger *log.Logger
	out    io.Writer = os.Stdout
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (device opened, photo captured, image saved)
// 2 = live info (Live/Preview transitions, filter changes)
// 3 = verbose (filter parameters, loop start/stop)
// 4 = trace (per-tick output, GPIO)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	logger = nil
	if level > LevelOff {
		logger = log.New(out, "[FilterCam] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects all debug output (e.g. to an io.MultiWriter that
// also feeds the web status stream).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

func logf(minLevel int, format string, args ...interface{}) {
	mu.RLock()
	l, lg := level, logger
	mu.RUnlock()
	if l >= minLevel && lg != nil {
		lg.Printf(format, args...)
	}
}

// --- Level 1 functions (Info) ---

// Info prints a level 1 message.
func Info(format string, args ...interface{}) {
	logf(LevelInfo, "[INFO] "+format, args...)
}

// Value prints a named value (level 1).
func Value(name string, value interface{}) {
	logf(LevelInfo, "[INFO]   %s = %v", name, value)
}

// Export prints the outcome of a save action (level 1).
func Export(name string, size int) {
	logf(LevelInfo, "[INFO] Saved %s (%d bytes)", name, size)
}

// Error prints a debug error (level 1+).
func Error(err error) {
	logf(LevelInfo, "[ERROR] %v", err)
}

// --- Level 2 functions (Live) ---

// Live prints a level 2 message.
func Live(format string, args ...interface{}) {
	logf(LevelLive, "[LIVE] "+format, args...)
}

// Transition prints a capture state change (level 2).
func Transition(from, to string) {
	logf(LevelLive, "[LIVE] Mode %s -> %s", from, to)
}

// --- Level 3 functions (Verbose) ---

// Verbose prints a level 3 message.
func Verbose(format string, args ...interface{}) {
	logf(LevelVerbose, "[VERBOSE] "+format, args...)
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	logf(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// Section prints a section separator (level 3).
func Section(name string) {
	logf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logf(LevelVerbose, "  %s", name)
	logf(LevelVerbose, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	logf(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

// --- Level 4 functions (Trace) ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	logf(LevelTrace, "[TRACE] "+format, args...)
}

// Tick prints one render loop cycle (level 4).
func Tick(n uint64, filter string) {
	logf(LevelTrace, "[TICK] #%d filter=%s", n, filter)
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	logf(LevelTrace, "[GPIO] %s pin=%d value=%v", operation, pin, value)
}

// Fmt returns a formatted string only if debug is enabled.
func Fmt(format string, args ...interface{}) string {
	if Level() > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
