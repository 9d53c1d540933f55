// Package corelog provides the core's leveled logging shim.
//
// Grounded on _examples/IntuitionAmiga-IntuitionEngine/machine_bus.go and
// coprocessor_manager.go, which both log operational warnings directly with
// fmt.Printf ("Warning: Write32 to out-of-bounds address 0x%08X"). ndscore
// keeps that plain style but funnels every message through a single
// Logger so a host front-end can intercept it via a log(level, msg)
// callback instead of writing to stdout.
package corelog

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Level is the severity passed to a host's log(level, msg) callback.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Sink receives formatted log lines. A host front-end registers one via
// SetSink; the core never blocks on it.
type Sink func(level Level, msg string)

var (
	mu      sync.Mutex
	sink    Sink
	fallback = log.New(os.Stderr, "", log.LstdFlags)

	// dedup tracks "logged once per unique address" sites: recoverable
	// faults like writes to unmapped I/O or reads from protected regions
	// are common enough in real ROMs that logging every occurrence would
	// drown the console, so each distinct address only warns once.
	dedupSeen = make(map[string]bool)
)

// SetSink installs the host's log callback. Passing nil restores the
// stderr fallback used when the core runs without a front-end attached.
func SetSink(s Sink) {
	mu.Lock()
	defer mu.Unlock()
	sink = s
}

func emit(level Level, msg string) {
	mu.Lock()
	s := sink
	mu.Unlock()
	if s != nil {
		s(level, msg)
		return
	}
	fallback.Printf("[%s] %s", level, msg)
}

func Debugf(format string, args ...any) { emit(LevelDebug, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { emit(LevelInfo, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { emit(LevelWarn, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { emit(LevelError, fmt.Sprintf(format, args...)) }

// WarnOnce logs a warning the first time a given dedup key is seen and
// silently drops repeats. Used for the "logged once per unique address"
// partial-recoverable error class (unmapped I/O writes, protected DSi
// region reads in DS mode).
func WarnOnce(key string, format string, args ...any) {
	mu.Lock()
	if dedupSeen[key] {
		mu.Unlock()
		return
	}
	dedupSeen[key] = true
	mu.Unlock()
	Warnf(format, args...)
}

// ResetDedup clears the WarnOnce dedup table. Called from Core.Reset so a
// fresh run doesn't inherit suppression state from a previous one.
func ResetDedup() {
	mu.Lock()
	defer mu.Unlock()
	dedupSeen = make(map[string]bool)
}
