// Package monitoring holds the simulator's diagnostic logger and metrics.
package monitoring

import (
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Once logs a message the first time it is called for a given key and
// stays quiet afterwards. A sensor ticking thousands of times a second uses
// it so a persistent fault produces one warning rather than a flood.
type Once struct {
	mu   sync.Mutex
	seen map[string]bool
}

// Logf logs through the package logger unless key has been logged before.
func (o *Once) Logf(key, format string, v ...interface{}) {
	o.mu.Lock()
	if o.seen == nil {
		o.seen = make(map[string]bool)
	}
	if o.seen[key] {
		o.mu.Unlock()
		return
	}
	o.seen[key] = true
	o.mu.Unlock()
	Logf(format, v...)
}

// Reset forgets key so the next failure is reported again, typically
// after the fault has cleared.
func (o *Once) Reset(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.seen, key)
}
