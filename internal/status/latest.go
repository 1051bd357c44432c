// internal/status/latest.go
package status

import (
	"sync/atomic"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// Latest is the single latest-reading cell.
// Starts empty, is overwritten on every successful acquisition and is
// never cleared: a stale reading is preferable to none.
// Readers never block the writer.
type Latest struct {
	v atomic.Pointer[reading.Reading]
}

// Load returns the latest reading and whether one exists.
func (l *Latest) Load() (reading.Reading, bool) {
	r := l.v.Load()
	if r == nil {
		return reading.Reading{}, false
	}
	return *r, true
}

// Store overwrites the cell.
func (l *Latest) Store(r reading.Reading) {
	l.v.Store(&r)
}
