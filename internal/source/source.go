// internal/source/source.go
package source

import (
	"context"
	"errors"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// Source produces readings. It is only ever driven by the acquisition
// loop and needs no internal locking.
type Source interface {
	// NextReading blocks for at most the source's read timeout.
	// A returned Reading is always fully formed.
	NextReading(ctx context.Context) (reading.Reading, error)
	Close() error
}

// Factory opens a Source. ONE attempt per call.
type Factory func() (Source, error)

// Failure kinds. Errors returned by a Source wrap exactly one of these.
var (
	ErrParse   = errors.New("parse error")
	ErrIO      = errors.New("io error")
	ErrTimeout = errors.New("timeout")
)

// Kind names the failure kind of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "unknown"
	}
}

// Code is a small numeric form of Kind for the register mirror.
// 0 means no error.
func Code(err error) uint16 {
	switch Kind(err) {
	case "":
		return 0
	case "parse":
		return 1
	case "io":
		return 2
	case "timeout":
		return 3
	default:
		return 9
	}
}
