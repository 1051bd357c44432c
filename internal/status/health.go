// internal/status/health.go
package status

import "fmt"

// Health is the acquisition health state.
type Health uint8

const (
	Unknown Health = iota
	Live
	Degraded
	Down
)

func (h Health) String() string {
	switch h {
	case Unknown:
		return "unknown"
	case Live:
		return "live"
	case Degraded:
		return "degraded"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("health(%d)", uint8(h))
	}
}

// MarshalText renders the lower-case name used by the health endpoint.
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}
