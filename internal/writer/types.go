// internal/writer/types.go
package writer

import (
	"context"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// Plan is the fully-built register plan for the mirror.
type Plan struct {
	Endpoint    string
	UnitID      uint8
	ReadingBase uint16

	// Status is nil when the status block is disabled.
	Status *StatusPlan
}

// StatusPlan locates the device status block.
type StatusPlan struct {
	BaseSlot   uint16
	DeviceName string
}

// Writer delivers readings to one downstream sink.
type Writer interface {
	Name() string
	WriteReading(ctx context.Context, r reading.Reading) error
}
