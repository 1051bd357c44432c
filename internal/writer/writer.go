// internal/writer/writer.go
package writer

import (
	"context"
	"fmt"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// endpointClient is the exact contract the writers use.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// registerWriter mirrors each reading into holding registers.
type registerWriter struct {
	plan Plan
	cli  endpointClient
}

// NewRegisterWriter returns the Writer for the reading block.
func NewRegisterWriter(plan Plan, cli endpointClient) Writer {
	return &registerWriter{plan: plan, cli: cli}
}

func (w *registerWriter) Name() string { return "modbus" }

// WriteReading writes the whole block in one request so a reader never
// sees fields from two different readings.
func (w *registerWriter) WriteReading(_ context.Context, r reading.Reading) error {
	if w.cli == nil {
		return fmt.Errorf("writer: missing client for endpoint %s", w.plan.Endpoint)
	}

	if err := w.cli.WriteRegisters(w.plan.UnitID, w.plan.ReadingBase, encodeReading(r)); err != nil {
		return fmt.Errorf(
			"writer: ep=%s unit=%d addr=%d err=%w",
			w.plan.Endpoint, w.plan.UnitID, w.plan.ReadingBase, err,
		)
	}
	return nil
}
