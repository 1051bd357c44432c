// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

// StatusWriter is the delivery-only contract for device status.
// It receives a block and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(b status.Block) error
}

// deviceStatusWriter writes the status block of the mirrored instrument.
type deviceStatusWriter struct {
	plan   *StatusPlan
	unitID uint8
	cli    endpointClient

	needFull bool
	last     status.Block
	nameRegs []uint16
}

// NewDeviceStatusWriter builds a status writer if status is enabled.
// If plan.Status is nil, status is disabled.
func NewDeviceStatusWriter(plan Plan, cli endpointClient) (*deviceStatusWriter, bool) {
	if plan.Status == nil {
		return nil, false
	}

	return &deviceStatusWriter{
		plan:     plan.Status,
		unitID:   plan.UnitID,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last:     status.Block{Health: status.CodeUnknown},
		nameRegs: encodeDeviceNameRegs(plan.Status.DeviceName),
	}, true
}

// WriteStatus delivers a status block into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *deviceStatusWriter) WriteStatus(b status.Block) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return errors.New("status writer: missing client")
	}

	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(sw.unitID, baseAddr, sw.fullBlockRegs(b)); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}

		sw.needFull = false
		sw.last = b
		return nil
	}

	var errs []string

	slots := []struct {
		name string
		slot uint16
		prev *uint16
		next uint16
	}{
		{"health", status.SlotHealthCode, &sw.last.Health, b.Health},
		{"last_error", status.SlotLastErrorCode, &sw.last.LastErrorCode, b.LastErrorCode},
		{"seconds_in_error", status.SlotSecondsInError, &sw.last.SecondsInError, b.SecondsInError},
		{"consecutive_failures", status.SlotConsecutiveFailures, &sw.last.ConsecutiveFailures, b.ConsecutiveFailures},
	}

	for _, s := range slots {
		if *s.prev == s.next {
			continue
		}
		if err := sw.cli.WriteRegisters(sw.unitID, baseAddr+s.slot, []uint16{s.next}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", s.slot, s.name, err))
			continue
		}
		*s.prev = s.next
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}

	return nil
}

func (sw *deviceStatusWriter) baseAddr() uint16 {
	// Each device owns a fixed SlotsPerDevice block.
	return sw.plan.BaseSlot * status.SlotsPerDevice
}

func (sw *deviceStatusWriter) fullBlockRegs(b status.Block) []uint16 {
	// Slots 0-3: live status; reserved slots stay zero
	regs := status.Encode(b)

	// Device name always lives at the end of the block
	for i := 0; i < status.SlotDeviceNameSlots && i < len(sw.nameRegs); i++ {
		regs[status.SlotDeviceNameStart+i] = sw.nameRegs[i]
	}

	return regs
}

// encodeDeviceNameRegs packs up to 16 ASCII characters into 8 uint16 registers.
// Each register stores two ASCII bytes in big-endian order.
func encodeDeviceNameRegs(name string) []uint16 {
	out := make([]uint16, status.SlotDeviceNameSlots)

	b := []byte(name)
	if len(b) > status.DeviceNameMaxChars {
		b = b[:status.DeviceNameMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < status.DeviceNameMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
