// internal/writer/device_status_writer_test.go
package writer

import (
	"errors"
	"testing"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/status"
)

func statusPlan() Plan {
	return Plan{
		Endpoint: "status-endpoint",
		UnitID:   1,
		Status: &StatusPlan{
			BaseSlot:   2,
			DeviceName: "FS5000-01",
		},
	}
}

func TestStatusWriterDisabledWithoutPlan(t *testing.T) {
	if _, enabled := NewDeviceStatusWriter(Plan{}, &fakeEndpointClient{}); enabled {
		t.Fatalf("status writer should be disabled")
	}
}

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := statusPlan()

	sw, enabled := NewDeviceStatusWriter(plan, cli)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}

	// ---- first write: FULL ASSERT ----
	first := status.Block{Health: status.CodeLive}

	if err := sw.WriteStatus(first); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	// Expect full block at slot * SlotsPerDevice
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf(
			"expected full block write (%d regs), got %d",
			status.SlotsPerDevice,
			len(cli.lastRegs),
		)
	}
	if cli.lastRegsAddr != 2*status.SlotsPerDevice {
		t.Fatalf("full block addr=%d", cli.lastRegsAddr)
	}

	// Verify device name encoding EXACTLY
	expectedNameRegs := encodeDeviceNameRegs(plan.Status.DeviceName)

	for i := 0; i < status.SlotDeviceNameSlots; i++ {
		slot := status.SlotDeviceNameStart + i
		if cli.lastRegs[slot] != expectedNameRegs[i] {
			t.Fatalf(
				"device name slot %d mismatch: got=%d want=%d",
				slot,
				cli.lastRegs[slot],
				expectedNameRegs[i],
			)
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	second := status.Block{
		Health:              status.CodeDegraded,
		LastErrorCode:       3,
		SecondsInError:      1,
		ConsecutiveFailures: 1,
	}

	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	// Incremental update must NOT re-write full block
	if len(cli.lastRegs) == status.SlotsPerDevice {
		t.Fatalf("device name should not be rewritten on incremental update")
	}
	// one single-register write per changed slot
	if len(cli.writes) != 1+4 {
		t.Fatalf("expected 4 incremental writes, got %d", len(cli.writes)-1)
	}
}

func TestUnchangedBlockWritesNothing(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(), cli)

	b := status.Block{Health: status.CodeLive}
	_ = sw.WriteStatus(b)
	_ = sw.WriteStatus(b)

	if len(cli.writes) != 1 {
		t.Fatalf("expected only the initial full write, got %d", len(cli.writes))
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := statusPlan()
	sw, _ := NewDeviceStatusWriter(plan, cli)

	// simulate ERROR
	errBlock := status.Block{
		Health:         status.CodeDown,
		LastErrorCode:  2,
		SecondsInError: 3,
	}
	if err := sw.WriteStatus(errBlock); err != nil {
		t.Fatalf("error block write failed: %v", err)
	}

	// simulate recovery: only seconds changes here
	okBlock := errBlock
	okBlock.SecondsInError = 0

	if err := sw.WriteStatus(okBlock); err != nil {
		t.Fatalf("recovery block write failed: %v", err)
	}

	expectedAddr := plan.Status.BaseSlot*status.SlotsPerDevice + status.SlotSecondsInError

	if cli.lastRegsAddr != expectedAddr {
		t.Fatalf("unexpected write addr: got=%d want=%d", cli.lastRegsAddr, expectedAddr)
	}
	if len(cli.lastRegs) != 1 {
		t.Fatalf("expected 1 register write, got %d", len(cli.lastRegs))
	}
	if cli.lastRegs[0] != 0 {
		t.Fatalf("seconds_in_error not reset: got=%d want=0", cli.lastRegs[0])
	}
}

func TestFullReassertAfterFailure(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := NewDeviceStatusWriter(statusPlan(), cli)

	_ = sw.WriteStatus(status.Block{Health: status.CodeLive})

	cli.fail = errors.New("mirror unreachable")
	if err := sw.WriteStatus(status.Block{Health: status.CodeDown}); err == nil {
		t.Fatalf("expected write error")
	}

	cli.fail = nil
	if err := sw.WriteStatus(status.Block{Health: status.CodeDown}); err != nil {
		t.Fatalf("write after recovery failed: %v", err)
	}
	if len(cli.lastRegs) != status.SlotsPerDevice {
		t.Fatalf("expected full block re-assert, got %d regs", len(cli.lastRegs))
	}
}

func TestEncodeDeviceNameRegs(t *testing.T) {
	regs := encodeDeviceNameRegs("AB\x01")
	if regs[0] != uint16('A')<<8|uint16('B') {
		t.Fatalf("regs[0]=%#04x", regs[0])
	}
	if regs[1] != uint16('?')<<8 {
		t.Fatalf("control byte not sanitized: %#04x", regs[1])
	}

	long := encodeDeviceNameRegs("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	if long[7] != uint16('O')<<8|uint16('P') {
		t.Fatalf("name not truncated to 16 chars: %#04x", long[7])
	}
}
