// internal/status/encode.go
package status

// Block is exactly what the status writer is allowed to deliver.
type Block struct {
	Health              uint16
	LastErrorCode       uint16
	SecondsInError      uint16
	ConsecutiveFailures uint16
}

// BlockFrom converts a snapshot plus the externally counted seconds in error.
func BlockFrom(s Snapshot, secondsInError uint16) Block {
	failures := s.ConsecutiveFailures
	if failures > 65535 {
		failures = 65535
	}
	return Block{
		Health:              s.Code(),
		LastErrorCode:       s.LastErrorCode,
		SecondsInError:      secondsInError,
		ConsecutiveFailures: uint16(failures),
	}
}

// Encode converts a Block into the live slots of a status block.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(b Block) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = b.Health
	regs[SlotLastErrorCode] = b.LastErrorCode
	regs[SlotSecondsInError] = b.SecondsInError
	regs[SlotConsecutiveFailures] = b.ConsecutiveFailures

	return regs
}
