// internal/writer/registers.go
package writer

import (
	"math"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// Reading block layout on the register mirror.
// Quantities are float32 in micro-sieverts (per hour for rates);
// 32-bit values occupy two registers, high word first.
// These values define the protocol and MUST NOT be configurable.
const (
	RegDoseRate        = 0  // float32, uSv/h
	RegDoseAccumulated = 2  // float32, uSv
	RegAverageDoseRate = 4  // float32, uSv/h
	RegSurface         = 6  // float32, uSv
	RegCPS             = 8  // uint16
	RegCPM             = 9  // uint32
	RegElapsed         = 11 // uint32, seconds
	RegWarning         = 13 // uint16
	RegTimestamp       = 14 // uint32, unix seconds

	ReadingBlockSize = 16
)

// encodeReading converts a reading into its register block.
// No IO. No side effects.
func encodeReading(r reading.Reading) []uint16 {
	regs := make([]uint16, ReadingBlockSize)

	putFloat32(regs, RegDoseRate, r.DoseRate.Micro())
	putFloat32(regs, RegDoseAccumulated, r.DoseAccumulated.Micro())
	putFloat32(regs, RegAverageDoseRate, r.AverageDoseRate.Micro())
	putFloat32(regs, RegSurface, r.SurfaceContamination.Micro())

	regs[RegCPS] = saturate16(r.CountsPerSecond)
	putUint32(regs, RegCPM, r.CountsPerMinute)
	putUint32(regs, RegElapsed, r.ElapsedTime)
	regs[RegWarning] = uint16(r.Warning)

	var ts uint32
	if unix := r.Timestamp.Unix(); unix > 0 && unix <= math.MaxUint32 {
		ts = uint32(unix)
	}
	putUint32(regs, RegTimestamp, ts)

	return regs
}

func putUint32(regs []uint16, at int, v uint32) {
	regs[at] = uint16(v >> 16)
	regs[at+1] = uint16(v)
}

func putFloat32(regs []uint16, at int, v float64) {
	putUint32(regs, at, math.Float32bits(float32(v)))
}

func saturate16(v uint32) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
