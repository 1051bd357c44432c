// internal/reading/reading.go
package reading

import (
	"fmt"
	"strconv"
	"time"
)

// Unit is the unit-of-measure suffix printed by the instrument.
// It is kept on every quantity; no conversion is ever performed.
type Unit string

const (
	MicroSievertPerHour Unit = "uSv/h"
	MilliSievertPerHour Unit = "mSv/h"
	MicroSievert        Unit = "uSv"
	MilliSievert        Unit = "mSv"
	Sievert             Unit = "Sv"
)

// rate and dose fields accept different unit families.
var (
	rateUnits = []Unit{MicroSievertPerHour, MilliSievertPerHour}
	doseUnits = []Unit{MicroSievert, MilliSievert, Sievert}
)

// Quantity is a magnitude with its unit.
// Precision is the number of fractional digits as printed, so the
// boundary encoding reproduces the instrument text exactly.
type Quantity struct {
	Value     float64
	Precision int
	Unit      Unit
}

// String renders "<value><unit>", e.g. "0.15uSv/h".
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'f', q.Precision, 64) + string(q.Unit)
}

// Micro returns the value scaled to micro-sieverts (per hour for
// rates). Used only where a fixed unit is required downstream.
func (q Quantity) Micro() float64 {
	switch q.Unit {
	case MilliSievertPerHour, MilliSievert:
		return q.Value * 1e3
	case Sievert:
		return q.Value * 1e6
	default:
		return q.Value
	}
}

// Warning is the instrument's alarm flag (single digit).
type Warning uint8

const (
	WarningNone Warning = 0
	WarningRate Warning = 1
	WarningDose Warning = 2
)

func (w Warning) String() string {
	switch w {
	case WarningNone:
		return "none"
	case WarningRate:
		return "rate"
	case WarningDose:
		return "dose"
	default:
		return fmt.Sprintf("code(%d)", uint8(w))
	}
}

// Reading is one normalized instrument sample.
// A Reading is either fully formed or not produced at all.
type Reading struct {
	Timestamp time.Time

	DoseRate             Quantity // DR
	DoseAccumulated      Quantity // D
	AverageDoseRate      Quantity // AVG
	SurfaceContamination Quantity // S

	CountsPerSecond uint32 // CPS, 4 digits
	CountsPerMinute uint32 // CPM, 6 digits
	ElapsedTime     uint32 // DT, 7 digits
	Warning         Warning
}

// Fixed widths of the integer fields.
const (
	widthCPS = 4
	widthCPM = 6
	widthDT  = 7
	widthW   = 1
)

// TimestampLayout is the ISO-8601 local form used at the boundary.
const TimestampLayout = "2006-01-02T15:04:05"
