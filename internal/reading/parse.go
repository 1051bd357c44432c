// internal/reading/parse.go
package reading

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseError describes why an instrument line was rejected.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "reading: " + e.Reason
	}
	return fmt.Sprintf("reading: field %s: %s", e.Field, e.Reason)
}

func parseErr(field, format string, args ...any) error {
	return &ParseError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Field tags in instrument order.
const (
	TagDoseRate             = "DR"
	TagDoseAccumulated      = "D"
	TagCountsPerSecond      = "CPS"
	TagCountsPerMinute      = "CPM"
	TagAverageDoseRate      = "AVG"
	TagElapsedTime          = "DT"
	TagSurfaceContamination = "S"
	TagWarning              = "W"
)

var lineTags = []string{
	TagDoseRate,
	TagDoseAccumulated,
	TagCountsPerSecond,
	TagCountsPerMinute,
	TagAverageDoseRate,
	TagElapsedTime,
	TagSurfaceContamination,
	TagWarning,
}

// ParseLine parses one instrument record, e.g.
//
//	DR:0.15uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0
//
// and stamps it with at. Parsing is strict: every tag must be present
// exactly once and convert to its type, otherwise a *ParseError is returned.
func ParseLine(line string, at time.Time) (Reading, error) {
	line = strings.TrimRight(line, "\x00\r\n ")
	line = strings.TrimSuffix(line, ";")
	if line == "" {
		return Reading{}, parseErr("", "empty line")
	}

	fields := make(map[string]string, len(lineTags))
	for _, part := range strings.Split(line, ";") {
		tag, val, ok := strings.Cut(part, ":")
		if !ok {
			return Reading{}, parseErr("", "segment %q has no tag", part)
		}
		switch tag {
		case TagDoseRate, TagDoseAccumulated, TagCountsPerSecond, TagCountsPerMinute,
			TagAverageDoseRate, TagElapsedTime, TagSurfaceContamination, TagWarning:
		default:
			return Reading{}, parseErr(tag, "unknown tag")
		}
		if _, dup := fields[tag]; dup {
			return Reading{}, parseErr(tag, "duplicate tag")
		}
		fields[tag] = val
	}
	for _, tag := range lineTags {
		if _, ok := fields[tag]; !ok {
			return Reading{}, parseErr(tag, "missing")
		}
	}

	var (
		r   = Reading{Timestamp: at}
		err error
	)

	if r.DoseRate, err = parseQuantity(TagDoseRate, fields[TagDoseRate], rateUnits); err != nil {
		return Reading{}, err
	}
	if r.DoseAccumulated, err = parseQuantity(TagDoseAccumulated, fields[TagDoseAccumulated], doseUnits); err != nil {
		return Reading{}, err
	}
	if r.AverageDoseRate, err = parseQuantity(TagAverageDoseRate, fields[TagAverageDoseRate], rateUnits); err != nil {
		return Reading{}, err
	}
	if r.SurfaceContamination, err = parseQuantity(TagSurfaceContamination, fields[TagSurfaceContamination], doseUnits); err != nil {
		return Reading{}, err
	}
	if r.CountsPerSecond, err = parseFixed(TagCountsPerSecond, fields[TagCountsPerSecond], widthCPS); err != nil {
		return Reading{}, err
	}
	if r.CountsPerMinute, err = parseFixed(TagCountsPerMinute, fields[TagCountsPerMinute], widthCPM); err != nil {
		return Reading{}, err
	}
	if r.ElapsedTime, err = parseFixed(TagElapsedTime, fields[TagElapsedTime], widthDT); err != nil {
		return Reading{}, err
	}
	w, err := parseFixed(TagWarning, fields[TagWarning], widthW)
	if err != nil {
		return Reading{}, err
	}
	r.Warning = Warning(w)

	return r, nil
}

// maxSignificantDigits is the most a float64 carries through a
// decimal round trip.
const maxSignificantDigits = 15

func parseQuantity(field, s string, units []Unit) (Quantity, error) {
	var unit Unit
	for _, u := range units {
		if strings.HasSuffix(s, string(u)) {
			unit = u
			break
		}
	}
	if unit == "" {
		return Quantity{}, parseErr(field, "value %q has no accepted unit", s)
	}

	num := strings.TrimSuffix(s, string(unit))
	if num == "" {
		return Quantity{}, parseErr(field, "missing magnitude")
	}

	intPart, frac, hasPoint := strings.Cut(num, ".")
	if intPart == "" || !isDigits(intPart) {
		return Quantity{}, parseErr(field, "bad magnitude %q", num)
	}
	if hasPoint && (frac == "" || !isDigits(frac)) {
		return Quantity{}, parseErr(field, "bad magnitude %q", num)
	}
	// only canonical text re-encodes byte for byte
	if len(intPart) > 1 && intPart[0] == '0' {
		return Quantity{}, parseErr(field, "leading zero in magnitude %q", num)
	}
	if digits := len(strings.TrimLeft(intPart+frac, "0")); digits > maxSignificantDigits {
		return Quantity{}, parseErr(field, "magnitude %q exceeds %d significant digits", num, maxSignificantDigits)
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Quantity{}, parseErr(field, "%v", err)
	}

	return Quantity{Value: v, Precision: len(frac), Unit: unit}, nil
}

func parseFixed(field, s string, width int) (uint32, error) {
	if len(s) != width {
		return 0, parseErr(field, "want %d digits, got %q", width, s)
	}
	if !isDigits(s) {
		return 0, parseErr(field, "not a number: %q", s)
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, parseErr(field, "%v", err)
	}
	return uint32(v), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
