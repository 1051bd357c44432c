// internal/reading/parse_test.go
package reading

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodLine = "DR:0.15uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0"

func at() time.Time {
	return time.Date(2025, 8, 13, 14, 22, 10, 0, time.Local)
}

func TestParseLine_Success(t *testing.T) {
	r, err := ParseLine(goodLine, at())
	require.NoError(t, err)

	assert.Equal(t, 0.15, r.DoseRate.Value)
	assert.Equal(t, MicroSievertPerHour, r.DoseRate.Unit)
	assert.Equal(t, 1.63, r.DoseAccumulated.Value)
	assert.Equal(t, MicroSievert, r.DoseAccumulated.Unit)
	assert.Equal(t, uint32(1), r.CountsPerSecond)
	assert.Equal(t, uint32(60), r.CountsPerMinute)
	assert.Equal(t, 0.14, r.AverageDoseRate.Value)
	assert.Equal(t, uint32(123), r.ElapsedTime)
	assert.Equal(t, 0.0, r.SurfaceContamination.Value)
	assert.Equal(t, WarningNone, r.Warning)
	assert.True(t, r.Timestamp.Equal(at()))
}

func TestParseLine_TrailingNoiseAccepted(t *testing.T) {
	for _, line := range []string{
		goodLine + ";",
		goodLine + "\r\n",
		goodLine + ";\x00\x00",
	} {
		_, err := ParseLine(line, at())
		assert.NoError(t, err, "line %q", line)
	}
}

func TestParseLine_RoundTripByteExact(t *testing.T) {
	lines := []string{
		goodLine,
		"DR:12.500mSv/h;D:0.1Sv;CPS:9999;CPM:999999;AVG:3.0mSv/h;DT:9999999;S:10.25mSv;W:2",
		"DR:0uSv/h;D:0uSv;CPS:0000;CPM:000000;AVG:0uSv/h;DT:0000000;S:0uSv;W:1",
	}
	for _, line := range lines {
		r, err := ParseLine(line, at())
		require.NoError(t, err, line)
		assert.Equal(t, line, Encode(r).Line())
	}
}

func TestParseLine_AcceptedMagnitudesRoundTrip(t *testing.T) {
	// every magnitude the parser accepts must come back unchanged
	for _, dr := range []string{
		"0.15", "0", "0.000", "10", "999.99",
		"123456789012.345", // 15 significant digits
		"0.000123456789012345",
	} {
		line := "DR:" + dr + "uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0"
		r, err := ParseLine(line, at())
		require.NoError(t, err, line)
		assert.Equal(t, line, Encode(r).Line())
	}
}

func TestParseLine_RejectsNonCanonicalMagnitudes(t *testing.T) {
	cases := map[string]string{
		"leading zero":     "DR:00.15uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"leading zero int": "DR:0.15uSv/h;D:01uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"too many digits":  "DR:0.15uSv/h;D:123456789012345678.25uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"long fraction":    "DR:0.1234567890123456uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLine(line, at())
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "accepted %q", line)
		})
	}
}

func TestParseLine_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing CPM":    "DR:0.15uSv/h;D:1.63uSv;CPS:0001;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"empty":          "",
		"duplicate":      goodLine + ";W:0",
		"unknown tag":    goodLine + ";X:1",
		"no tag":         "DR0.15uSv/h;" + goodLine[12:],
		"short CPS":      "DR:0.15uSv/h;D:1.63uSv;CPS:1;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"bad unit":       "DR:0.15uSv;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"bad magnitude":  "DR:0.1.5uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"dangling point": "DR:1.uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"signed":         "DR:-0.15uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0",
		"warning alpha":  "DR:0.15uSv/h;D:1.63uSv;CPS:0001;CPM:000060;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:x",
		"garbled":        "\x0e\xffDR:0.1",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := ParseLine(line, at())
			require.Error(t, err)
			assert.Equal(t, Reading{}, r)

			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}

func TestParseLine_MissingFieldNamed(t *testing.T) {
	_, err := ParseLine("DR:0.15uSv/h;D:1.63uSv;CPS:0001;AVG:0.14uSv/h;DT:0000123;S:0.00uSv;W:0", at())

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, TagCountsPerMinute, pe.Field)
}

func TestEncode_JSONKeys(t *testing.T) {
	r, err := ParseLine(goodLine, at())
	require.NoError(t, err)

	b, err := json.Marshal(Encode(r))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"timestamp":      "2025-08-13T14:22:10",
		"DR":             "0.15uSv/h",
		"D":              "1.63uSv",
		"CPS":            "0001",
		"CPM":            "000060",
		"AVG":            "0.14uSv/h",
		"DT":             "0000123",
		"S":              "0.00uSv",
		"W":              "0"
	}`, string(b))
}

func TestWarning_String(t *testing.T) {
	assert.Equal(t, "rate", WarningRate.String())
	assert.Equal(t, "code(7)", Warning(7).String())
}

func TestQuantity_Micro(t *testing.T) {
	assert.Equal(t, 0.15, Quantity{Value: 0.15, Unit: MicroSievertPerHour}.Micro())
	assert.InDelta(t, 12500.0, Quantity{Value: 12.5, Unit: MilliSievertPerHour}.Micro(), 1e-9)
	assert.InDelta(t, 1630.0, Quantity{Value: 1.63, Unit: MilliSievert}.Micro(), 1e-9)
	assert.InDelta(t, 100000.0, Quantity{Value: 0.1, Unit: Sievert}.Micro(), 1e-6)
}
