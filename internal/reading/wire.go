// internal/reading/wire.go
package reading

import (
	"fmt"
	"strings"
)

// Wire is the boundary form of a Reading.
// Keys and value conventions are fixed by existing dashboard consumers.
type Wire struct {
	Timestamp string `json:"timestamp"`
	DR        string `json:"DR"`
	D         string `json:"D"`
	CPS       string `json:"CPS"`
	CPM       string `json:"CPM"`
	AVG       string `json:"AVG"`
	DT        string `json:"DT"`
	S         string `json:"S"`
	W         string `json:"W"`
}

// CSVHeader lists the wire keys in column order.
var CSVHeader = []string{"timestamp", "DR", "D", "CPS", "CPM", "AVG", "DT", "S", "W"}

// Encode converts a Reading into its wire form.
func Encode(r Reading) Wire {
	return Wire{
		Timestamp: r.Timestamp.Local().Format(TimestampLayout),
		DR:        r.DoseRate.String(),
		D:         r.DoseAccumulated.String(),
		CPS:       fmt.Sprintf("%0*d", widthCPS, r.CountsPerSecond),
		CPM:       fmt.Sprintf("%0*d", widthCPM, r.CountsPerMinute),
		AVG:       r.AverageDoseRate.String(),
		DT:        fmt.Sprintf("%0*d", widthDT, r.ElapsedTime),
		S:         r.SurfaceContamination.String(),
		W:         fmt.Sprintf("%0*d", widthW, r.Warning),
	}
}

// Line renders the instrument record (without timestamp).
func (w Wire) Line() string {
	parts := []string{
		TagDoseRate + ":" + w.DR,
		TagDoseAccumulated + ":" + w.D,
		TagCountsPerSecond + ":" + w.CPS,
		TagCountsPerMinute + ":" + w.CPM,
		TagAverageDoseRate + ":" + w.AVG,
		TagElapsedTime + ":" + w.DT,
		TagSurfaceContamination + ":" + w.S,
		TagWarning + ":" + w.W,
	}
	return strings.Join(parts, ";")
}

// CSV returns the row matching CSVHeader.
func (w Wire) CSV() []string {
	return []string{w.Timestamp, w.DR, w.D, w.CPS, w.CPM, w.AVG, w.DT, w.S, w.W}
}
