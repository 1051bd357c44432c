// internal/source/simulated.go
package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// SimConfig drives the simulated instrument.
type SimConfig struct {
	Seed      int64
	Period    time.Duration
	FailEvery int     // inject a timeout on every Nth call; 0 disables
	MinRate   float64 // uSv/h
	MaxRate   float64 // uSv/h
	AlarmRate float64 // W=1 at or above this rate; 0 disables
	Start     time.Time
}

// cpsPerMicroSievert approximates the FS5000 tube sensitivity.
const cpsPerMicroSievert = 6.67

// Field limits implied by the fixed-width protocol.
const (
	maxCPS = 9999
	maxCPM = 999999
	maxDT  = 9999999
)

// Validate rejects configurations that can never produce readings.
func (c SimConfig) Validate() error {
	if c.Period <= 0 {
		return errors.New("simulated source: period must be > 0")
	}
	if c.FailEvery < 0 {
		return errors.New("simulated source: fail_every must be >= 0")
	}
	if c.MinRate < 0 || c.MinRate >= c.MaxRate {
		return fmt.Errorf("simulated source: rate bounds [%g, %g] invalid", c.MinRate, c.MaxRate)
	}
	if c.AlarmRate < 0 {
		return errors.New("simulated source: alarm rate must be >= 0")
	}
	return nil
}

// Simulated synthesizes plausible readings: the dose rate is a
// mean-reverting bounded random walk and every other field is derived
// from it, so counters stay consistent with each other.
type Simulated struct {
	cfg SimConfig
	rng *rand.Rand

	calls   int
	samples int
	at      time.Time
	elapsed time.Duration

	rate    float64
	rateSum float64
	dose    float64

	window []uint32 // counts per tick over the last minute
	pos    int
}

var _ Source = (*Simulated)(nil)

// NewSimulated validates cfg and returns a ready simulator.
func NewSimulated(cfg SimConfig) (*Simulated, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := cfg.Start
	if start.IsZero() {
		start = time.Now().Truncate(time.Second)
	}

	ticks := int(math.Round(float64(time.Minute) / float64(cfg.Period)))
	if ticks < 1 {
		ticks = 1
	}

	return &Simulated{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		at:     start,
		rate:   (cfg.MinRate + cfg.MaxRate) / 4,
		window: make([]uint32, ticks),
	}, nil
}

// NextReading advances the simulation by one period.
func (s *Simulated) NextReading(ctx context.Context) (reading.Reading, error) {
	if err := ctx.Err(); err != nil {
		return reading.Reading{}, err
	}

	s.calls++
	if s.cfg.FailEvery > 0 && s.calls%s.cfg.FailEvery == 0 {
		return reading.Reading{}, fmt.Errorf("%w: injected failure on call %d", ErrTimeout, s.calls)
	}

	s.step()

	r := reading.Reading{
		Timestamp:            s.at,
		DoseRate:             micro(s.rate, reading.MicroSievertPerHour),
		DoseAccumulated:      micro(s.dose, reading.MicroSievert),
		AverageDoseRate:      micro(s.rateSum/float64(s.samples), reading.MicroSievertPerHour),
		SurfaceContamination: micro(0, reading.MicroSievert),
		CountsPerSecond:      clampU32(s.cps(), maxCPS),
		CountsPerMinute:      clampU32(s.cpm(), maxCPM),
		ElapsedTime:          uint32(int64(s.elapsed/time.Second) % (maxDT + 1)),
		Warning:              reading.WarningNone,
	}
	if s.cfg.AlarmRate > 0 && s.rate >= s.cfg.AlarmRate {
		r.Warning = reading.WarningRate
	}
	return r, nil
}

// Close is a no-op; the simulator is reused across reopen so the walk
// and timestamps stay continuous.
func (s *Simulated) Close() error { return nil }

func (s *Simulated) step() {
	mid := (s.cfg.MinRate + s.cfg.MaxRate) / 2
	span := s.cfg.MaxRate - s.cfg.MinRate

	// small noise plus a weak pull toward the middle of the band
	s.rate += (s.rng.Float64()*2-1)*span*0.05 + (mid-s.rate)*0.02
	s.rate = math.Max(s.cfg.MinRate, math.Min(s.cfg.MaxRate, s.rate))
	s.rate = round2(s.rate)

	s.samples++
	s.rateSum += s.rate
	s.dose += s.rate * s.cfg.Period.Hours()
	s.elapsed += s.cfg.Period
	s.at = s.at.Add(s.cfg.Period)

	lambda := s.rate * cpsPerMicroSievert * s.cfg.Period.Seconds()
	counts := lambda + s.rng.NormFloat64()*math.Sqrt(lambda)
	if counts < 0 {
		counts = 0
	}
	s.window[s.pos] = uint32(math.Round(counts))
	s.pos = (s.pos + 1) % len(s.window)
}

func (s *Simulated) cps() uint64 {
	last := s.window[(s.pos+len(s.window)-1)%len(s.window)]
	return uint64(math.Round(float64(last) / s.cfg.Period.Seconds()))
}

func (s *Simulated) cpm() uint64 {
	var sum uint64
	for _, c := range s.window {
		sum += uint64(c)
	}
	return sum
}

func micro(v float64, u reading.Unit) reading.Quantity {
	return reading.Quantity{Value: round2(v), Precision: 2, Unit: u}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampU32(v uint64, max uint32) uint32 {
	if v > uint64(max) {
		return max
	}
	return uint32(v)
}
