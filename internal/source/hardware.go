// internal/source/hardware.go
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goburrow/serial"
	"go.uber.org/zap"

	"github.com/scriptstreamvrpc/api-fs500-websocket/internal/reading"
)

// HardwareConfig is the serial link configuration.
type HardwareConfig struct {
	Device      string // empty => auto-detect
	BaudRate    int
	ReadTimeout time.Duration
	SetClock    bool // push host time to the instrument on open
}

// Hardware reads FS5000 readout frames from a serial port.
type Hardware struct {
	cfg    HardwareConfig
	port   io.ReadWriteCloser
	frames *frameReader
	log    *zap.Logger

	now    func() time.Time
	last   time.Time
	closed bool
}

var _ Source = (*Hardware)(nil)

// OpenHardware opens the serial device and starts continuous readout.
func OpenHardware(cfg HardwareConfig, log *zap.Logger) (*Hardware, error) {
	if cfg.Device == "" {
		dev, err := DetectDevice()
		if err != nil {
			return nil, err
		}
		cfg.Device = dev
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", cfg.Device, err)
	}

	h, err := newHardware(port, cfg, log, time.Now)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	log.Info("serial source opened",
		zap.String("device", cfg.Device),
		zap.Int("baud", cfg.BaudRate),
	)
	return h, nil
}

// newHardware runs the open handshake over an already connected port.
func newHardware(port io.ReadWriteCloser, cfg HardwareConfig, log *zap.Logger, now func() time.Time) (*Hardware, error) {
	if cfg.ReadTimeout <= 0 {
		return nil, errors.New("source: read timeout must be > 0")
	}
	h := &Hardware{
		cfg:    cfg,
		port:   port,
		frames: newFrameReader(port),
		log:    log,
		now:    now,
	}

	if cfg.SetClock {
		if err := h.setClock(h.now()); err != nil {
			return nil, err
		}
	}
	if err := h.startReadout(); err != nil {
		return nil, err
	}
	return h, nil
}

// NextReading returns the next data frame as a Reading.
// Readout acknowledgements are skipped. The whole call is bounded by
// the read timeout.
func (h *Hardware) NextReading(ctx context.Context) (reading.Reading, error) {
	if h.closed {
		return reading.Reading{}, fmt.Errorf("%w: source closed", ErrIO)
	}

	deadline := h.now().Add(h.cfg.ReadTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return reading.Reading{}, err
		}
		if h.now().After(deadline) {
			return reading.Reading{}, fmt.Errorf("%w: no data frame within %s", ErrTimeout, h.cfg.ReadTimeout)
		}

		payload, err := h.frames.next()
		if err != nil {
			return reading.Reading{}, err
		}

		if isAck(payload) {
			continue
		}
		if len(payload) == 0 {
			return reading.Reading{}, &errFrame{reason: "empty payload"}
		}
		if payload[0] != cmdRead {
			return reading.Reading{}, &errFrame{reason: fmt.Sprintf("unexpected datum marker 0x%02x", payload[0])}
		}

		at := h.now()
		if at.Before(h.last) {
			at = h.last
		}

		r, err := reading.ParseLine(string(payload[1:]), at)
		if err != nil {
			return reading.Reading{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		h.last = at
		return r, nil
	}
}

// Close stops readout (best effort) and releases the port. Idempotent.
func (h *Hardware) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	if _, err := h.port.Write(buildPacket([]byte{cmdRead, 0x00})); err != nil {
		h.log.Debug("stop readout failed", zap.Error(err))
	}
	return h.port.Close()
}

func (h *Hardware) startReadout() error {
	if _, err := h.port.Write(buildPacket([]byte{cmdRead, 0x01})); err != nil {
		return fmt.Errorf("%w: start readout: %v", ErrIO, err)
	}
	return h.awaitSuccess(cmdRead, []byte{0x01})
}

func (h *Hardware) setClock(t time.Time) error {
	cmd := []byte{
		cmdSetTime,
		byte(t.Year() % 100), byte(t.Month()), byte(t.Day()),
		byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
	}
	if _, err := h.port.Write(buildPacket(cmd)); err != nil {
		return fmt.Errorf("%w: set clock: %v", ErrIO, err)
	}
	return h.awaitSuccess(cmdSetTime, nil)
}

// awaitSuccess reads frames until "<cmd> 0x06 <tail>" arrives.
// Data frames already in flight are discarded.
func (h *Hardware) awaitSuccess(cmd byte, tail []byte) error {
	deadline := h.now().Add(h.cfg.ReadTimeout)
	for {
		if h.now().After(deadline) {
			return fmt.Errorf("%w: no ack for command 0x%02x", ErrTimeout, cmd)
		}
		payload, err := h.frames.next()
		if err != nil {
			var fe *errFrame
			if errors.As(err, &fe) {
				continue
			}
			return fmt.Errorf("source: command 0x%02x: %w", cmd, err)
		}
		if len(payload) >= 2 && payload[0] == cmd && payload[1] == respSuccess {
			if tail == nil || string(payload[2:]) == string(tail) {
				return nil
			}
		}
	}
}

// isAck reports a readout control frame such as 0e 06 01.
func isAck(payload []byte) bool {
	return len(payload) >= 2 && payload[1] == respSuccess
}
