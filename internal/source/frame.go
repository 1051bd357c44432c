// internal/source/frame.go
package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goburrow/serial"
)

// FS5000 packet framing (LOCKED).
//
// Layout:
// 0      Header 0xAA
// 1      Length = len(payload) + 3
// 2..n   Payload (command byte first)
// n+1    Checksum = sum(header, length, payload) mod 256
// n+2    Trailer 0x55
const (
	frameHeader  byte = 0xAA
	frameTrailer byte = 0x55

	// maxResync bounds the garbage skipped while looking for a header.
	maxResync = 512
)

// Commands and response markers used by this gateway.
const (
	cmdSetTime byte = 0x01
	cmdRead    byte = 0x0E

	respSuccess byte = 0x06
)

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// buildPacket wraps a command payload into one frame.
func buildPacket(payload []byte) []byte {
	pkt := make([]byte, 0, len(payload)+4)
	pkt = append(pkt, frameHeader, byte(len(payload)+3))
	pkt = append(pkt, payload...)
	pkt = append(pkt, checksum(pkt), frameTrailer)
	return pkt
}

// errFrame marks a frame that arrived but is corrupt.
// It is a parse failure, not a transport failure.
type errFrame struct{ reason string }

func (e *errFrame) Error() string { return "frame: " + e.reason }

func (e *errFrame) Unwrap() error { return ErrParse }

// frameReader extracts frames from a byte stream.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, 512)}
}

// next returns the payload of the next frame.
// Transport errors are classified; corrupt frames return *errFrame.
func (f *frameReader) next() ([]byte, error) {
	skipped := 0
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, classifyRead(err)
		}
		if b == frameHeader {
			break
		}
		skipped++
		if skipped > maxResync {
			return nil, &errFrame{reason: fmt.Sprintf("no header in %d bytes", skipped)}
		}
	}

	length, err := f.r.ReadByte()
	if err != nil {
		return nil, classifyRead(err)
	}
	if length < 3 {
		return nil, &errFrame{reason: fmt.Sprintf("length %d too short", length)}
	}

	// payload + checksum + trailer
	rest := make([]byte, int(length)-1)
	if _, err := io.ReadFull(f.r, rest); err != nil {
		return nil, classifyRead(err)
	}

	if rest[len(rest)-1] != frameTrailer {
		return nil, &errFrame{reason: fmt.Sprintf("trailer 0x%02x not 0x55", rest[len(rest)-1])}
	}

	payload := rest[:len(rest)-2]
	want := checksum(append([]byte{frameHeader, length}, payload...))
	if got := rest[len(rest)-2]; got != want {
		return nil, &errFrame{reason: fmt.Sprintf("checksum 0x%02x != 0x%02x", got, want)}
	}

	return payload, nil
}

// classifyRead maps a raw port error onto the source taxonomy.
func classifyRead(err error) error {
	switch {
	case errors.Is(err, serial.ErrTimeout), errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
}
