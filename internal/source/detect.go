// internal/source/detect.go
package source

import (
	"errors"
	"path/filepath"
	"sort"
)

// detectPatterns are tried in order. The FS5000 enumerates through a
// CH340 bridge (VID 0x1A86, PID 0x7523).
var detectPatterns = []string{
	"/dev/serial/by-id/*1a86*",
	"/dev/ttyUSB*",
}

// ErrNoDevice is returned when no candidate serial port exists.
var ErrNoDevice = errors.New("source: no FS5000 serial device found")

// DetectDevice returns the first serial port matching detectPatterns.
func DetectDevice() (string, error) {
	for _, pattern := range detectPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[0], nil
	}
	return "", ErrNoDevice
}
