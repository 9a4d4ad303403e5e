// Package device implements the BITalino (r)evolution serial link:
// command encoding, live-mode frame decoding and the transport used to
// reach a device over a Bluetooth RFCOMM node or USB serial port.
package device

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDeviceNotIdle    = errors.New("the device is not idle")
	ErrNotInAcquisition = errors.New("the device is not in acquisition mode")
	// ErrContactingDevice is the connection-lost condition: the link went
	// away mid-acquisition or a frame failed its CRC check.
	ErrContactingDevice = errors.New("lost communication with the device")
)

// Channel is an analog input index, 0 through 5 for A1 through A6.
type Channel int

// channelNames maps the front-panel labels to input indices.
var channelNames = map[string]Channel{
	"A1": 0, "A2": 1, "A3": 2, "A4": 3, "A5": 4, "A6": 5,
}

// ParseChannel resolves a front-panel label (A1..A6) to its input index.
func ParseChannel(name string) (Channel, error) {
	ch, ok := channelNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: channel %q, accepted values are A1..A6", ErrInvalidParameter, name)
	}
	return ch, nil
}

// Name returns the front-panel label for the channel.
func (c Channel) Name() string {
	for name, ch := range channelNames {
		if ch == c {
			return name
		}
	}
	return fmt.Sprintf("A?(%d)", int(c))
}

// Bits returns the ADC resolution of the channel. The first four inputs
// sample at 10 bit, the last two at 6 bit.
func (c Channel) Bits() int {
	if c >= 4 {
		return 6
	}
	return 10
}

// sampling rate codes understood by the firmware
var rateCodes = map[int]byte{1: 0, 10: 1, 100: 2, 1000: 3}

// ValidRate reports whether the firmware supports the given sampling rate.
func ValidRate(hz int) bool {
	_, ok := rateCodes[hz]
	return ok
}

// SortChannels returns a copy of chs in ascending input order, the order in
// which the firmware packs analog values into live-mode frames.
func SortChannels(chs []Channel) []Channel {
	out := append([]Channel(nil), chs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Frame is one decoded live-mode sample.
type Frame struct {
	Seq     int     // 4-bit rolling sequence number
	Digital [4]bool // digital inputs I1..I4
	Analog  []int   // one raw ADC count per started channel, ascending input order
}

// State is the idle-mode status report.
type State struct {
	Analog           [6]int  // raw counts of all six inputs
	Battery          int     // battery ADC reading
	BatteryThreshold int     // configured low-battery threshold
	Digital          [4]bool // digital inputs I1..I4
}

// Device is the surface every BITalino transport provides. It mirrors the
// vendor SDK: open, start, read sample blocks, stop, close.
type Device interface {
	// Version returns the firmware identification string. Idle mode only.
	Version() (string, error)
	// State reads the idle-mode status report. Idle mode only.
	State() (State, error)
	// Battery sets the low-battery LED threshold (0..63). Idle mode only.
	Battery(threshold int) error
	// Start puts the device in live mode, streaming the given channels at
	// the given rate. Returns ErrDeviceNotIdle when already acquiring.
	Start(samplingRate int, channels []Channel) error
	// Read blocks until n frames have been received.
	Read(n int) ([]Frame, error)
	// Stop leaves live mode. Returns ErrNotInAcquisition when idle.
	Stop() error
	// Close releases the underlying link.
	Close() error
}
