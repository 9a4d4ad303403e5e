package device

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

const linkBaud = 115200

// command bytes understood by the firmware in idle mode
const (
	cmdVersion = 0x07
	cmdState   = 0x0B
	cmdStop    = 0x00
)

// SerialConfig configures the link to a physical device. Address is the
// platform serial node for the paired device: an RFCOMM node such as
// /dev/rfcomm0 on Linux, COMx on Windows or /dev/tty.BITalino-XX-XX-DevB
// on macOS.
type SerialConfig struct {
	Address string
	Timeout time.Duration
}

// SerialDevice talks to a BITalino over a serial port.
type SerialDevice struct {
	port     io.ReadWriteCloser
	address  string
	started  bool
	channels []Channel
	frameLen int
}

// OpenSerial opens the serial link to the device. The device starts in
// idle mode.
func OpenSerial(cfg SerialConfig) (*SerialDevice, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: empty device address", ErrInvalidParameter)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Address,
		Baud:        linkBaud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Address, err)
	}
	return &SerialDevice{port: port, address: cfg.Address}, nil
}

func (d *SerialDevice) send(b byte) error {
	if _, err := d.port.Write([]byte{b}); err != nil {
		return fmt.Errorf("%w: %w", ErrContactingDevice, err)
	}
	return nil
}

// receive fills buf from the link. The port read can return short counts
// on timeout; repeated zero-progress reads mean the device went away.
func (d *SerialDevice) receive(buf []byte) error {
	const maxStalls = 10
	stalls := 0
	for off := 0; off < len(buf); {
		n, err := d.port.Read(buf[off:])
		if err != nil && err != io.EOF {
			return fmt.Errorf("%w: %w", ErrContactingDevice, err)
		}
		if n == 0 {
			stalls++
			if stalls >= maxStalls {
				return fmt.Errorf("%w: read stalled after %d bytes", ErrContactingDevice, off)
			}
			continue
		}
		stalls = 0
		off += n
	}
	return nil
}

// Version reads the firmware identification string.
func (d *SerialDevice) Version() (string, error) {
	if d.started {
		return "", ErrDeviceNotIdle
	}
	if err := d.send(cmdVersion); err != nil {
		return "", err
	}
	var out []byte
	b := make([]byte, 1)
	for {
		if err := d.receive(b); err != nil {
			return "", err
		}
		if b[0] == '\n' {
			return string(out), nil
		}
		out = append(out, b[0])
		if len(out) > 256 {
			return "", fmt.Errorf("%w: unterminated version string", ErrContactingDevice)
		}
	}
}

// State reads the idle-mode status report.
func (d *SerialDevice) State() (State, error) {
	if d.started {
		return State{}, ErrDeviceNotIdle
	}
	if err := d.send(cmdState); err != nil {
		return State{}, err
	}
	buf := make([]byte, 16)
	if err := d.receive(buf); err != nil {
		return State{}, err
	}
	if buf[15]&0x0F != crc4(buf) {
		return State{}, fmt.Errorf("%w: state frame CRC mismatch", ErrContactingDevice)
	}
	var st State
	for i := 0; i < 6; i++ {
		st.Analog[i] = int(buf[2*i]) | int(buf[2*i+1])<<8
	}
	st.Battery = int(buf[12]) | int(buf[13])<<8
	st.BatteryThreshold = int(buf[14])
	for i := 0; i < 4; i++ {
		st.Digital[i] = buf[15]>>(7-uint(i))&0x01 == 0x01
	}
	return st, nil
}

// Battery sets the low-battery LED threshold.
func (d *SerialDevice) Battery(threshold int) error {
	if d.started {
		return ErrDeviceNotIdle
	}
	if threshold < 0 || threshold > 63 {
		return fmt.Errorf("%w: battery threshold %d out of range 0..63", ErrInvalidParameter, threshold)
	}
	return d.send(byte(threshold) << 2)
}

// Start puts the device into live mode.
func (d *SerialDevice) Start(samplingRate int, channels []Channel) error {
	if d.started {
		return ErrDeviceNotIdle
	}
	code, ok := rateCodes[samplingRate]
	if !ok {
		return fmt.Errorf("%w: sampling rate %d, accepted values are 1, 10, 100, 1000", ErrInvalidParameter, samplingRate)
	}
	if len(channels) == 0 || len(channels) > 6 {
		return fmt.Errorf("%w: %d channels selected", ErrInvalidParameter, len(channels))
	}
	var mask byte
	for _, ch := range channels {
		if ch < 0 || ch > 5 {
			return fmt.Errorf("%w: channel index %d", ErrInvalidParameter, int(ch))
		}
		if mask&(1<<uint(ch)) != 0 {
			return fmt.Errorf("%w: channel %s selected twice", ErrInvalidParameter, ch.Name())
		}
		mask |= 1 << uint(ch)
	}

	if err := d.send(code<<6 | 0x03); err != nil {
		return err
	}
	if err := d.send(mask<<2 | 0x01); err != nil {
		return err
	}
	d.channels = SortChannels(channels)
	d.frameLen = FrameLen(len(d.channels))
	d.started = true
	return nil
}

// Read blocks until n frames have been received and decoded.
func (d *SerialDevice) Read(n int) ([]Frame, error) {
	if !d.started {
		return nil, ErrNotInAcquisition
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: block size %d", ErrInvalidParameter, n)
	}
	buf := make([]byte, n*d.frameLen)
	if err := d.receive(buf); err != nil {
		return nil, err
	}
	frames := make([]Frame, n)
	for i := 0; i < n; i++ {
		f, err := decodeFrame(buf[i*d.frameLen:(i+1)*d.frameLen], len(d.channels))
		if err != nil {
			return nil, err
		}
		frames[i] = f
	}
	return frames, nil
}

// Stop leaves live mode.
func (d *SerialDevice) Stop() error {
	if !d.started {
		return ErrNotInAcquisition
	}
	if err := d.send(cmdStop); err != nil {
		return err
	}
	d.started = false
	return nil
}

// Close stops a running acquisition and releases the port.
func (d *SerialDevice) Close() error {
	if d.started {
		_ = d.Stop()
	}
	return d.port.Close()
}
