package device

import (
	"math"
	"sync"
	"time"
)

// SimConfig configures the simulated device.
type SimConfig struct {
	// FailStarts makes the first n Start calls return ErrDeviceNotIdle,
	// imitating a device left in live mode by a previous run.
	FailStarts int
	// DropAfter makes reads fail with ErrContactingDevice once that many
	// frames have been produced. Zero disables the fault.
	DropAfter int
	// Realtime paces Read to the configured sampling rate. Tests leave it
	// off; the e2e script turns it on.
	Realtime bool
}

// Sim is an in-memory Device producing well-formed frames with synthetic
// waveforms, one slow sine per channel. Frames go through the wire codec
// so the sequence numbers, packing and CRC are exercised end to end.
type Sim struct {
	cfg SimConfig

	mu       sync.Mutex
	started  bool
	closed   bool
	rate     int
	channels []Channel
	produced int
}

// NewSim creates a simulated device in idle mode.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg}
}

func (s *Sim) Version() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return "", ErrDeviceNotIdle
	}
	return "BITalino_v5.2_sim", nil
}

func (s *Sim) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return State{}, ErrDeviceNotIdle
	}
	st := State{Battery: 630, BatteryThreshold: 0}
	for i := range st.Analog {
		st.Analog[i] = s.rawValue(Channel(i), 0)
	}
	return st, nil
}

func (s *Sim) Battery(threshold int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrDeviceNotIdle
	}
	if threshold < 0 || threshold > 63 {
		return ErrInvalidParameter
	}
	return nil
}

func (s *Sim) Start(samplingRate int, channels []Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrDeviceNotIdle
	}
	if s.cfg.FailStarts > 0 {
		s.cfg.FailStarts--
		return ErrDeviceNotIdle
	}
	if !ValidRate(samplingRate) {
		return ErrInvalidParameter
	}
	if len(channels) == 0 || len(channels) > 6 {
		return ErrInvalidParameter
	}
	s.rate = samplingRate
	s.channels = SortChannels(channels)
	s.started = true
	s.produced = 0
	return nil
}

func (s *Sim) Read(n int) ([]Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotInAcquisition
	}
	if n <= 0 {
		return nil, ErrInvalidParameter
	}
	if s.cfg.Realtime {
		s.mu.Unlock()
		time.Sleep(time.Duration(n) * time.Second / time.Duration(s.rate))
		s.mu.Lock()
	}

	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		if s.cfg.DropAfter > 0 && s.produced >= s.cfg.DropAfter {
			return nil, ErrContactingDevice
		}
		f := Frame{
			Seq:    s.produced % 16,
			Analog: make([]int, len(s.channels)),
		}
		for j, ch := range s.channels {
			f.Analog[j] = s.rawValue(ch, s.produced)
		}
		decoded, err := decodeFrame(encodeFrame(f), len(s.channels))
		if err != nil {
			return nil, err
		}
		frames = append(frames, decoded)
		s.produced++
	}
	return frames, nil
}

func (s *Sim) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotInAcquisition
	}
	s.started = false
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.closed = true
	return nil
}

// rawValue synthesizes an ADC count: a 1 Hz sine per channel, phase-shifted
// per input, centered at half scale.
func (s *Sim) rawValue(ch Channel, frame int) int {
	full := 1 << uint(ch.Bits())
	center := float64(full) / 2
	amplitude := float64(full) / 4
	rate := s.rate
	if rate == 0 {
		rate = 100
	}
	t := float64(frame) / float64(rate)
	phase := float64(ch) * math.Pi / 3
	v := center + amplitude*math.Sin(2*math.Pi*t+phase)
	if v < 0 {
		v = 0
	}
	if v > float64(full-1) {
		v = float64(full - 1)
	}
	return int(v)
}
