// Package manager orchestrates one acquisition run: it starts the device,
// polls fixed-size sample blocks, converts raw counts to physical units,
// grows the session store and fans converted blocks out to the configured
// sinks and the live plot feed.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aakash-soni-git/bitalino/internal/convert"
	"github.com/aakash-soni-git/bitalino/internal/device"
	"github.com/aakash-soni-git/bitalino/internal/plot"
	"github.com/aakash-soni-git/bitalino/internal/session"
	"github.com/aakash-soni-git/bitalino/internal/worker"
)

// DefaultSamplingRate is used when the configured rate is not one the
// firmware supports.
const DefaultSamplingRate = 100

// Sink receives every converted block and a final Close when the
// session ends. Sink errors are logged, never fatal to acquisition.
type Sink interface {
	WriteBlock(ctx context.Context, blk *session.Block) error
	Close(ctx context.Context) error
}

// ChannelSpec pairs an analog channel with the sensor wired to it.
type ChannelSpec struct {
	Channel device.Channel
	Kind    convert.Kind
}

type Config struct {
	Device       device.Device
	Channels     []ChannelSpec
	SamplingRate int
	// BlockSize is the number of frames fetched per read. Small blocks
	// hammer the device; 100 works well for all supported rates.
	BlockSize int
	// Runtime limits the session; zero runs until the context ends.
	Runtime  time.Duration
	Sinks    []Sink
	Feeder   *plot.Feeder
	Registry *session.Registry
	// Stamp names the session; empty means stamp at start time.
	Stamp string
	// LogBlocks logs a line per collected block.
	LogBlocks bool
}

// Manager drives one session at a time.
type Manager struct {
	cfg      Config
	channels []ChannelSpec

	mu              sync.Mutex
	connectFailures int

	// per-run state
	sess    *session.Session
	cancel  context.CancelFunc
	started time.Time
	runErr  error
}

var ErrNoChannels = errors.New("no acquisition channels selected")

// New validates the configuration. An unsupported sampling rate falls
// back to the default with a warning, unknown sensor kinds have already
// been downgraded to RAW by config parsing, but an empty channel
// selection is an error.
func New(cfg Config) (*Manager, error) {
	if len(cfg.Channels) == 0 {
		return nil, ErrNoChannels
	}
	if !device.ValidRate(cfg.SamplingRate) {
		slog.Warn("Invalid sampling rate, selecting default",
			"requested", cfg.SamplingRate, "default", DefaultSamplingRate)
		cfg.SamplingRate = DefaultSamplingRate
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = 100
	}
	if cfg.Registry == nil {
		cfg.Registry = session.NewRegistry()
	}

	// frames carry analog values in ascending input order
	channels := append([]ChannelSpec(nil), cfg.Channels...)
	for i := 0; i < len(channels); i++ {
		for j := i + 1; j < len(channels); j++ {
			if channels[j].Channel < channels[i].Channel {
				channels[i], channels[j] = channels[j], channels[i]
			}
		}
	}
	return &Manager{cfg: cfg, channels: channels}, nil
}

// AddSink attaches a sink before the run starts.
func (m *Manager) AddSink(s Sink) {
	m.cfg.Sinks = append(m.cfg.Sinks, s)
}

// SetFeeder attaches the live plot feed before the run starts.
func (m *Manager) SetFeeder(f *plot.Feeder) {
	m.cfg.Feeder = f
}

// Connect verifies the link by reading the firmware version and,
// optionally, the idle-mode state report.
func (m *Manager) Connect(ctx context.Context, printState bool) error {
	version, err := m.cfg.Device.Version()
	if err != nil {
		m.mu.Lock()
		m.connectFailures++
		n := m.connectFailures
		m.mu.Unlock()
		slog.ErrorContext(ctx, "Connection error", "error", err, "failedAttempts", n)
		return err
	}
	m.mu.Lock()
	m.connectFailures = 0
	m.mu.Unlock()
	slog.InfoContext(ctx, "Connected to device", "version", version)

	if printState {
		st, err := m.cfg.Device.State()
		if err != nil {
			slog.WarnContext(ctx, "Could not read device state", "error", err)
			return nil
		}
		slog.InfoContext(ctx, "Device initial state",
			"analog", st.Analog, "battery", st.Battery,
			"batteryThreshold", st.BatteryThreshold, "digital", st.Digital)
	}
	return nil
}

// Labels returns the sensor labels in acquisition order.
func (m *Manager) Labels() []string {
	labels := make([]string, len(m.channels))
	for i, cs := range m.channels {
		labels[i] = string(cs.Kind)
	}
	return labels
}

// Rate returns the effective sampling rate.
func (m *Manager) Rate() int { return m.cfg.SamplingRate }

// Run performs one acquisition session and blocks until it ends: runtime
// reached, context cancelled or connection lost. The collected session is
// returned; a lost connection also returns ErrContactingDevice, with the
// partial session intact.
func (m *Manager) Run(ctx context.Context) (*session.Session, error) {
	chans := make([]device.Channel, len(m.channels))
	for i, cs := range m.channels {
		chans[i] = cs.Channel
	}
	slog.InfoContext(ctx, "Start read data", "channels", m.channelNames(), "rate", m.cfg.SamplingRate)

	err := m.cfg.Device.Start(m.cfg.SamplingRate, chans)
	if errors.Is(err, device.ErrDeviceNotIdle) {
		// device left in live mode by a previous run: force a stop and
		// retry once with the same parameters
		slog.WarnContext(ctx, "Device busy, interrupting and restarting acquisition")
		if stopErr := m.cfg.Device.Stop(); stopErr != nil && !errors.Is(stopErr, device.ErrNotInAcquisition) {
			slog.ErrorContext(ctx, "Forced stop failed", "error", stopErr)
		}
		err = m.cfg.Device.Start(m.cfg.SamplingRate, chans)
	}
	if err != nil {
		return nil, err
	}

	m.started = time.Now()
	m.runErr = nil
	stamp := m.cfg.Stamp
	if stamp == "" {
		stamp = session.Stamp(m.started)
	}
	m.sess = session.New(stamp, m.cfg.SamplingRate, m.Labels())
	m.cfg.Registry.Add(m.sess)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	defer cancel()

	worker.New(worker.Config{
		Name:      "acquisition",
		Processor: m,
	}).Run(runCtx)

	// teardown still runs when the outer context was what ended the run
	m.finish(context.WithoutCancel(ctx))
	return m.sess, m.runErr
}

// ProcessBlock fetches and handles one block. Terminal conditions cancel
// the run context instead of returning errors, which stops the worker.
func (m *Manager) ProcessBlock(ctx context.Context) {
	frames, err := m.cfg.Device.Read(m.cfg.BlockSize)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, device.ErrContactingDevice) {
			slog.ErrorContext(ctx, "Connection lost", "error", err)
		} else {
			slog.ErrorContext(ctx, "Unhandled read error", "error", err)
		}
		m.runErr = err
		m.cancel()
		return
	}

	values := make([][]float64, len(m.channels))
	for i, cs := range m.channels {
		vs := make([]float64, len(frames))
		for j, f := range frames {
			vs[j] = cs.Kind.Apply(float64(f.Analog[i]), cs.Channel.Bits())
		}
		values[i] = vs
	}

	blk, err := m.sess.Append(values)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping misaligned block", "error", err)
		return
	}
	if m.cfg.LogBlocks {
		slog.InfoContext(ctx, "Collected samples", "total", m.sess.Len(), "block", blk.Samples())
	}

	for _, sink := range m.cfg.Sinks {
		if err := sink.WriteBlock(ctx, blk); err != nil {
			slog.ErrorContext(ctx, "Sink write failed", "error", err)
		}
	}

	if m.cfg.Feeder != nil {
		if err := m.cfg.Feeder.Push(m.sess.Window(m.cfg.Feeder.WindowSamples())); err != nil {
			slog.WarnContext(ctx, "Plot feed failed", "error", err)
		}
	}

	if m.cfg.Runtime > 0 && time.Since(m.started) >= m.cfg.Runtime {
		slog.InfoContext(ctx, "Interrupt on timeout", "elapsed", time.Since(m.started))
		m.cancel()
	}
}

// finish tears the session down: plotter first, then the device, then
// the sinks.
func (m *Manager) finish(ctx context.Context) {
	if m.cfg.Feeder != nil {
		slog.InfoContext(ctx, "Terminate plot process")
		if err := m.cfg.Feeder.Stop(); err != nil {
			slog.WarnContext(ctx, "Plot process did not exit cleanly", "error", err)
		}
	}

	if err := m.cfg.Device.Stop(); err != nil && !errors.Is(err, device.ErrNotInAcquisition) {
		slog.ErrorContext(ctx, "Stop acquisition failed", "error", err)
	} else {
		slog.InfoContext(ctx, "Acquisition stopped")
	}

	for _, sink := range m.cfg.Sinks {
		if err := sink.Close(ctx); err != nil {
			slog.ErrorContext(ctx, "Sink close failed", "error", err)
		}
	}

	m.sess.Finish()
	snap := m.sess.Snapshot()
	slog.InfoContext(ctx, "Session finished", "stamp", snap.Stamp, "samples", snap.Samples)
}

func (m *Manager) channelNames() []string {
	names := make([]string, len(m.channels))
	for i, cs := range m.channels {
		names[i] = cs.Channel.Name()
	}
	return names
}
