package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aakash-soni-git/bitalino/internal/convert"
	"github.com/aakash-soni-git/bitalino/internal/device"
	"github.com/aakash-soni-git/bitalino/internal/plot"
	"github.com/aakash-soni-git/bitalino/internal/session"
)

type recordingSink struct {
	blocks []*session.Block
	closed bool
}

func (s *recordingSink) WriteBlock(_ context.Context, blk *session.Block) error {
	s.blocks = append(s.blocks, blk)
	return nil
}

func (s *recordingSink) Close(_ context.Context) error {
	s.closed = true
	return nil
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Device: device.NewSim(device.SimConfig{})})
	require.ErrorIs(t, err, ErrNoChannels)

	m, err := New(Config{
		Device:       device.NewSim(device.SimConfig{}),
		Channels:     []ChannelSpec{{Channel: 0, Kind: convert.EDA}},
		SamplingRate: 42,
	})
	require.NoError(t, err)
	require.Equal(t, DefaultSamplingRate, m.Rate(), "unsupported rate falls back to the default")
}

func TestLabelsFollowChannelOrder(t *testing.T) {
	m, err := New(Config{
		Device: device.NewSim(device.SimConfig{}),
		Channels: []ChannelSpec{
			{Channel: 1, Kind: convert.ECG},
			{Channel: 0, Kind: convert.EDA},
		},
		SamplingRate: 100,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"EDA", "ECG"}, m.Labels(), "frames pack channels in ascending input order")
}

func TestRun_ConnectionLossKeepsPartialSession(t *testing.T) {
	sim := device.NewSim(device.SimConfig{DropAfter: 250})
	sink := &recordingSink{}
	m, err := New(Config{
		Device:       sim,
		Channels:     []ChannelSpec{{Channel: 0, Kind: convert.EDA}},
		SamplingRate: 100,
		BlockSize:    100,
		Sinks:        []Sink{sink},
	})
	require.NoError(t, err)

	sess, err := m.Run(context.Background())
	require.ErrorIs(t, err, device.ErrContactingDevice)
	require.NotNil(t, sess)
	require.Equal(t, 200, sess.Len(), "two full blocks before the link died")
	require.Len(t, sink.blocks, 2)
	require.True(t, sink.closed, "sinks close even on a lost connection")
	require.False(t, sess.Snapshot().Running)
}

func TestRun_ConvertsPerChannelKind(t *testing.T) {
	sim := device.NewSim(device.SimConfig{DropAfter: 100})
	sink := &recordingSink{}
	m, err := New(Config{
		Device: sim,
		Channels: []ChannelSpec{
			{Channel: 0, Kind: convert.EDA},
			{Channel: 1, Kind: convert.RAW},
		},
		SamplingRate: 100,
		BlockSize:    100,
		Sinks:        []Sink{sink},
	})
	require.NoError(t, err)

	_, err = m.Run(context.Background())
	require.ErrorIs(t, err, device.ErrContactingDevice)
	require.Len(t, sink.blocks, 1)

	blk := sink.blocks[0]
	require.Equal(t, []string{"EDA", "RAW"}, blk.Labels)
	// the simulated A1 waveform starts at mid scale
	require.InDelta(t, convert.EDAMicroSiemens(512, 10), blk.Values[0][0], 1e-9)
	// RAW passes counts through unchanged
	for _, v := range blk.Values[1] {
		require.Equal(t, v, float64(int(v)))
	}
}

func TestRun_DeviceBusyForcesStopAndRetries(t *testing.T) {
	sim := device.NewSim(device.SimConfig{FailStarts: 1, DropAfter: 100})
	m, err := New(Config{
		Device:       sim,
		Channels:     []ChannelSpec{{Channel: 0, Kind: convert.RAW}},
		SamplingRate: 100,
		BlockSize:    100,
	})
	require.NoError(t, err)

	sess, err := m.Run(context.Background())
	require.ErrorIs(t, err, device.ErrContactingDevice, "the run itself proceeds past the busy start")
	require.Equal(t, 100, sess.Len())
}

func TestRun_FeedsPlotWindowPerBlock(t *testing.T) {
	sim := device.NewSim(device.SimConfig{DropAfter: 300})
	var buf bytes.Buffer
	m, err := New(Config{
		Device:       sim,
		Channels:     []ChannelSpec{{Channel: 0, Kind: convert.EDA}},
		SamplingRate: 100,
		BlockSize:    100,
		Feeder:       plot.NewFeeder(&buf, 100),
	})
	require.NoError(t, err)

	_, err = m.Run(context.Background())
	require.ErrorIs(t, err, device.ErrContactingDevice)

	scanner := bufio.NewScanner(&buf)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	frames := 0
	var last [][]float64
	for scanner.Scan() {
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &last))
		frames++
	}
	require.Equal(t, 3, frames, "one plot frame per block")
	require.Len(t, last, 1)
	require.Len(t, last[0], 300, "trailing window holds everything for short sessions")
}

func TestRun_ContextCancellationStopsAcquisition(t *testing.T) {
	sim := device.NewSim(device.SimConfig{Realtime: true})
	m, err := New(Config{
		Device:       sim,
		Channels:     []ChannelSpec{{Channel: 0, Kind: convert.RAW}},
		SamplingRate: 1000,
		BlockSize:    10,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var sess *session.Session
	go func() {
		sess, err = m.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
	require.NoError(t, err)
	require.Greater(t, sess.Len(), 0)
}

func TestConnect(t *testing.T) {
	sim := device.NewSim(device.SimConfig{})
	m, err := New(Config{
		Device:       sim,
		Channels:     []ChannelSpec{{Channel: 0, Kind: convert.EDA}},
		SamplingRate: 100,
	})
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background(), true))
}
