package device

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePort scripts the device side of the link: reads come from a
// pre-filled buffer, writes are captured for command inspection.
type fakePort struct {
	in     bytes.Buffer
	out    bytes.Buffer
	closed bool
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }

func newFakeDevice() (*SerialDevice, *fakePort) {
	port := &fakePort{}
	return &SerialDevice{port: port, address: "fake"}, port
}

func TestSerialDevice_Version(t *testing.T) {
	d, port := newFakeDevice()
	port.in.WriteString("BITalino_v5.2\n")

	v, err := d.Version()
	require.NoError(t, err)
	require.Equal(t, "BITalino_v5.2", v)
	require.Equal(t, []byte{cmdVersion}, port.out.Bytes())
}

func TestSerialDevice_State(t *testing.T) {
	d, port := newFakeDevice()

	raw := make([]byte, 16)
	// A1=300, A2=512, battery=630, threshold=10, I1 and I3 high
	raw[0], raw[1] = 0x2C, 0x01
	raw[2], raw[3] = 0x00, 0x02
	raw[12], raw[13] = 0x76, 0x02
	raw[14] = 10
	raw[15] = 0xA0
	raw[15] |= crc4(raw)
	port.in.Write(raw)

	st, err := d.State()
	require.NoError(t, err)
	require.Equal(t, 300, st.Analog[0])
	require.Equal(t, 512, st.Analog[1])
	require.Equal(t, 630, st.Battery)
	require.Equal(t, 10, st.BatteryThreshold)
	require.Equal(t, [4]bool{true, false, true, false}, st.Digital)
	require.Equal(t, []byte{cmdState}, port.out.Bytes())
}

func TestSerialDevice_State_BadCRC(t *testing.T) {
	d, port := newFakeDevice()
	raw := make([]byte, 16)
	raw[15] = crc4(raw) ^ 0x01
	port.in.Write(raw)

	_, err := d.State()
	require.ErrorIs(t, err, ErrContactingDevice)
}

func TestSerialDevice_StartCommands(t *testing.T) {
	d, port := newFakeDevice()

	err := d.Start(1000, []Channel{0, 2})
	require.NoError(t, err)
	// rate code 3 for 1000 Hz, then start with mask for A1|A3
	require.Equal(t, []byte{3<<6 | 0x03, 0b00010100 | 0x01}, port.out.Bytes())

	// a second start must be rejected while in live mode
	require.ErrorIs(t, d.Start(1000, []Channel{0}), ErrDeviceNotIdle)
	require.ErrorIs(t, func() error { _, err := d.Version(); return err }(), ErrDeviceNotIdle)
}

func TestSerialDevice_StartValidation(t *testing.T) {
	d, _ := newFakeDevice()

	require.ErrorIs(t, d.Start(42, []Channel{0}), ErrInvalidParameter)
	require.ErrorIs(t, d.Start(100, nil), ErrInvalidParameter)
	require.ErrorIs(t, d.Start(100, []Channel{0, 0}), ErrInvalidParameter)
	require.ErrorIs(t, d.Start(100, []Channel{7}), ErrInvalidParameter)
}

func TestSerialDevice_ReadFrames(t *testing.T) {
	d, port := newFakeDevice()
	require.NoError(t, d.Start(100, []Channel{0, 1}))
	port.out.Reset()

	want := []Frame{
		{Seq: 0, Analog: []int{10, 20}},
		{Seq: 1, Analog: []int{11, 21}},
		{Seq: 2, Digital: [4]bool{true}, Analog: []int{12, 22}},
	}
	for _, f := range want {
		port.in.Write(encodeFrame(f))
	}

	got, err := d.Read(3)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSerialDevice_ReadRequiresLiveMode(t *testing.T) {
	d, _ := newFakeDevice()
	_, err := d.Read(10)
	require.ErrorIs(t, err, ErrNotInAcquisition)
	require.ErrorIs(t, d.Stop(), ErrNotInAcquisition)
}

func TestSerialDevice_ReadStalledLink(t *testing.T) {
	d, _ := newFakeDevice()
	require.NoError(t, d.Start(100, []Channel{0}))

	// no bytes queued: the link is gone
	_, err := d.Read(1)
	require.ErrorIs(t, err, ErrContactingDevice)
}

func TestSerialDevice_StopAndClose(t *testing.T) {
	d, port := newFakeDevice()
	require.NoError(t, d.Start(100, []Channel{0}))
	port.out.Reset()

	require.NoError(t, d.Stop())
	require.Equal(t, []byte{cmdStop}, port.out.Bytes())

	require.NoError(t, d.Close())
	require.True(t, port.closed)
}

func TestSerialDevice_Battery(t *testing.T) {
	d, port := newFakeDevice()
	require.NoError(t, d.Battery(10))
	require.Equal(t, []byte{10 << 2}, port.out.Bytes())

	require.ErrorIs(t, d.Battery(64), ErrInvalidParameter)
	require.ErrorIs(t, d.Battery(-1), ErrInvalidParameter)
}

func TestSim_Lifecycle(t *testing.T) {
	s := NewSim(SimConfig{})

	v, err := s.Version()
	require.NoError(t, err)
	require.NotEmpty(t, v)

	require.NoError(t, s.Start(100, []Channel{1, 0}))

	frames, err := s.Read(32)
	require.NoError(t, err)
	require.Len(t, frames, 32)
	for i, f := range frames {
		require.Equal(t, i%16, f.Seq)
		require.Len(t, f.Analog, 2)
		for _, v := range f.Analog {
			require.GreaterOrEqual(t, v, 0)
			require.Less(t, v, 1024)
		}
	}

	require.NoError(t, s.Stop())
	require.NoError(t, s.Close())
}

func TestSim_FailStarts(t *testing.T) {
	s := NewSim(SimConfig{FailStarts: 1})
	require.ErrorIs(t, s.Start(100, []Channel{0}), ErrDeviceNotIdle)
	require.NoError(t, s.Start(100, []Channel{0}))
}

func TestSim_DropAfter(t *testing.T) {
	s := NewSim(SimConfig{DropAfter: 5})
	require.NoError(t, s.Start(100, []Channel{0}))

	_, err := s.Read(10)
	require.ErrorIs(t, err, ErrContactingDevice)
}
