package device

// Live-mode frame layout, as produced by the (r)evolution firmware.
//
// Each frame carries one sample of every started channel, packed
// back-to-front: the trailing byte holds the 4-bit sequence number and the
// CRC4, the byte before it the four digital inputs, then the analog values
// (10 bit for A1..A4, 6 bit for A5/A6) in ascending input order.

// FrameLen returns the wire size in bytes of a live-mode frame carrying
// nChannels analog channels.
func FrameLen(nChannels int) int {
	if nChannels <= 4 {
		return (12 + 10*nChannels + 7) / 8
	}
	return (52 + 6*(nChannels-4) + 7) / 8
}

// crc4 computes the firmware's CRC over the frame with the CRC nibble of the
// trailing byte zeroed.
func crc4(frame []byte) byte {
	var x uint16
	for i, b := range frame {
		v := b
		if i == len(frame)-1 {
			v &= 0xF0
		}
		for bit := 7; bit >= 0; bit-- {
			x <<= 1
			if x&0x10 != 0 {
				x ^= 0x03
			}
			x ^= uint16(v>>uint(bit)) & 0x01
		}
	}
	return byte(x & 0x0F)
}

// decodeFrame unpacks a raw frame of nChannels analog channels.
// A CRC mismatch is indistinguishable from a desynchronized or dying link,
// so it surfaces as ErrContactingDevice.
func decodeFrame(buf []byte, nChannels int) (Frame, error) {
	n := len(buf)
	if n != FrameLen(nChannels) {
		return Frame{}, ErrContactingDevice
	}
	if buf[n-1]&0x0F != crc4(buf) {
		return Frame{}, ErrContactingDevice
	}

	f := Frame{
		Seq:    int(buf[n-1] >> 4),
		Analog: make([]int, nChannels),
	}
	for i := 0; i < 4; i++ {
		f.Digital[i] = buf[n-2]>>(7-uint(i))&0x01 == 0x01
	}
	if nChannels > 0 {
		f.Analog[0] = int(buf[n-2]&0x0F)<<6 | int(buf[n-3]>>2)
	}
	if nChannels > 1 {
		f.Analog[1] = int(buf[n-3]&0x03)<<8 | int(buf[n-4])
	}
	if nChannels > 2 {
		f.Analog[2] = int(buf[n-5])<<2 | int(buf[n-6]>>6)
	}
	if nChannels > 3 {
		f.Analog[3] = int(buf[n-6]&0x3F)<<4 | int(buf[n-7]>>4)
	}
	if nChannels > 4 {
		f.Analog[4] = int(buf[n-7]&0x0F)<<2 | int(buf[n-8]>>6)
	}
	if nChannels > 5 {
		f.Analog[5] = int(buf[n-8] & 0x3F)
	}
	return f, nil
}

// encodeFrame packs a frame into its wire form. Used by the simulated
// device and by the frame tests; the inverse of decodeFrame.
func encodeFrame(f Frame) []byte {
	nChannels := len(f.Analog)
	n := FrameLen(nChannels)
	buf := make([]byte, n)

	buf[n-1] = byte(f.Seq&0x0F) << 4
	for i := 0; i < 4; i++ {
		if f.Digital[i] {
			buf[n-2] |= 0x01 << (7 - uint(i))
		}
	}
	if nChannels > 0 {
		buf[n-2] |= byte(f.Analog[0]>>6) & 0x0F
		buf[n-3] |= byte(f.Analog[0]&0x3F) << 2
	}
	if nChannels > 1 {
		buf[n-3] |= byte(f.Analog[1]>>8) & 0x03
		buf[n-4] = byte(f.Analog[1])
	}
	if nChannels > 2 {
		buf[n-5] = byte(f.Analog[2] >> 2)
		buf[n-6] |= byte(f.Analog[2]&0x03) << 6
	}
	if nChannels > 3 {
		buf[n-6] |= byte(f.Analog[3]>>4) & 0x3F
		buf[n-7] |= byte(f.Analog[3]&0x0F) << 4
	}
	if nChannels > 4 {
		buf[n-7] |= byte(f.Analog[4]>>2) & 0x0F
		buf[n-8] |= byte(f.Analog[4]&0x03) << 6
	}
	if nChannels > 5 {
		buf[n-8] |= byte(f.Analog[5]) & 0x3F
	}

	buf[n-1] |= crc4(buf)
	return buf
}
