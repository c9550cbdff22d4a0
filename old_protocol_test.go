package main

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestP1(t *testing.T) *OldProtocol {
	t.Helper()
	d := &DiscoveredRadio{
		Protocol:           ProtocolP1,
		Name:               "test",
		Address:            &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1024},
		SupportedReceivers: 1,
		AdcCount:           1,
	}
	radio := NewRadio(d, NewBaselineDSP())
	radio.Tx.Mode = ModeUSB
	return NewOldProtocol(radio)
}

// buildEP6Frame assembles one 512-byte USB frame: sync, control
// bytes, then interleaved per-receiver 24-bit IQ plus a 16-bit mic
// word per sample slot.
func buildEP6Frame(receivers int, fill func(sample int, iq [][2]int32, mic *int16)) []byte {
	frame := make([]byte, p1FrameSize)
	copy(frame, p1Sync[:])

	sampleBytes := receivers*6 + 2
	nsamples := (p1FrameSize - 8) / sampleBytes
	off := 8
	for s := 0; s < nsamples; s++ {
		iq := make([][2]int32, receivers)
		var mic int16
		if fill != nil {
			fill(s, iq, &mic)
		}
		for r := 0; r < receivers; r++ {
			i, q := iq[r][0], iq[r][1]
			frame[off] = byte(i >> 16)
			frame[off+1] = byte(i >> 8)
			frame[off+2] = byte(i)
			frame[off+3] = byte(q >> 16)
			frame[off+4] = byte(q >> 8)
			frame[off+5] = byte(q)
			off += 6
		}
		putI16(frame[off:], mic)
		off += 2
	}
	return frame
}

func TestParseEP6FrameExtractsIQAndMic(t *testing.T) {
	p := newTestP1(t)
	receivers := len(p.radio.Receivers)
	require.Equal(t, 2, receivers, "one local receiver plus the feedback tap")

	frame := buildEP6Frame(receivers, func(s int, iq [][2]int32, mic *int16) {
		if s != 0 {
			return
		}
		iq[0] = [2]int32{8388607, -65536}
		iq[1] = [2]int32{4194304, 0}
		*mic = 1234
	})
	p.parseUSBFrame(frame)

	rx0 := p.radio.Receivers[0]
	assert.InDelta(t, 1.0, rx0.iqInput[0], 1e-9)
	assert.InDelta(t, -65536.0/8388607.0, rx0.iqInput[1], 1e-9)

	fb := p.radio.Receivers[1]
	assert.InDelta(t, 4194304.0/8388607.0, fb.iqInput[0], 1e-9)

	// every sample slot carries one mic word
	sampleBytes := receivers*6 + 2
	nsamples := (p1FrameSize - 8) / sampleBytes
	assert.Equal(t, nsamples, rx0.samples)
	assert.Equal(t, nsamples, p.radio.Tx.samples)
	assert.InDelta(t, 1234.0/32768.0, p.radio.Tx.micInput[0], 1e-9)
}

func TestParseFrameRejectsBadSync(t *testing.T) {
	p := newTestP1(t)
	frame := buildEP6Frame(len(p.radio.Receivers), nil)
	frame[1] = 0x00
	p.parseUSBFrame(frame)
	assert.Equal(t, 0, p.radio.Receivers[0].samples)
	assert.Equal(t, 0, p.radio.Tx.samples)
}

func TestParseFrameControlGroups(t *testing.T) {
	p := newTestP1(t)
	frame := buildEP6Frame(len(p.radio.Receivers), nil)

	// group 0 carries PTT and the ADC overflow bit
	frame[3] = 0x01
	frame[4] = 0x01
	p.parseUSBFrame(frame)
	assert.True(t, p.radio.Tx.RadioPTT)
	assert.True(t, p.radio.ADC[0].Overload)

	// group 2 carries forward/reverse power
	frame[3] = 0x10
	putU16(frame[4:], 400)
	putU16(frame[6:], 100)
	p.parseUSBFrame(frame)
	assert.Greater(t, p.radio.Tx.Swr, 1.0)
}

func TestControlByteRotation(t *testing.T) {
	p := newTestP1(t)
	p.radio.Receivers[0].SampleRate = 384000
	c := make([]byte, 5)

	// group 0: sample rate code and receivers-1 field
	p.fillControlBytes(c)
	assert.Equal(t, byte(0x00), c[0])
	assert.Equal(t, byte(0x03), c[1], "384 kHz rate code")
	nrx := len(p.radio.Receivers) - 1
	assert.Equal(t, byte(nrx<<3)&0x38, c[4]&0x38)

	// group 1: TX frequency
	p.fillControlBytes(c)
	assert.Equal(t, byte(0x02), c[0])
	f := p.radio.VFO[p.radio.TxVfoIndex()].TxFrequency()
	assert.Equal(t, uint32(f), getU32(c[1:]))

	// per-receiver groups, then the rotation wraps
	for rx := 0; rx < len(p.radio.Receivers); rx++ {
		p.fillControlBytes(c)
		assert.Equal(t, byte((2+rx)<<1), c[0])
	}
	p.fillControlBytes(c)
	assert.Equal(t, byte(0x00), c[0], "rotation restarts at group 0")
}

func TestControlBytesCarryMoxBit(t *testing.T) {
	p := newTestP1(t)
	p.radio.Mox = true
	c := make([]byte, 5)
	p.fillControlBytes(c)
	assert.Equal(t, byte(0x01), c[0]&0x01)
}

func TestOutputPacketAssembly(t *testing.T) {
	fake, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { fake.Close() })

	p := newTestP1(t)
	p.addr = fake.LocalAddr().(*net.UDPAddr)
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	p.conn = conn
	p.running.Store(true)
	p.resetFrame()

	// two USB frames of audio fill one Metis datagram
	for s := 0; s < 2*p1SamplesPerFrame; s++ {
		p.AudioSamples(0.5, -0.5)
	}

	buf := make([]byte, 2048)
	fake.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, _, err := fake.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, p1PacketSize, n)

	assert.Equal(t, []byte{0xEF, 0xFE, 0x01, 0x02}, buf[:4])
	assert.Equal(t, uint32(0), getU32(buf[4:8]), "first packet sequence")

	for _, off := range []int{8, 8 + p1FrameSize} {
		assert.Equal(t, p1Sync[:], buf[off:off+3], "USB frame sync at %d", off)
	}

	// first audio sample of the first frame, after sync + control
	assert.Equal(t, sampleToI16(0.5), int16(getU16(buf[16:18])))
	assert.Equal(t, sampleToI16(-0.5), int16(getU16(buf[18:20])))

	// the next packet carries sequence 1
	for s := 0; s < 2*p1SamplesPerFrame; s++ {
		p.AudioSamples(0, 0)
	}
	fake.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, _, err = fake.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, p1PacketSize, n)
	assert.Equal(t, uint32(1), getU32(buf[4:8]))
}
