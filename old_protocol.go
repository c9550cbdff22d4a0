package main

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// HPSDR protocol 1 wire engine. Low rate: the DDC streams run at
// 48/96/192/384 kHz and everything travels in 1032-byte Metis
// datagrams holding two 512-byte USB frames. One mic sample is
// tied 1:1 to two IQ output samples, so the output framing paces
// itself off the speaker/TX stream.

const (
	p1FrameSize       = 512
	p1PacketSize      = 1032
	p1SamplesPerFrame = 63 // output samples per USB frame
	p1MaxSampleRate   = 384000
)

// USB frame sync pattern.
var p1Sync = [3]byte{0x7F, 0x7F, 0x7F}

type OldProtocol struct {
	radio *Radio

	addr *net.UDPAddr
	conn *net.UDPConn
	tcp  net.Conn // optional TCP fallback

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup

	rxSeq     uint32
	rxSeqInit bool
	txSeq     uint32

	// Output frame assembly; protected by outMu so the TX IQ path
	// and the RX speaker path interleave whole samples only.
	outMu      sync.Mutex
	outFrame   [p1FrameSize]byte
	outSamples int
	outOffset  int
	outPending []byte // first of the two USB frames of a packet
	c0Index    int

	// Last keying state seen, to drain on edges.
	lastMox bool
}

func NewOldProtocol(radio *Radio) *OldProtocol {
	return &OldProtocol{
		radio: radio,
		addr:  radio.Discovered.Address,
	}
}

func (p *OldProtocol) Protocol() RadioProtocol { return ProtocolP1 }

// Start opens the socket, sends the start command and launches the
// reader. A reconfiguration that changes the number of receivers,
// PureSignal or dither must stop first: the engine refuses a hot
// restart.
func (p *OldProtocol) Start() error {
	if p.running.Load() {
		return fmt.Errorf("old protocol: already running, stop before reconfiguring")
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return fmt.Errorf("old protocol: bind: %w", err)
	}
	p.conn = conn
	p.stop = make(chan struct{})
	p.rxSeqInit = false
	p.txSeq = 0
	p.outSamples = 0
	p.outPending = nil
	p.resetFrame()

	p.running.Store(true)
	p.wg.Add(1)
	go p.readLoop()

	// Metis start: 0xEF 0xFE 0x04 with bit 0 = IQ stream enable.
	start := make([]byte, 64)
	start[0] = 0xEF
	start[1] = 0xFE
	start[2] = 0x04
	start[3] = 0x01
	if _, err := p.conn.WriteToUDP(start, p.addr); err != nil {
		p.Stop()
		return fmt.Errorf("old protocol: start command: %w", err)
	}
	log.Printf("old protocol: started, radio at %v", p.addr)
	return nil
}

// Stop sends the stop command and fully drains the engine.
func (p *OldProtocol) Stop() {
	if !p.running.Swap(false) {
		return
	}
	stopCmd := make([]byte, 64)
	stopCmd[0] = 0xEF
	stopCmd[1] = 0xFE
	stopCmd[2] = 0x04
	if p.conn != nil {
		p.conn.WriteToUDP(stopCmd, p.addr)
	}
	close(p.stop)
	if p.conn != nil {
		p.conn.Close()
	}
	p.wg.Wait()

	p.outMu.Lock()
	p.outSamples = 0
	p.outPending = nil
	p.resetFrame()
	p.outMu.Unlock()
	log.Printf("old protocol: stopped and drained")
}

// readLoop parses incoming Metis datagrams. A fatal read error
// returns the loop to idle; the controller re-arms.
func (p *OldProtocol) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 2048)
	for p.running.Load() {
		p.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if p.running.Load() {
				log.Printf("old protocol: read error: %v", err)
			}
			return
		}
		if n != p1PacketSize || buf[0] != 0xEF || buf[1] != 0xFE || buf[2] != 0x01 {
			continue
		}
		// endpoint 6 carries the DDC data
		if buf[3] != 0x06 {
			continue
		}
		metricWirePacketsIn.WithLabelValues("P1").Inc()

		seq := getU32(buf[4:8])
		if p.rxSeqInit && seq != p.rxSeq+1 {
			metricSequenceErrors.Inc()
			p.radio.SequenceErrors++
		}
		p.rxSeq = seq
		p.rxSeqInit = true

		p.parseUSBFrame(buf[8 : 8+p1FrameSize])
		p.parseUSBFrame(buf[8+p1FrameSize : 8+2*p1FrameSize])
	}
}

// parseUSBFrame extracts control bytes, per-receiver 24-bit IQ and
// 16-bit mic samples from one 512-byte EP6 frame.
func (p *OldProtocol) parseUSBFrame(frame []byte) {
	if frame[0] != p1Sync[0] || frame[1] != p1Sync[1] || frame[2] != p1Sync[2] {
		metricSequenceErrors.Inc()
		return
	}
	c0 := frame[3]
	c1 := frame[4]

	// C0 0: PTT/dash/dot flags plus overflow in C1 bit 0
	if c0&0xF8 == 0 {
		p.radio.ADC[0].Overload = c1&0x01 != 0
		p.radio.Tx.RadioPTT = c0&0x01 != 0
	}
	// C0 0x08 >> 3 == 1: exciter power
	if c0>>3 == 1 {
		p.radio.Tx.ExciterPower = float64(getU16(frame[4:6]))
	}
	// C0 0x10 >> 3 == 2: forward/reverse power for SWR
	if c0>>3 == 2 {
		fwd := float64(getU16(frame[4:6]))
		rev := float64(getU16(frame[6:8]))
		p.radio.Tx.SetMeterReadings(fwd, rev)
	}

	receivers := len(p.radio.Receivers)
	sampleBytes := receivers*6 + 2
	nsamples := (p1FrameSize - 8) / sampleBytes

	off := 8
	for s := 0; s < nsamples; s++ {
		for r := 0; r < receivers; r++ {
			i := int32(frame[off])<<16 | int32(frame[off+1])<<8 | int32(frame[off+2])
			q := int32(frame[off+3])<<16 | int32(frame[off+4])<<8 | int32(frame[off+5])
			// sign extend 24 bits
			i = i << 8 >> 8
			q = q << 8 >> 8
			rx := p.radio.Receivers[r]
			rx.AddIQSamples(float64(i)/8388607.0, float64(q)/8388607.0)
			off += 6
		}
		mic := int16(getU16(frame[off : off+2]))
		off += 2
		p.radio.Tx.AddMicSample(mic)
	}
}

// IQSamples is the TX sink: one DUC IQ pair plus the sidetone
// sample that P1 ships in the same output slot.
func (p *OldProtocol) IQSamples(i, q, sidetone float64) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	si := sampleToI16(sidetone)
	p.putOutputSample(si, si, sampleToI16(i), sampleToI16(q))
}

// AudioSamples is the RX speaker sink used while receiving.
func (p *OldProtocol) AudioSamples(left, right float64) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	p.putOutputSample(sampleToI16(left), sampleToI16(right), 0, 0)
}

// putOutputSample appends one 8-byte output sample (audio L/R plus
// IQ) to the current USB frame and ships the packet when two
// frames are complete. Caller holds outMu.
func (p *OldProtocol) putOutputSample(l, r, i, q int16) {
	if !p.running.Load() {
		return
	}
	off := p.outOffset
	putI16(p.outFrame[off:], l)
	putI16(p.outFrame[off+2:], r)
	putI16(p.outFrame[off+4:], i)
	putI16(p.outFrame[off+6:], q)
	p.outOffset += 8
	p.outSamples++

	if p.outSamples >= p1SamplesPerFrame {
		frame := make([]byte, p1FrameSize)
		copy(frame, p.outFrame[:])
		p.resetFrame()
		p.outSamples = 0

		if p.outPending == nil {
			p.outPending = frame
			return
		}
		p.sendPacket(p.outPending, frame)
		p.outPending = nil
	}
}

// resetFrame writes the sync and the next round-robin command
// group into the frame head.
func (p *OldProtocol) resetFrame() {
	copy(p.outFrame[:3], p1Sync[:])
	p.fillControlBytes(p.outFrame[3:8])
	p.outOffset = 8
}

// fillControlBytes encodes one C0-addressed command group. The
// groups rotate so the complete radio state is refreshed every few
// frames, exactly as fast as the output stream runs.
func (p *OldProtocol) fillControlBytes(c []byte) {
	mox := byte(0)
	if p.radio.Mox {
		mox = 1
	}
	for i := range c {
		c[i] = 0
	}

	switch p.c0Index {
	case 0:
		// group 0: sample rate, receiver count, duplex
		c[0] = 0x00 | mox
		switch p.radio.Receivers[0].SampleRate {
		case 48000:
			c[1] = 0x00
		case 96000:
			c[1] = 0x01
		case 192000:
			c[1] = 0x02
		case 384000:
			c[1] = 0x03
		}
		nrx := len(p.radio.Receivers) - 1 // field is receivers-1
		c[4] = byte(nrx<<3) & 0x38
		if p.radio.Duplex {
			c[4] |= 0x04
		}
	case 1:
		// group 1 (C0 addr 1): TX frequency
		c[0] = 0x02 | mox
		f := p.radio.VFO[p.radio.TxVfoIndex()].TxFrequency()
		putU32(c[1:], uint32(f))
	default:
		// groups 2..: per-receiver frequency
		rx := p.c0Index - 2
		c[0] = byte((2+rx)<<1) | mox
		v := p.radio.RxVfoIndex(rx)
		putU32(c[1:], uint32(p.radio.VFO[v].RxFrequency()))
	}

	p.c0Index++
	if p.c0Index >= 2+len(p.radio.Receivers) {
		p.c0Index = 0
	}
}

// sendPacket wraps two USB frames into one Metis datagram.
func (p *OldProtocol) sendPacket(f1, f2 []byte) {
	pkt := make([]byte, p1PacketSize)
	pkt[0] = 0xEF
	pkt[1] = 0xFE
	pkt[2] = 0x01
	pkt[3] = 0x02 // endpoint 2
	putU32(pkt[4:], p.txSeq)
	p.txSeq++
	copy(pkt[8:], f1)
	copy(pkt[8+p1FrameSize:], f2)

	if _, err := p.conn.WriteToUDP(pkt, p.addr); err != nil {
		log.Printf("old protocol: send: %v", err)
		return
	}
	metricWirePacketsOut.WithLabelValues("P1").Inc()
}

// The store-facing scheduling interface. P1 has no dedicated
// command packets: state changes ride in the next control-byte
// rotation, so the schedule hooks only need to retune promptly.

// SetPTT: the keying bit travels in C0 of every output frame and
// the firmware drains its own FIFO on the edge, so there is no
// padding to inject here.
func (p *OldProtocol) SetPTT(on bool) {
	p.outMu.Lock()
	p.lastMox = on
	p.outMu.Unlock()
}

func (p *OldProtocol) SetRxFrequency(rx int, hz int64) {}
func (p *OldProtocol) SetTxFrequency(hz int64)         {}
func (p *OldProtocol) ScheduleGeneral()                {}
func (p *OldProtocol) ScheduleHighPriority()           {}
func (p *OldProtocol) ScheduleReceiveSpecific()        {}
func (p *OldProtocol) ScheduleTransmitSpecific()       {}
