package main

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
)

// HPSDR protocol 2 wire engine. High rate: the DUC runs at a fixed
// 192 kHz, TX IQ leaves at up to 192 kHz (4:1 against the 48 kHz
// mic stream), and every packet family has its own UDP port.
//
// Two timing contracts protect the radio's TX FIFO:
//   - after a TX->RX edge the engine emits 240 zero IQ samples so
//     stale FIFO contents cannot re-key the PA with a spurious tail,
//   - after an RX->TX edge 1024 zero samples go out before the
//     first mic-derived sample, absorbing scheduling jitter.

const (
	p2DUCRate = 192000

	// port offsets relative to the radio's base port
	p2PortGeneral    = 0  // to radio: general state
	p2PortRxSpecific = 1  // to radio: DDC configuration
	p2PortTxSpecific = 2  // to radio: DUC configuration
	p2PortHighPrio   = 3  // to radio: PTT, frequencies, attenuation
	p2PortSpkrAudio  = 4  // to radio: speaker audio
	p2PortTxIQ       = 5  // to radio: DUC IQ
	p2PortHighPrioIn = 1  // from radio: status
	p2PortMicIn      = 2  // from radio: mic samples
	p2PortRxIQBase   = 11 // from radio: DDC streams, one port per DDC

	p2TxRxZeroSamples = 240
	p2RxTxZeroSamples = 1024

	p2TxIQSamplesPerPacket = 240

	// command packets within one scheduling quantum coalesce into
	// a single send of the latest state
	p2ScheduleQuantum = 10 * time.Millisecond
)

type NewProtocol struct {
	radio *Radio

	addr *net.UDPAddr
	conn *net.UDPConn

	running atomic.Bool
	stop    chan struct{}
	wg      sync.WaitGroup

	rxSeq map[int]uint32

	// sequence numbers per outgoing stream
	seqGeneral   uint32
	seqRxSpec    uint32
	seqTxSpec    uint32
	seqHighPrio  uint32
	seqSpkrAudio uint32
	seqTxIQ      uint32

	// frequency shadow registers pushed by the store
	freqMu sync.Mutex
	rxFreq map[int]int64
	txFreq int64

	// coalesced scheduling flags
	schedMu      sync.Mutex
	wantGeneral  bool
	wantRxSpec   bool
	wantTxSpec   bool
	wantHighPrio bool

	// TX IQ packet assembly
	txMu         sync.Mutex
	txIQBuf      []byte
	txIQCount    int
	pendingZeros int
	lastMox      bool

	// speaker audio packet assembly
	spkrMu    sync.Mutex
	spkrBuf   []byte
	spkrCount int
}

func NewNewProtocol(radio *Radio) *NewProtocol {
	return &NewProtocol{
		radio:   radio,
		addr:    radio.Discovered.Address,
		rxSeq:   make(map[int]uint32),
		rxFreq:  make(map[int]int64),
		txIQBuf: make([]byte, 4+6*p2TxIQSamplesPerPacket),
		spkrBuf: make([]byte, 4+4*64),
	}
}

func (p *NewProtocol) Protocol() RadioProtocol { return ProtocolP2 }

func (p *NewProtocol) Start() error {
	if p.running.Load() {
		return fmt.Errorf("new protocol: already running")
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return fmt.Errorf("new protocol: bind: %w", err)
	}
	p.conn = conn

	// mark the high-rate stream for expedited forwarding
	pc := ipv4.NewConn(conn)
	if err := pc.SetTOS(0xB8); err != nil {
		log.Printf("new protocol: cannot set DSCP EF: %v", err)
	}

	p.stop = make(chan struct{})
	p.running.Store(true)
	p.wg.Add(2)
	go p.readLoop()
	go p.scheduleLoop()

	p.ScheduleGeneral()
	p.ScheduleHighPriority()
	p.ScheduleReceiveSpecific()
	p.ScheduleTransmitSpecific()
	log.Printf("new protocol: started, radio at %v", p.addr)
	return nil
}

func (p *NewProtocol) Stop() {
	if !p.running.Swap(false) {
		return
	}
	// drop PTT and run-bit before closing
	p.sendHighPriority(false)
	close(p.stop)
	if p.conn != nil {
		p.conn.Close()
	}
	p.wg.Wait()

	p.txMu.Lock()
	p.txIQCount = 0
	p.pendingZeros = 0
	p.txMu.Unlock()
	log.Printf("new protocol: stopped and drained")
}

// readLoop dispatches incoming packets by source port.
func (p *NewProtocol) readLoop() {
	defer p.wg.Done()
	buf := make([]byte, 2048)
	for p.running.Load() {
		p.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, from, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if p.running.Load() {
				log.Printf("new protocol: read error: %v", err)
			}
			return
		}
		metricWirePacketsIn.WithLabelValues("P2").Inc()
		port := from.Port - p.addr.Port
		switch {
		case port == p2PortHighPrioIn:
			p.parseHighPriorityStatus(buf[:n])
		case port == p2PortMicIn:
			p.parseMicPacket(buf[:n])
		case port >= p2PortRxIQBase:
			p.parseDDCPacket(port-p2PortRxIQBase, buf[:n])
		}
	}
}

// parseDDCPacket: 4-byte sequence, 8-byte timestamp, bit depth,
// sample count, then 24-bit big-endian IQ pairs.
func (p *NewProtocol) parseDDCPacket(ddc int, buf []byte) {
	if len(buf) < 16 || ddc >= len(p.radio.Receivers) {
		return
	}
	seq := getU32(buf[0:4])
	if last, ok := p.rxSeq[ddc]; ok && seq != last+1 {
		metricSequenceErrors.Inc()
		p.radio.SequenceErrors++
	}
	p.rxSeq[ddc] = seq

	nsamples := int(getU16(buf[14:16]))
	off := 16
	rx := p.radio.Receivers[ddc]
	for s := 0; s < nsamples && off+6 <= len(buf); s++ {
		i := int32(buf[off])<<16 | int32(buf[off+1])<<8 | int32(buf[off+2])
		q := int32(buf[off+3])<<16 | int32(buf[off+4])<<8 | int32(buf[off+5])
		i = i << 8 >> 8
		q = q << 8 >> 8
		rx.AddIQSamples(float64(i)/8388607.0, float64(q)/8388607.0)
		off += 6
	}
}

// parseMicPacket: 4-byte sequence then 16-bit mic samples.
func (p *NewProtocol) parseMicPacket(buf []byte) {
	if len(buf) < 4 {
		return
	}
	for off := 4; off+2 <= len(buf); off += 2 {
		p.radio.Tx.AddMicSample(getI16(buf[off:]))
	}
}

// parseHighPriorityStatus: PTT/dot/dash in byte 4, ADC overloads in
// byte 5, exciter power and forward/reverse in the fixed slots.
func (p *NewProtocol) parseHighPriorityStatus(buf []byte) {
	if len(buf) < 60 {
		return
	}
	p.radio.Tx.RadioPTT = buf[4]&0x01 != 0
	p.radio.ADC[0].Overload = buf[5]&0x01 != 0
	p.radio.ADC[1].Overload = buf[5]&0x02 != 0
	p.radio.Tx.ExciterPower = float64(getU16(buf[6:8]))
	fwd := float64(getU16(buf[14:16]))
	rev := float64(getU16(buf[22:24]))
	p.radio.Tx.SetMeterReadings(fwd, rev)
	fifo := getU16(buf[58:60])
	if fifo&0x8000 != 0 {
		p.radio.TxFifoOverrun = true
		metricTxFifoEvents.WithLabelValues("overrun").Inc()
	}
	if fifo&0x4000 != 0 {
		p.radio.TxFifoUnderrun = true
		metricTxFifoEvents.WithLabelValues("underrun").Inc()
	}
}

// IQSamples is the TX sink at the DUC rate. Zero pre-fill and tail
// padding are injected here so ordering against mic-derived
// samples is strict FIFO.
func (p *NewProtocol) IQSamples(i, q float64) {
	p.txMu.Lock()
	defer p.txMu.Unlock()
	for p.pendingZeros > 0 {
		p.pendingZeros--
		p.putTxIQLocked(0, 0)
	}
	p.putTxIQLocked(i, q)
}

// CWAudio ships the sidetone through the dedicated CW audio slot of
// the speaker stream.
func (p *NewProtocol) CWAudio(s float64) {
	p.AudioSamples(s, s)
}

// AudioSamples is the speaker sink.
func (p *NewProtocol) AudioSamples(left, right float64) {
	p.spkrMu.Lock()
	defer p.spkrMu.Unlock()
	if !p.running.Load() {
		return
	}
	off := 4 + 4*p.spkrCount
	putI16(p.spkrBuf[off:], sampleToI16(left))
	putI16(p.spkrBuf[off+2:], sampleToI16(right))
	p.spkrCount++
	if p.spkrCount >= 64 {
		putU32(p.spkrBuf[0:], p.seqSpkrAudio)
		p.seqSpkrAudio++
		p.send(p2PortSpkrAudio, p.spkrBuf)
		p.spkrCount = 0
	}
}

func (p *NewProtocol) putTxIQLocked(i, q float64) {
	off := 4 + 6*p.txIQCount
	vi := int32(i * 8388607.0)
	vq := int32(q * 8388607.0)
	p.txIQBuf[off] = byte(vi >> 16)
	p.txIQBuf[off+1] = byte(vi >> 8)
	p.txIQBuf[off+2] = byte(vi)
	p.txIQBuf[off+3] = byte(vq >> 16)
	p.txIQBuf[off+4] = byte(vq >> 8)
	p.txIQBuf[off+5] = byte(vq)
	p.txIQCount++
	if p.txIQCount >= p2TxIQSamplesPerPacket {
		putU32(p.txIQBuf[0:], p.seqTxIQ)
		p.seqTxIQ++
		p.send(p2PortTxIQ, p.txIQBuf)
		p.txIQCount = 0
	}
}

// SetPTT handles a keying edge synchronously, on the caller's
// thread: the store invokes it at the same instant the TX state
// flips, so the padding is in place before any mic-derived sample
// can reach IQSamples. On RX->TX the pre-fill is armed; on TX->RX
// the zero tail goes out immediately, since no further TX samples
// will arrive to carry it.
func (p *NewProtocol) SetPTT(on bool) {
	p.txMu.Lock()
	if on != p.lastMox {
		p.lastMox = on
		if on {
			p.pendingZeros = p2RxTxZeroSamples
		} else {
			p.pendingZeros = 0
			for j := 0; j < p2TxRxZeroSamples; j++ {
				p.putTxIQLocked(0, 0)
			}
		}
	}
	p.txMu.Unlock()
	p.ScheduleHighPriority()
}

func (p *NewProtocol) send(portOffset int, pkt []byte) {
	if p.conn == nil || !p.running.Load() {
		return
	}
	dst := &net.UDPAddr{IP: p.addr.IP, Port: p.addr.Port + portOffset}
	if _, err := p.conn.WriteToUDP(pkt, dst); err != nil {
		log.Printf("new protocol: send port+%d: %v", portOffset, err)
		return
	}
	metricWirePacketsOut.WithLabelValues("P2").Inc()
}

// Store-facing scheduling. Requests only mark a flag; the schedule
// loop sends the latest state once per quantum, so bursts of
// changes coalesce into one packet.
func (p *NewProtocol) ScheduleGeneral() {
	p.schedMu.Lock()
	p.wantGeneral = true
	p.schedMu.Unlock()
}

func (p *NewProtocol) ScheduleReceiveSpecific() {
	p.schedMu.Lock()
	p.wantRxSpec = true
	p.schedMu.Unlock()
}

func (p *NewProtocol) ScheduleTransmitSpecific() {
	p.schedMu.Lock()
	p.wantTxSpec = true
	p.schedMu.Unlock()
}

func (p *NewProtocol) ScheduleHighPriority() {
	p.schedMu.Lock()
	p.wantHighPrio = true
	p.schedMu.Unlock()
}

func (p *NewProtocol) SetRxFrequency(rx int, hz int64) {
	p.freqMu.Lock()
	p.rxFreq[rx] = hz
	p.freqMu.Unlock()
	p.ScheduleHighPriority()
}

func (p *NewProtocol) SetTxFrequency(hz int64) {
	p.freqMu.Lock()
	p.txFreq = hz
	p.freqMu.Unlock()
	p.ScheduleHighPriority()
}

func (p *NewProtocol) scheduleLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p2ScheduleQuantum)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.schedMu.Lock()
			g, rs, ts, hp := p.wantGeneral, p.wantRxSpec, p.wantTxSpec, p.wantHighPrio
			p.wantGeneral, p.wantRxSpec, p.wantTxSpec, p.wantHighPrio = false, false, false, false
			p.schedMu.Unlock()

			if g {
				p.sendGeneral()
			}
			if rs {
				p.sendReceiveSpecific()
			}
			if ts {
				p.sendTransmitSpecific()
			}
			if hp {
				p.sendHighPriority(p.radio.Mox || p.radio.Tune)
			}
		}
	}
}

// sendGeneral: packet rates, port plan, filter board selection.
func (p *NewProtocol) sendGeneral() {
	pkt := make([]byte, 60)
	putU32(pkt[0:], p.seqGeneral)
	p.seqGeneral++
	pkt[23] = 0x00 // phase word mode
	pkt[37] = 0x08 // wideband settings off
	p.send(p2PortGeneral, pkt)
}

// sendReceiveSpecific: per-DDC enable, rate and dither/random.
func (p *NewProtocol) sendReceiveSpecific() {
	pkt := make([]byte, 1444)
	putU32(pkt[0:], p.seqRxSpec)
	p.seqRxSpec++
	pkt[4] = byte(len(p.radio.Receivers))
	for i, rx := range p.radio.Receivers {
		if p.radio.ADC[rx.ADC].Dither {
			pkt[5] |= 1 << uint(i)
		}
		if p.radio.ADC[rx.ADC].Random {
			pkt[6] |= 1 << uint(i)
		}
		// enable bit plus rate in kHz
		pkt[7] |= 1 << uint(i)
		base := 17 + 6*i
		pkt[base] = byte(rx.ADC)
		putU16(pkt[base+1:], uint16(rx.SampleRate/1000))
	}
	p.send(p2PortRxSpecific, pkt)
}

// sendTransmitSpecific: DUC configuration, CW keyer offload
// settings, line-in/mic selection.
func (p *NewProtocol) sendTransmitSpecific() {
	pkt := make([]byte, 60)
	putU32(pkt[0:], p.seqTxSpec)
	p.seqTxSpec++
	pkt[4] = 1 // one DUC
	tx := p.radio.Tx
	if p.radio.CwKeyerInternal && modeIsCW(tx.Mode) {
		pkt[5] |= 0x02 // radio-local keying
	}
	pkt[6] = byte(tx.SidetoneVolume * 127.0)
	putU16(pkt[7:], uint16(tx.SidetoneFreq))
	pkt[9] = byte(tx.CWKeyerSpeed)
	pkt[10] = byte(tx.CWRampWidthMs)
	if p.radio.MicBoost {
		pkt[50] |= 0x02
	}
	if p.radio.MicLinein {
		pkt[50] |= 0x01
	}
	p.send(p2PortTxSpecific, pkt)
}

// sendHighPriority: the run bit, PTT and all frequencies. The zero
// padding contracts are NOT handled here: this runs from the
// coalescing scheduler, which has no ordering against the sample
// path, so the edges go through SetPTT instead.
func (p *NewProtocol) sendHighPriority(moxNow bool) {
	pkt := make([]byte, 1444)
	putU32(pkt[0:], p.seqHighPrio)
	p.seqHighPrio++
	pkt[4] = 0x01 // run
	if moxNow {
		pkt[4] |= 0x02
	}

	p.freqMu.Lock()
	for i := 0; i < len(p.radio.Receivers); i++ {
		phase := ddcPhaseWord(p.rxFreq[i])
		putU32(pkt[9+4*i:], phase)
	}
	putU32(pkt[329:], ddcPhaseWord(p.txFreq))
	p.freqMu.Unlock()

	drive := p.radio.Tx.driveLevel()
	pkt[345] = byte(drive * 255.0)

	// per-band open collector outputs
	band := p.radio.Bands[p.radio.VFO[p.radio.TxVfoIndex()].Band]
	if moxNow {
		pkt[1401] = band.OCtx
	} else {
		pkt[1401] = band.OCrx
	}
	pkt[1432] = byte(p.radio.ADC[0].Attenuation)
	pkt[1433] = byte(p.radio.ADC[1].Attenuation)

	p.send(p2PortHighPrio, pkt)
}

// ddcPhaseWord converts a frequency to the 32-bit phase increment
// the FPGA NCO uses (122.88 MHz master clock).
func ddcPhaseWord(hz int64) uint32 {
	const clock = 122880000.0
	return uint32((float64(hz) / clock) * 4294967296.0)
}
