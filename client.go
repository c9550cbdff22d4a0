package main

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// Remote client: connects to a server, mirrors its state store into
// a sparse local copy and issues commands. The client never touches
// the DSP; spectrum and audio arrive pre-rendered.

// Connect failures carry precise causes so the dialog can say what
// actually went wrong.
var (
	ErrConnectFailed  = errors.New("connect failed")
	ErrConnectTimeout = errors.New("connect timed out")
	ErrBadHost        = errors.New("no such host")
	ErrWrongPassword  = errors.New("wrong password")
)

const (
	clientConnectTimeout = 10 * time.Second
	vfoFlushInterval     = 100 * time.Millisecond
	heartbeatTicks       = 15 // heartbeat every 15th VFO timer tick
)

type RemoteClient struct {
	radio *Radio
	t     *Transport

	running  bool
	runMu    sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Started fires once the snapshot terminator arrives.
	Started chan struct{}

	// VFO motion coalescing: wheel steps and drag moves accumulate
	// under the mutex and a 100 ms timer flushes them as single
	// CMD_STEP / CMD_MOVE messages.
	accMu    sync.Mutex
	accSteps [2]int
	accHz    [2]int64
	accRound [2]bool

	// Audio sink for INFO_RXAUDIO frames.
	AudioSink func(rx int, samples []int16)
	// Redraw hook for the UI task.
	OnRedraw func(rx int)
}

// ConnectRemote dials, authenticates and ingests the snapshot. The
// radio passed in is a sparse store the caller allocated.
func ConnectRemote(radio *Radio, host string, port int, password string) (*RemoteClient, error) {
	d := net.Dialer{Timeout: clientConnectTimeout}
	conn, err := d.Dial("tcp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return nil, fmt.Errorf("%w: %s", ErrBadHost, host)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, host)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	c := &RemoteClient{
		radio:   radio,
		t:       NewTransport(conn),
		stop:    make(chan struct{}),
		Started: make(chan struct{}),
	}

	if err := c.authenticate(password); err != nil {
		c.t.Close()
		return nil, err
	}

	c.runMu.Lock()
	c.running = true
	c.runMu.Unlock()

	c.wg.Add(2)
	go c.receiveLoop()
	go c.vfoTimer()
	log.Printf("client: connected to %s:%d", host, port)
	return c, nil
}

// authenticate mirrors the server handshake: read the 64-byte
// nonce, answer SHA-256(nonce || version || password), read the
// verdict byte.
func (c *RemoteClient) authenticate(password string) error {
	var nonce [64]byte
	if err := c.t.ReadRaw(nonce[:]); err != nil {
		return fmt.Errorf("%w: reading nonce: %v", ErrConnectFailed, err)
	}

	digest := authDigest(nonce[:], ClientServerVersion, password)
	if err := c.t.SendRaw(digest[:]); err != nil {
		return fmt.Errorf("%w: sending response: %v", ErrConnectFailed, err)
	}

	var verdict [1]byte
	if err := c.t.ReadRaw(verdict[:]); err != nil {
		return fmt.Errorf("%w: reading verdict: %v", ErrConnectFailed, err)
	}
	if verdict[0] != 0x7F {
		return ErrWrongPassword
	}
	return nil
}

func (c *RemoteClient) Close() {
	c.runMu.Lock()
	c.running = false
	c.runMu.Unlock()
	c.stopOnce.Do(func() { close(c.stop) })
	c.t.Close()
	c.wg.Wait()
}

func (c *RemoteClient) isRunning() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.running
}

// receiveLoop interprets server messages into the sparse store.
func (c *RemoteClient) receiveLoop() {
	defer c.wg.Done()
	for {
		h, body, err := c.t.ReadMessage()
		if err != nil {
			if c.isRunning() {
				log.Printf("client: connection lost: %v", err)
			}
			return
		}
		c.handleInfo(h, body)
	}
}

func (c *RemoteClient) handleInfo(h Header, body []byte) {
	r := c.radio
	switch h.Type {
	case CmdHeartbeat:

	case InfoRadio:
		if rd, ok := decodeRadioData(body); ok {
			r.Lock()
			applyRadioData(r, &rd)
			r.Unlock()
		}

	case InfoADC:
		if ad, ok := decodeADCData(body); ok {
			r.Lock()
			applyADCData(r, &ad)
			r.Unlock()
		}

	case InfoDAC:
		if dd, ok := decodeDACData(body); ok {
			r.Lock()
			r.DAC.Antenna = int(dd.Antenna)
			r.DAC.Gain = dd.Gain
			r.Unlock()
		}

	case CmdFilterVar:
		SetVarFilter(int(h.B1), int(h.B2), int(int16(h.S1)), int(int16(h.S2)))

	case InfoReceiver:
		if rd, ok := decodeReceiverData(body); ok {
			r.Lock()
			if int(rd.ID) < len(r.Receivers) {
				applyReceiverData(r.Receivers[rd.ID], &rd)
			}
			r.Unlock()
		}

	case InfoTransmitter:
		if td, ok := decodeTransmitterData(body); ok {
			r.Lock()
			applyTransmitterData(r.Tx, &td)
			r.UseRxFilter = td.UseRxFilter
			r.Unlock()
		}

	case InfoVFO:
		if vd, ok := decodeVFOData(body); ok && int(vd.VFO) < 2 {
			r.Lock()
			applyVFOData(&r.VFO[vd.VFO], &vd)
			r.Unlock()
			c.redraw(-1)
		}

	case InfoBand:
		if bd, ok := decodeBandData(body); ok && int(bd.Band) < len(r.Bands) {
			r.Lock()
			applyBandData(r.Bands[bd.Band], &bd)
			r.Unlock()
		}

	case InfoBandstack:
		if sd, ok := decodeBandstackData(body); ok && int(sd.Band) < len(r.Bands) {
			r.Lock()
			applyBandstackData(r.Bands[sd.Band], &sd)
			r.Unlock()
		}

	case InfoMemory:
		if md, ok := decodeMemoryData(body); ok && int(md.Index) < MemorySlots {
			r.Lock()
			applyMemoryData(&r.Memory[md.Index], &md)
			r.Unlock()
		}

	case CmdStartRadio:
		select {
		case <-c.Started:
		default:
			close(c.Started)
		}

	case InfoSpectrum:
		c.handleSpectrum(body)

	case InfoRxAudio:
		if a, ok := decodeRxAudioData(body); ok && c.AudioSink != nil {
			c.AudioSink(int(a.RX), a.Samples)
		}

	case InfoDisplay:
		if dd, ok := decodeDisplayData(body); ok {
			r.Lock()
			r.ADC[0].Overload = dd.Adc0Overload
			r.ADC[1].Overload = dd.Adc1Overload
			r.Tx.HighSwrSeen = dd.HighSwrSeen
			r.TxFifoOverrun = dd.TxFifoOverrun
			r.TxFifoUnderrun = dd.TxFifoUnderrun
			r.TxInhibit = dd.TxInhibit
			r.SequenceErrors = int(dd.SequenceErrors)
			r.Unlock()
		}

	case InfoPS:
		// PureSignal status display only; nothing to mirror yet

	default:
		log.Printf("client: unhandled info type %d", h.Type)
	}
}

// handleSpectrum de-serialises the variable-length panadapter frame
// into the receiver's pixel buffer under its display mutex, then
// schedules a redraw on the UI task.
func (c *RemoteClient) handleSpectrum(body []byte) {
	sd, ok := decodeSpectrumData(body)
	if !ok {
		log.Printf("client: bad spectrum frame, %d bytes", len(body))
		return
	}

	r := c.radio
	r.Lock()
	r.VFO[VfoA].Frequency = sd.VfoAFreq
	r.VFO[VfoB].Frequency = sd.VfoBFreq
	r.VFO[VfoA].CtunFrequency = sd.VfoACtun
	r.VFO[VfoB].CtunFrequency = sd.VfoBCtun
	r.VFO[VfoA].Offset = sd.VfoAOffset
	r.VFO[VfoB].Offset = sd.VfoBOffset
	r.Tx.Swr = sd.Swr
	r.Tx.Alc = sd.Alc
	r.Tx.Fwd = sd.Fwd
	r.Unlock()

	if int(sd.ID) >= len(r.Receivers) {
		return
	}
	rx := r.Receivers[sd.ID]

	rx.displayMu.Lock()
	if len(rx.PixelSamples) < int(sd.Width) {
		rx.PixelSamples = make([]float32, sd.Width)
	}
	for i := 0; i < int(sd.Width); i++ {
		rx.PixelSamples[i] = float32(int16(sd.Sample[i])) / 16.0
	}
	rx.Meter = sd.Meter
	rx.displayMu.Unlock()

	c.redraw(int(sd.ID))
}

func (c *RemoteClient) redraw(rx int) {
	if c.OnRedraw != nil {
		c.OnRedraw(rx)
	}
}

// vfoTimer flushes accumulated VFO motion every 100 ms and rides
// the heartbeat on every 15th tick.
func (c *RemoteClient) vfoTimer() {
	defer c.wg.Done()
	ticker := time.NewTicker(vfoFlushInterval)
	defer ticker.Stop()
	count := 0
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			count++
			if count >= heartbeatTicks {
				c.t.SendHeader(CmdHeartbeat, 0, 0, 0, 0)
				count = 0
			}

			c.accMu.Lock()
			for v := 0; v < 2; v++ {
				if c.accSteps[v] != 0 {
					steps := c.accSteps[v]
					c.accSteps[v] = 0
					c.t.SendHeader(CmdStep, uint8(v), 0, uint16(int16(steps)), 0)
				}
				if c.accHz[v] != 0 || c.accRound[v] {
					hz := c.accHz[v]
					round := c.accRound[v]
					c.accHz[v] = 0
					c.accRound[v] = false
					b2 := uint8(0)
					if round {
						b2 = 1
					}
					cmd := U64Command{V: hz}
					c.t.Send(Header{Type: CmdMove, B1: uint8(v), B2: b2}, cmd.encode())
				}
			}
			c.accMu.Unlock()
		}
	}
}

// UpdateVfoStep / UpdateVfoMove are the UI-facing accumulation
// entry points.
func (c *RemoteClient) UpdateVfoStep(v, steps int) {
	c.accMu.Lock()
	c.accSteps[v] += steps
	c.accMu.Unlock()
}

func (c *RemoteClient) UpdateVfoMove(v int, hz int64, round bool) {
	c.accMu.Lock()
	c.accHz[v] += hz
	c.accRound[v] = round
	c.accMu.Unlock()
}

// Header-only command senders. b1/b2/s1/s2 carry the payload.
func (c *RemoteClient) SendAGC(rx, agc int) error {
	return c.t.SendHeader(CmdAGC, uint8(rx), uint8(agc), 0, 0)
}

func (c *RemoteClient) SendMox(on bool) error {
	return c.t.SendHeader(CmdPTT, boolByte(on), 0, 0, 0)
}

func (c *RemoteClient) SendTune(on bool) error {
	return c.t.SendHeader(CmdTune, boolByte(on), 0, 0, 0)
}

func (c *RemoteClient) SendSplit(on bool) error {
	return c.t.SendHeader(CmdSplit, boolByte(on), 0, 0, 0)
}

func (c *RemoteClient) SendSat(mode int) error {
	return c.t.SendHeader(CmdSat, uint8(mode), 0, 0, 0)
}

func (c *RemoteClient) SendMode(v, mode int) error {
	return c.t.SendHeader(CmdMode, uint8(v), uint8(mode), 0, 0)
}

func (c *RemoteClient) SendFilter(v, filter int) error {
	return c.t.SendHeader(CmdFilterSel, uint8(v), uint8(filter), 0, 0)
}

func (c *RemoteClient) SendBand(v, band int) error {
	return c.t.SendHeader(CmdBandSel, uint8(v), uint8(band), 0, 0)
}

func (c *RemoteClient) SendCTUN(v int, on bool) error {
	return c.t.SendHeader(CmdCTUN, uint8(v), boolByte(on), 0, 0)
}

func (c *RemoteClient) SendLock(on bool) error {
	return c.t.SendHeader(CmdLock, boolByte(on), 0, 0, 0)
}

func (c *RemoteClient) SendZoom(rx, zoom int) error {
	return c.t.SendHeader(CmdZoom, uint8(rx), uint8(zoom), 0, 0)
}

func (c *RemoteClient) SendPan(rx, pan int) error {
	return c.t.SendHeader(CmdPan, uint8(rx), 0, uint16(int16(pan)), 0)
}

func (c *RemoteClient) SendSpectrum(slot int, on bool) error {
	return c.t.SendHeader(CmdSpectrum, uint8(slot), boolByte(on), 0, 0)
}

func (c *RemoteClient) SendStore(index int) error {
	return c.t.SendHeader(CmdStore, uint8(index), 0, 0, 0)
}

func (c *RemoteClient) SendRecall(index int) error {
	return c.t.SendHeader(CmdRecall, uint8(index), 0, 0, 0)
}

func (c *RemoteClient) SendVfoAtoB() error { return c.t.SendHeader(CmdVfoAtoB, 0, 0, 0, 0) }
func (c *RemoteClient) SendVfoBtoA() error { return c.t.SendHeader(CmdVfoBtoA, 0, 0, 0, 0) }
func (c *RemoteClient) SendVfoSwap() error { return c.t.SendHeader(CmdVfoSwap, 0, 0, 0, 0) }

func (c *RemoteClient) SendCompressor(on bool, level float64) error {
	return c.t.SendHeader(CmdCompressor, boolByte(on), 0, uint16(int16(level*10.0)), 0)
}

func (c *RemoteClient) SendDexp(on, filter bool) error {
	return c.t.SendHeader(CmdDexp, boolByte(on), boolByte(filter), 0, 0)
}

func (c *RemoteClient) SendFilterBoard(board int) error {
	return c.t.SendHeader(CmdFilterBoard, uint8(board), 0, 0, 0)
}

func (c *RemoteClient) SendMeter(rx int, peak bool) error {
	return c.t.SendHeader(CmdMeter, uint8(rx), boolByte(peak), 0, 0)
}

func (c *RemoteClient) SendPaTrim(index int, value float64) error {
	return c.t.SendHeader(CmdPaTrim, uint8(index), 0, uint16(int16(value*10.0)), 0)
}

func (c *RemoteClient) SendPreemp(on bool) error {
	return c.t.SendHeader(CmdPreemp, boolByte(on), 0, 0, 0)
}

func (c *RemoteClient) SendRegion(region int) error {
	return c.t.SendHeader(CmdRegion, uint8(region), 0, 0, 0)
}

// SendRxFFT / SendTxFFT carry log2 of the analyzer size in s1.
func (c *RemoteClient) SendRxFFT(rx, size int) error {
	return c.t.SendHeader(CmdRxFFT, uint8(rx), 0, uint16(log2Size(size)), 0)
}

func (c *RemoteClient) SendTxFFT(size int) error {
	return c.t.SendHeader(CmdTxFFT, 0, 0, uint16(log2Size(size)), 0)
}

func log2Size(size int) int {
	n := 0
	for size > 1 {
		size >>= 1
		n++
	}
	return n
}

func (c *RemoteClient) SendTwoTone(on bool) error {
	return c.t.SendHeader(CmdTwoTone, boolByte(on), 0, 0, 0)
}

func (c *RemoteClient) SendCW(down bool, wait int) error {
	return c.t.SendHeader(CmdCW, 0, boolByte(down), uint16(wait), 0)
}

// Typed-body command senders.
func (c *RemoteClient) SendFrequency(v int, hz int64) error {
	cmd := U64Command{V: hz}
	return c.t.Send(Header{Type: CmdFreq, B1: uint8(v)}, cmd.encode())
}

func (c *RemoteClient) SendMoveTo(v int, hz int64) error {
	cmd := U64Command{V: hz}
	return c.t.Send(Header{Type: CmdMoveTo, B1: uint8(v)}, cmd.encode())
}

func (c *RemoteClient) SendSampleRate(rx, rate int) error {
	cmd := U64Command{V: int64(rate)}
	return c.t.Send(Header{Type: CmdSampleRate, B1: uint8(rx)}, cmd.encode())
}

func (c *RemoteClient) SendDrive(value float64) error {
	cmd := DoubleCommand{V: value}
	return c.t.Send(Header{Type: CmdDrive}, cmd.encode())
}

func (c *RemoteClient) SendMicGain(value float64) error {
	cmd := DoubleCommand{V: value}
	return c.t.Send(Header{Type: CmdMicGain}, cmd.encode())
}

func (c *RemoteClient) SendAMCarrier(value float64) error {
	cmd := DoubleCommand{V: value}
	return c.t.Send(Header{Type: CmdAMCarrier}, cmd.encode())
}

func (c *RemoteClient) SendVolume(rx int, value float64) error {
	cmd := DoubleCommand{V: value}
	return c.t.Send(Header{Type: CmdVolume, B1: uint8(rx)}, cmd.encode())
}

func (c *RemoteClient) SendSquelch(rx int, enable bool, value float64) error {
	cmd := DoubleCommand{V: value}
	return c.t.Send(Header{Type: CmdSquelch, B1: uint8(rx), B2: boolByte(enable)}, cmd.encode())
}

func (c *RemoteClient) SendRit(v int, value int64, enabled bool) error {
	cmd := U64Command{V: value}
	return c.t.Send(Header{Type: CmdRIT, B1: uint8(v), B2: boolByte(enabled)}, cmd.encode())
}

func (c *RemoteClient) SendXit(v int, value int64, enabled bool) error {
	cmd := U64Command{V: value}
	return c.t.Send(Header{Type: CmdXIT, B1: uint8(v), B2: boolByte(enabled)}, cmd.encode())
}

func (c *RemoteClient) SendNoise(rx *Receiver) error {
	cmd := NoiseCommand{
		ID:  uint8(rx.ID),
		NB:  uint8(rx.NB),
		NR:  uint8(rx.NR),
		ANF: rx.ANF,
		SNB: rx.SNB,
	}
	return c.t.Send(Header{Type: CmdNoise}, cmd.encode())
}

func (c *RemoteClient) SendRxEq(rx *Receiver) error {
	cmd := EqualizerCommand{ID: uint8(rx.ID), Enable: rx.EqEnable, Freq: rx.EqFreq, Gain: rx.EqGain}
	return c.t.Send(Header{Type: CmdRxEq}, cmd.encode())
}

func (c *RemoteClient) SendTxEq(tx *Transmitter) error {
	cmd := EqualizerCommand{ID: txSpectrumSlot, Enable: tx.EqEnable, Freq: tx.EqFreq, Gain: tx.EqGain}
	return c.t.Send(Header{Type: CmdTxEq}, cmd.encode())
}

func (c *RemoteClient) SendPSParams(tx *Transmitter) error {
	cmd := PSParams{Ptol: tx.PsPtol, Oneshot: tx.PsOneshot, Map: tx.PsMap, SetPk: tx.PsSetPk}
	return c.t.Send(Header{Type: CmdPSParams}, cmd.encode())
}

func (c *RemoteClient) SendPSOnOff(on bool) error {
	return c.t.SendHeader(CmdPSOnOff, boolByte(on), 0, 0, 0)
}

// SendTxAudio ships one mono mic frame upstream.
func (c *RemoteClient) SendTxAudio(samples []int16) error {
	if len(samples) > AudioDataSize {
		samples = samples[:AudioDataSize]
	}
	a := TxAudioData{NumSamples: uint16(len(samples)), Samples: samples}
	body := a.encode()
	return c.t.Send(Header{Type: InfoTxAudio, S1: uint16(len(body))}, body)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
