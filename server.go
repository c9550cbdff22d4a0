package main

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Remote server: runs on the machine attached to the radio,
// publishes the state store to exactly one client at a time and
// streams spectrum and audio. The client never mutates the store
// directly; it sends commands that the session thread interprets.

const (
	DefaultServerPort = 50000
	periodicInterval  = 150 * time.Millisecond
	spectrumSlots     = 10 // slot 8 is the transmitter panadapter
	txSpectrumSlot    = 8
)

// remoteMicRing carries the client's mic stream to the TX engine.
// SPSC with a low-water mark: underflow yields silence instead of
// blocking the 48 kHz sample clock.
type remoteMicRing struct {
	buf      [8192]int16
	inpt     atomic.Uint32
	outpt    atomic.Uint32
	lowWater uint32
	primed   atomic.Bool
}

func (r *remoteMicRing) Write(samples []int16) {
	in := r.inpt.Load()
	out := r.outpt.Load()
	for _, s := range samples {
		next := (in + 1) % uint32(len(r.buf))
		if next == out {
			break // full: drop the rest, the clock recovers
		}
		r.buf[in] = s
		in = next
	}
	r.inpt.Store(in)

	fill := (in + uint32(len(r.buf)) - out) % uint32(len(r.buf))
	if fill >= r.lowWater {
		r.primed.Store(true)
	}
}

func (r *remoteMicRing) ReadSample() (int16, bool) {
	out := r.outpt.Load()
	if out == r.inpt.Load() {
		r.primed.Store(false)
		return 0, true // underflow: silence, never block
	}
	if !r.primed.Load() {
		return 0, true // wait for the low-water mark
	}
	s := r.buf[out]
	r.outpt.Store((out + 1) % uint32(len(r.buf)))
	return s, true
}

func (r *remoteMicRing) Wipe() {
	r.outpt.Store(r.inpt.Load())
	r.primed.Store(false)
}

type RemoteServer struct {
	radio    *Radio
	password string
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup

	mu     sync.Mutex
	client *serverSession
}

type serverSession struct {
	server *RemoteServer
	radio  *Radio
	t      *Transport
	id     string

	sendSpectrum [spectrumSlots]bool
	stop         chan struct{}
	stopOnce     sync.Once

	// stereo RX audio accumulation
	audioMu    sync.Mutex
	audioBuf   [2 * AudioDataSize]int16
	audioCount int
	audioRx    uint8

	micRing remoteMicRing
}

func NewRemoteServer(radio *Radio, password string) *RemoteServer {
	return &RemoteServer{radio: radio, password: password}
}

// Start opens the listener and serves one client session at a
// time.
func (s *RemoteServer) Start(port int) error {
	if len(s.password) < 5 {
		return fmt.Errorf("server: password must be at least 5 characters")
	}
	l, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = l
	s.running.Store(true)
	s.wg.Add(1)
	go s.listenLoop()
	log.Printf("server: listening on port %d", s.Port())
	return nil
}

// Port reports the bound port; useful when the caller asked for 0.
func (s *RemoteServer) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *RemoteServer) Stop() {
	if !s.running.Swap(false) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Lock()
	if s.client != nil {
		s.client.teardown()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *RemoteServer) listenLoop() {
	defer s.wg.Done()
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				log.Printf("server: accept: %v", err)
			}
			return
		}

		sess := &serverSession{
			server: s,
			radio:  s.radio,
			t:      NewTransport(conn),
			id:     uuid.NewString(),
			stop:   make(chan struct{}),
		}
		sess.micRing.lowWater = 1024

		s.mu.Lock()
		s.client = sess
		s.mu.Unlock()

		log.Printf("server: client connected from %s (session %s)", conn.RemoteAddr(), sess.id)
		sess.run() // one client at a time: serve until it dies
		s.mu.Lock()
		s.client = nil
		s.mu.Unlock()
	}
}

// authenticate runs the challenge/response handshake:
// 64 random bytes out, SHA-256(nonce || version || password) back,
// one verdict byte: 0x7F accept, 0x00 reject.
func (sess *serverSession) authenticate() bool {
	var nonce [64]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		log.Printf("server: nonce generation failed: %v", err)
		return false
	}
	if err := sess.t.SendRaw(nonce[:]); err != nil {
		return false
	}

	expected := authDigest(nonce[:], ClientServerVersion, sess.server.password)

	var response [sha256.Size]byte
	if err := sess.t.ReadRaw(response[:]); err != nil {
		log.Printf("server: no password response: %v", err)
		return false
	}

	if response != expected {
		log.Printf("server: wrong password from client")
		sess.t.SendRaw([]byte{0x00})
		return false
	}
	sess.t.SendRaw([]byte{0x7F})
	return true
}

// authDigest computes SHA-256 over nonce || version(be32) || pwd.
// Passwords are clipped to 50 bytes like the dialog that sets them.
func authDigest(nonce []byte, version uint32, password string) [sha256.Size]byte {
	if len(password) > 50 {
		password = password[:50]
	}
	h := sha256.New()
	h.Write(nonce)
	var v [4]byte
	putU32(v[:], version)
	h.Write(v[:])
	h.Write([]byte(password))
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// run serves the whole session: handshake, snapshot, dispatch.
func (sess *serverSession) run() {
	defer sess.teardown()

	if !sess.authenticate() {
		return
	}
	metricRemoteSessions.Set(1)
	sess.t.StartHeartbeat()

	r := sess.radio
	r.Lock()
	// Radio-local CW keying cannot work when the key is on the
	// other end of the network; disable it for the session.
	savedKeyer := r.CwKeyerInternal
	r.CwKeyerInternal = false
	r.Unlock()
	if r.wire != nil {
		r.wire.ScheduleTransmitSpecific()
	}
	defer func() {
		r.Lock()
		r.CwKeyerInternal = savedKeyer
		r.Unlock()
		if r.wire != nil {
			r.wire.ScheduleTransmitSpecific()
		}
	}()

	if err := sess.sendSnapshot(); err != nil {
		log.Printf("server: snapshot failed: %v", err)
		return
	}

	// attach the streaming taps
	for _, rx := range r.Receivers {
		if rx.IsFeedback(r.LocalReceivers) {
			continue
		}
		id := uint8(rx.ID)
		rx.RemoteAudio = func(l, rr int16) { sess.queueAudio(id, l, rr) }
	}
	r.Tx.RemoteMicSample = sess.micRing.ReadSample

	sess.server.wg.Add(2)
	go sess.periodicLoop()
	go sess.spectrumLoop()

	for {
		h, body, err := sess.t.ReadMessage()
		if err != nil {
			log.Printf("server: session %s ended: %v", sess.id, err)
			return
		}
		sess.dispatch(h, body)
	}
}

// teardown restores a best-effort RX state: mic ring wiped, mox
// forced off, timers stopped, socket closed.
func (sess *serverSession) teardown() {
	sess.stopOnce.Do(func() { close(sess.stop) })
	sess.micRing.Wipe()

	r := sess.radio
	r.Lock()
	if r.Mox {
		r.SetMox(false)
	}
	for _, rx := range r.Receivers {
		rx.RemoteAudio = nil
	}
	r.Tx.RemoteMicSample = nil
	r.Unlock()

	sess.t.Close()
	metricRemoteSessions.Set(0)
}

// sendSnapshot unloads the initial state in the fixed order the
// client expects, finishing with START_RADIO.
func (sess *serverSession) sendSnapshot() error {
	r := sess.radio
	r.Lock()
	defer r.Unlock()

	if err := sess.t.Send(Header{Type: InfoRadio}, radioDataFromStore(r).encode()); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		a := adcDataFromStore(r, i)
		if err := sess.t.Send(Header{Type: InfoADC, B1: uint8(i)}, a.encode()); err != nil {
			return err
		}
	}
	dac := DACData{Antenna: uint8(r.DAC.Antenna), Gain: r.DAC.Gain}
	if err := sess.t.Send(Header{Type: InfoDAC}, dac.encode()); err != nil {
		return err
	}

	// variable filter edges for every mode, so both ends share the
	// same Var1/Var2 tables
	for mode := 0; mode < Modes; mode++ {
		for _, fi := range []int{FilterVar1, FilterVar2} {
			g := filterGroupForMode(mode)
			f := filterTables[g][fi]
			if err := sess.t.SendHeader(CmdFilterVar, uint8(mode), uint8(fi), uint16(int16(f.Low)), uint16(int16(f.High))); err != nil {
				return err
			}
		}
	}

	for _, rx := range r.Receivers {
		rd := receiverDataFromStore(rx)
		if err := sess.t.Send(Header{Type: InfoReceiver}, rd.encode()); err != nil {
			return err
		}
	}

	for v := 0; v < 2; v++ {
		vd := vfoDataFromStore(&r.VFO[v], v)
		if err := sess.t.Send(Header{Type: InfoVFO}, vd.encode()); err != nil {
			return err
		}
	}

	for i, b := range r.Bands {
		bd := bandDataFromStore(b, i)
		if err := sess.t.Send(Header{Type: InfoBand}, bd.encode()); err != nil {
			return err
		}
		for s := range b.Stack {
			sd := bandstackDataFromStore(b, i, s)
			if err := sess.t.Send(Header{Type: InfoBandstack}, sd.encode()); err != nil {
				return err
			}
		}
	}

	for i := range r.Memory {
		md := memoryDataFromStore(&r.Memory[i], i)
		if err := sess.t.Send(Header{Type: InfoMemory}, md.encode()); err != nil {
			return err
		}
	}

	td := transmitterDataFromStore(r)
	if err := sess.t.Send(Header{Type: InfoTransmitter}, td.encode()); err != nil {
		return err
	}

	return sess.t.SendHeader(CmdStartRadio, 0, 0, 0, 0)
}

// queueAudio accumulates stereo samples and ships a frame per 1024.
// The transport send mutex serializes the frame against commands
// from other goroutines.
func (sess *serverSession) queueAudio(rx uint8, l, r int16) {
	var body []byte
	sess.audioMu.Lock()
	sess.audioBuf[2*sess.audioCount] = l
	sess.audioBuf[2*sess.audioCount+1] = r
	sess.audioCount++
	sess.audioRx = rx
	if sess.audioCount >= AudioDataSize {
		a := RxAudioData{RX: sess.audioRx, NumSamples: AudioDataSize}
		a.Samples = append(a.Samples, sess.audioBuf[:]...)
		body = a.encode()
		sess.audioCount = 0
	}
	sess.audioMu.Unlock()

	if body != nil {
		sess.t.Send(Header{Type: InfoRxAudio, S1: uint16(len(body))}, body)
	}
}

// periodicLoop sends INFO_DISPLAY (and INFO_PS when PureSignal is
// active) every 150 ms.
func (sess *serverSession) periodicLoop() {
	defer sess.server.wg.Done()
	ticker := time.NewTicker(periodicInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			r := sess.radio
			r.Lock()
			dd := DisplayData{
				Adc0Overload:   r.ADC[0].Overload,
				Adc1Overload:   r.ADC[1].Overload,
				HighSwrSeen:    r.Tx.HighSwrSeen,
				TxFifoOverrun:  r.TxFifoOverrun,
				TxFifoUnderrun: r.TxFifoUnderrun,
				TxInhibit:      r.TxInhibit,
				ExciterPower:   uint16(r.Tx.ExciterPower),
				SequenceErrors: uint16(r.SequenceErrors),
			}
			ps := r.Tx.Puresignal
			r.Unlock()

			if err := sess.t.Send(Header{Type: InfoDisplay}, dd.encode()); err != nil {
				return
			}
			if ps {
				var pd PSData
				if err := sess.t.Send(Header{Type: InfoPS}, pd.encode()); err != nil {
					return
				}
			}
		}
	}
}

// spectrumLoop polls each enabled analyzer every 100 ms and ships
// completed frames. The per-receiver Fps setting is not consulted.
func (sess *serverSession) spectrumLoop() {
	defer sess.server.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			r := sess.radio
			for _, rx := range r.Receivers {
				if rx.ID >= spectrumSlots || !sess.sendSpectrum[rx.ID] {
					continue
				}
				if rx.IsFeedback(r.LocalReceivers) {
					continue
				}
				frame := rx.SpectrumFrame()
				if frame == nil {
					continue
				}
				sess.sendSpectrumFrame(rx, frame)
			}
			if sess.sendSpectrum[txSpectrumSlot] && r.Mox {
				if frame := r.Tx.SpectrumFrame(); frame != nil {
					sess.sendTxSpectrumFrame(r.Tx, frame)
				}
			}
		}
	}
}

// sendSpectrumFrame packs the visible window (width pixels starting
// at pan) plus meter and VFO data for quick display updates.
func (sess *serverSession) sendSpectrumFrame(rx *Receiver, frame []float32) {
	r := sess.radio
	r.Lock()
	sd := SpectrumData{
		ID:         uint8(rx.ID),
		Zoom:       uint8(rx.Zoom),
		Width:      uint16(rx.Width),
		Pan:        uint16(rx.Pan),
		VfoAFreq:   r.VFO[VfoA].Frequency,
		VfoBFreq:   r.VFO[VfoB].Frequency,
		VfoACtun:   r.VFO[VfoA].CtunFrequency,
		VfoBCtun:   r.VFO[VfoB].CtunFrequency,
		VfoAOffset: r.VFO[VfoA].Offset,
		VfoBOffset: r.VFO[VfoB].Offset,
		Meter:      rx.Meter,
		Swr:        r.Tx.Swr,
		Alc:        r.Tx.Alc,
		Fwd:        r.Tx.Fwd,
	}
	r.Unlock()

	sd.Sample = make([]uint16, rx.Width)
	for i := 0; i < rx.Width; i++ {
		idx := rx.Pan + i
		var v float32
		if idx < len(frame) {
			v = frame[idx]
		}
		// fixed point: dBm * 16 as a signed 16-bit value, bit-cast
		// into the unsigned wire word
		sd.Sample[i] = uint16(int16(v * 16.0))
	}

	body := sd.encode()
	if err := sess.t.Send(Header{Type: InfoSpectrum, S1: uint16(len(body))}, body); err != nil {
		return
	}
	metricSpectrumFrames.WithLabelValues(fmt.Sprintf("%d", rx.ID)).Inc()
}

func (sess *serverSession) sendTxSpectrumFrame(tx *Transmitter, frame []float32) {
	sd := SpectrumData{
		ID:    txSpectrumSlot,
		Zoom:  1,
		Width: uint16(tx.Width),
		Swr:   tx.Swr,
		Alc:   tx.Alc,
		Fwd:   tx.Fwd,
	}
	sd.Sample = make([]uint16, tx.Width)
	for i := 0; i < tx.Width && i < len(frame); i++ {
		sd.Sample[i] = uint16(int16(frame[i] * 16.0))
	}
	body := sd.encode()
	sess.t.Send(Header{Type: InfoSpectrum, S1: uint16(len(body))}, body)
}
