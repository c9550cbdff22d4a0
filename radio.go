package main

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// The state store. It exclusively owns the discovered radio, the
// receiver arena, the transmitter, the VFOs, bands and memory
// slots; engines hold indices into the arena, never references to
// each other. All external mutation goes through the narrow
// methods below, which apply the cross-entity side effects
// (retuning the wire engine, filter and AGC re-derivation,
// display updates).

const (
	SatModeOff = iota
	SatModeSat
	SatModeRSat
)

const (
	CaptureOff = iota
	CaptureRecording
	CaptureRecordDone
	CaptureReplaying
	CaptureReplayDone
)

// WireEngine is what the store programs when state changes. P1, P2
// and the Soapy adapter all satisfy it.
type WireEngine interface {
	Start() error
	Stop()
	Protocol() RadioProtocol
	// SetPTT runs synchronously on the keying edge, before any
	// TX sample can follow it; the FIFO padding contracts hang off
	// this call, not off the coalesced schedulers.
	SetPTT(on bool)
	SetRxFrequency(rx int, hz int64)
	SetTxFrequency(hz int64)
	ScheduleGeneral()
	ScheduleHighPriority()
	ScheduleReceiveSpecific()
	ScheduleTransmitSpecific()
}

type ADCState struct {
	Antenna      int
	Attenuation  int
	Gain         float64
	MinGain      float64
	MaxGain      float64
	Dither       bool
	Random       bool
	Preamp       bool
	FilterBypass bool
	Overload     bool
}

type DACState struct {
	Antenna int
	Gain    float64
}

type Radio struct {
	mu sync.Mutex

	Discovered *DiscoveredRadio
	Name       string

	Receivers      []*Receiver // arena: feedback receivers live past LocalReceivers
	LocalReceivers int
	ActiveReceiver int
	Tx             *Transmitter

	VFO    [2]VFO
	Bands  []*Band
	Memory [MemorySlots]MemorySlot
	ADC    [2]ADCState
	DAC    DACState

	// Global operating flags.
	Mox                     bool
	Tune                    bool
	Vox                     bool
	Duplex                  bool
	Split                   bool
	SatMode                 int
	Locked                  bool
	Region                  int
	FilterBoard             int
	MuteRxWhileTransmitting bool
	CwKeyerInternal         bool
	PaEnabled               bool
	TxOutOfBandAllowed      bool
	MicBoost                bool
	MicLinein               bool
	DiversityEnabled        bool
	DivGain                 float64
	DivPhase                float64
	UseRxFilter             bool
	RxGainCalibration       int
	FrequencyCalibration    int64
	DriveMax                float64
	PaTrim                  [11]float64
	DisplayWidth            int

	// Hardware alarms mirrored into INFO_DISPLAY.
	TxFifoOverrun  bool
	TxFifoUnderrun bool
	TxInhibit      bool
	SequenceErrors int

	// Out-of-band TX warning, cleared by a one-shot timer.
	OutOfBand      bool
	outOfBandTimer *time.Timer

	// Capture record/replay. The state word is atomic because the
	// full-buffer and replay-drained transitions fire on the wire
	// thread, which must not take the store mutex.
	Capture      *CaptureBuffer
	captureState atomic.Int32

	wire    WireEngine
	factory DSPFactory

	// Redraw requests for the UI task; the single sink for
	// display updates.
	Redraw chan int
}

// NewRadio builds the store for a selected radio and creates the
// receiver arena (including the PureSignal feedback tap on radios
// that support it).
func NewRadio(d *DiscoveredRadio, factory DSPFactory) *Radio {
	r := &Radio{
		Discovered:   d,
		Name:         d.Name,
		Bands:        NewBandTable(),
		factory:      factory,
		DriveMax:     100.0,
		DisplayWidth: 800,
		PaEnabled:    true,
		Redraw:       make(chan int, 16),
	}
	for i := range r.PaTrim {
		r.PaTrim[i] = float64(i) * 10.0
	}

	receivers := 1
	if d.SupportedReceivers > 1 {
		receivers = 2
	}
	r.LocalReceivers = receivers

	rate := 384000
	if d.Protocol == ProtocolP2 {
		rate = 192000
	}
	for i := 0; i < receivers; i++ {
		adc := 0
		if i > 0 && d.AdcCount > 1 {
			adc = 1
		}
		r.Receivers = append(r.Receivers, NewReceiver(i, adc, rate, r.DisplayWidth, factory))
	}

	// PureSignal needs a feedback tap after the PA; only HPSDR
	// radios have one.
	if d.Protocol != ProtocolSoapy {
		fb := NewReceiver(receivers, 0, rate, r.DisplayWidth, factory)
		r.Receivers = append(r.Receivers, fb)
	}

	iqRate := 48000
	if d.Protocol == ProtocolP2 {
		iqRate = 192000
	}
	r.Tx = NewTransmitter(iqRate, factory)
	if len(r.Receivers) > r.LocalReceivers {
		r.Tx.FeedbackRx = r.LocalReceivers
	}

	// default VFO state from the 20m band
	for v := 0; v < 2; v++ {
		b := r.Bands[Band20]
		r.VFO[v].LoadBandstack(Band20, 0, &b.Stack[0], b)
		r.VFO[v].Step = 100
	}
	r.deriveFilters(VfoA)
	r.deriveFilters(VfoB)
	return r
}

// AttachWire installs the wire engine once the radio is selected.
func (r *Radio) AttachWire(w WireEngine) { r.wire = w }

// Lock and Unlock expose the store mutex to the session thread.
func (r *Radio) Lock()   { r.mu.Lock() }
func (r *Radio) Unlock() { r.mu.Unlock() }

func (r *Radio) requestRedraw(id int) {
	select {
	case r.Redraw <- id:
	default:
	}
}

// TxVfoIndex derives which VFO controls the transmitter from the
// SPLIT and SAT flags.
func (r *Radio) TxVfoIndex() int {
	split := r.Split
	if r.SatMode == SatModeRSat {
		split = !split
	}
	if split {
		return VfoB
	}
	return VfoA
}

// RxVfoIndex: the active receiver listens on VFO A unless it is
// the second receiver.
func (r *Radio) RxVfoIndex(rx int) int {
	if rx == 1 {
		return VfoB
	}
	return VfoA
}

// deriveFilters re-derives the passband of every chain that hangs
// off a VFO after a mode or filter change.
func (r *Radio) deriveFilters(v int) {
	vfo := &r.VFO[v]
	low, high := FilterEdges(vfo.Mode, vfo.Filter, r.Tx.SidetoneFreq)

	for _, rx := range r.Receivers {
		if rx.IsFeedback(r.LocalReceivers) {
			continue
		}
		if r.RxVfoIndex(rx.ID) != v {
			continue
		}
		rx.ApplyFilter(low, high)
		rx.ApplyAGC()
	}

	if r.TxVfoIndex() == v {
		r.Tx.Mode = vfo.Mode
		r.Tx.Deviation = vfo.Deviation
		if r.UseRxFilter {
			active := r.Receivers[r.ActiveReceiver]
			r.Tx.ApplyFilter(active.FilterLow, active.FilterHigh)
		} else {
			txLow, txHigh := FilterEdges(vfo.Mode, vfo.Filter, r.Tx.SidetoneFreq)
			r.Tx.ApplyFilter(txLow, txHigh)
		}
	}
}

// SetMode changes a VFO's mode and runs the dependent updates.
func (r *Radio) SetMode(v, mode int) {
	if mode < 0 || mode >= Modes {
		log.Printf("radio: mode %d out of range, ignored", mode)
		return
	}
	r.VFO[v].Mode = mode
	r.deriveFilters(v)
	if r.wire != nil {
		r.wire.ScheduleHighPriority()
	}
	r.requestRedraw(-1)
}

// SetFilter selects a filter index on a VFO.
func (r *Radio) SetFilter(v, filter int) {
	if filter < 0 || filter >= Filters {
		log.Printf("radio: filter %d out of range, clamped", filter)
		if filter < 0 {
			filter = 0
		} else {
			filter = Filters - 1
		}
	}
	r.VFO[v].Filter = filter
	r.deriveFilters(v)
	r.requestRedraw(-1)
}

// legalP1Rate: protocol 1 tops out at 384 kHz.
func legalP1Rate(rate int) bool {
	switch rate {
	case 48000, 96000, 192000, 384000:
		return true
	}
	return false
}

// SetSampleRate changes a receiver's rate, enforcing the protocol
// cap and the P1 firmware rule that RX0 and RX1 share one rate.
func (r *Radio) SetSampleRate(rxID, rate int) {
	proto := ProtocolP1
	if r.Discovered != nil {
		proto = r.Discovered.Protocol
	}
	if proto == ProtocolP1 && !legalP1Rate(rate) {
		log.Printf("radio: sample rate %d illegal for protocol 1, clamped to 384000", rate)
		rate = 384000
	}
	if rxID < 0 || rxID >= len(r.Receivers) {
		return
	}

	r.Receivers[rxID].SetSampleRate(rate)
	if proto == ProtocolP1 && rxID == 0 && len(r.Receivers) > 1 && r.LocalReceivers > 1 {
		// RX1 is slaved to RX0 in the protocol-1 firmware
		r.Receivers[1].SetSampleRate(rate)
	}

	v := r.RxVfoIndex(rxID)
	r.VFO[v].ResetCTUNWindow(rate)

	if r.wire != nil {
		r.wire.Stop()
		r.wire.Start()
	}
	r.requestRedraw(rxID)
}

// SelectBand switches a VFO to a band's active stack entry.
func (r *Radio) SelectBand(v, band int) {
	if band < 0 || band >= len(r.Bands) {
		log.Printf("radio: band %d out of range, ignored", band)
		return
	}
	vfo := &r.VFO[v]

	// remember where the old band was left
	old := r.Bands[vfo.Band]
	if vfo.Bandstack < len(old.Stack) {
		vfo.SaveBandstack(&old.Stack[vfo.Bandstack])
	}

	b := r.Bands[band]
	stack := b.Current
	if vfo.Band == band {
		// selecting the active band again cycles the stack
		stack = (stack + 1) % len(b.Stack)
		b.Current = stack
	}
	vfo.LoadBandstack(band, stack, &b.Stack[stack], b)
	r.deriveFilters(v)
	r.applyBandSideEffects(band)
	r.retune(v)
}

// SelectBandstack picks an explicit stack entry on the current band.
func (r *Radio) SelectBandstack(v, stack int) {
	vfo := &r.VFO[v]
	b := r.Bands[vfo.Band]
	if stack < 0 || stack >= len(b.Stack) {
		return
	}
	b.Current = stack
	vfo.LoadBandstack(vfo.Band, stack, &b.Stack[stack], b)
	r.deriveFilters(v)
	r.retune(v)
}

// applyBandSideEffects re-evaluates everything the band controls:
// open collector outputs, alex attenuation, PA calibration.
func (r *Radio) applyBandSideEffects(band int) {
	b := r.Bands[band]
	for _, rx := range r.Receivers {
		rx.AlexAttenuation = b.AlexAttenuation
		rx.AlexAntenna = b.AlexRxAntenna
	}
	if r.wire != nil {
		r.wire.ScheduleHighPriority()
		r.wire.ScheduleGeneral()
	}
}

// retune pushes the VFO frequency into the wire engine.
func (r *Radio) retune(v int) {
	if r.wire == nil {
		return
	}
	vfo := &r.VFO[v]
	for _, rx := range r.Receivers {
		if !rx.IsFeedback(r.LocalReceivers) && r.RxVfoIndex(rx.ID) == v {
			r.wire.SetRxFrequency(rx.ID, vfo.RxFrequency()+r.FrequencyCalibration)
		}
	}
	if r.TxVfoIndex() == v {
		r.wire.SetTxFrequency(r.VFO[v].TxFrequency() + r.FrequencyCalibration)
	}
	r.requestRedraw(-1)
}

// VfoStep/VfoMove/VfoMoveTo are the tuning entry points.
func (r *Radio) VfoStep(v, steps int) {
	if r.Locked {
		return
	}
	r.VFO[v].ApplyStep(steps)
	r.retune(v)
}

func (r *Radio) VfoMove(v int, hz int64, round bool) {
	if r.Locked {
		return
	}
	r.VFO[v].ApplyMove(hz, round)
	r.retune(v)
}

func (r *Radio) VfoMoveTo(v int, hz int64) {
	if r.Locked {
		return
	}
	r.VFO[v].ApplyMoveTo(hz)
	r.retune(v)
}

func (r *Radio) VfoSetFrequency(v int, hz int64) {
	vfo := &r.VFO[v]
	band := BandForFrequency(r.Bands, hz)
	if band != vfo.Band {
		r.SelectBand(v, band)
	}
	vfo.ApplyMoveTo(hz)
	r.retune(v)
}

// VfoAtoB / VfoBtoA / VfoSwap.
func (r *Radio) VfoAtoB() {
	r.VFO[VfoA].CopyTo(&r.VFO[VfoB])
	r.deriveFilters(VfoB)
	r.retune(VfoB)
}

func (r *Radio) VfoBtoA() {
	r.VFO[VfoB].CopyTo(&r.VFO[VfoA])
	r.deriveFilters(VfoA)
	r.retune(VfoA)
}

func (r *Radio) VfoSwap() {
	r.VFO[VfoA], r.VFO[VfoB] = r.VFO[VfoB], r.VFO[VfoA]
	r.deriveFilters(VfoA)
	r.deriveFilters(VfoB)
	r.retune(VfoA)
	r.retune(VfoB)
}

// SetMox keys or unkeys the transmitter, enforcing the band plan.
func (r *Radio) SetMox(on bool) {
	if on {
		v := r.TxVfoIndex()
		f := r.VFO[v].TxFrequency()
		band := r.Bands[r.VFO[v].Band]
		if !r.TxOutOfBandAllowed && !band.InBand(f) {
			r.flagOutOfBand()
			return
		}
	}
	wasOn := r.Mox
	r.Mox = on
	if on && !wasOn && r.wire != nil {
		// arm the FIFO pre-fill before the chain can emit a sample
		r.wire.SetPTT(true)
	}
	r.Tx.SetMox(on)
	if !on && wasOn {
		if r.wire != nil {
			// emission has stopped: flush the stale FIFO tail
			r.wire.SetPTT(false)
		}
		for _, rx := range r.Receivers {
			rx.NotifyTxRxTransition()
		}
	}
	if r.wire != nil {
		r.wire.ScheduleHighPriority()
	}
	r.requestRedraw(-1)
}

// flagOutOfBand raises the soft warning for one second.
func (r *Radio) flagOutOfBand() {
	log.Printf("radio: transmit frequency out of band")
	r.OutOfBand = true
	if r.outOfBandTimer != nil {
		r.outOfBandTimer.Stop()
	}
	r.outOfBandTimer = time.AfterFunc(time.Second, func() {
		r.mu.Lock()
		r.OutOfBand = false
		r.mu.Unlock()
		r.requestRedraw(-1)
	})
	r.requestRedraw(-1)
}

// SetTune keys the transmitter with the tune carrier.
func (r *Radio) SetTune(on bool) {
	r.Tune = on
	r.Tx.Tuning = on
	r.SetMox(on)
}

// SetSplit / SetSat change the TX VFO derivation.
func (r *Radio) SetSplit(on bool) {
	r.Split = on
	r.deriveFilters(r.TxVfoIndex())
	r.retune(r.TxVfoIndex())
}

func (r *Radio) SetSat(mode int) {
	r.SatMode = mode
	r.deriveFilters(r.TxVfoIndex())
	r.retune(r.TxVfoIndex())
}

// SetDiversity updates the mixer on the diversity-capable chains.
func (r *Radio) SetDiversity(enabled bool, gain, phase float64) {
	r.DiversityEnabled = enabled
	r.DivGain = gain
	r.DivPhase = phase
	for _, rx := range r.Receivers {
		rx.SetDiversityGain(gain, phase)
	}
}

// CaptureState reports the current record/replay state.
func (r *Radio) CaptureState() int { return int(r.captureState.Load()) }

// SetCaptureState drives the record/replay lifecycle and points the
// engine hooks at the buffer.
func (r *Radio) SetCaptureState(state int) {
	if r.Capture == nil {
		r.Capture = NewCaptureBuffer()
	}
	r.captureState.Store(int32(state))

	switch state {
	case CaptureRecording:
		r.Capture.Clear()
		rx := r.Receivers[r.ActiveReceiver]
		rx.CaptureAudio = func(samples []float64) {
			if !r.Capture.Record(samples) {
				r.captureState.Store(CaptureRecordDone)
			}
		}

	case CaptureRecordDone, CaptureOff:
		for _, rx := range r.Receivers {
			rx.CaptureAudio = nil
		}
		r.Tx.CaptureReplay = nil
		r.Tx.CaptureDone = nil

	case CaptureReplaying:
		for _, rx := range r.Receivers {
			rx.CaptureAudio = nil
		}
		r.Capture.RewindReplay()
		r.Tx.CaptureReplay = r.Capture.NextReplaySample
		r.Tx.CaptureDone = func() {
			r.captureState.Store(CaptureReplayDone)
		}

	case CaptureReplayDone:
		r.Tx.CaptureReplay = nil
		r.Tx.CaptureDone = nil
	}
	r.requestRedraw(-1)
}

// StoreMemory / RecallMemory.
func (r *Radio) StoreMemory(index int) {
	if index < 0 || index >= MemorySlots {
		return
	}
	r.Memory[index].Store(&r.VFO[VfoA], &r.VFO[VfoB], r.SatMode)
}

func (r *Radio) RecallMemory(index int) {
	if index < 0 || index >= MemorySlots {
		return
	}
	r.Memory[index].Recall(&r.VFO[VfoA], &r.VFO[VfoB])
	r.deriveFilters(VfoA)
	r.deriveFilters(VfoB)
	r.retune(VfoA)
	r.retune(VfoB)
}

// Start brings the radio up: receivers running, wire engine
// started.
func (r *Radio) Start() error {
	for _, rx := range r.Receivers {
		rx.Run()
	}
	if r.wire != nil {
		if err := r.wire.Start(); err != nil {
			return err
		}
	}
	r.retune(VfoA)
	r.retune(VfoB)
	return nil
}

// Stop tears everything down; receivers are destroyed when the
// radio stops.
func (r *Radio) Stop() {
	if r.wire != nil {
		r.wire.Stop()
	}
	for _, rx := range r.Receivers {
		rx.Close()
	}
	r.Tx.Close()
}
