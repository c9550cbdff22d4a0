package main

import (
	"log"
	"math"
	"sync"
)

// Transmit chain. One per process. Mic samples arrive at 48 kHz
// from whichever source wins the routing rules; IQ leaves at the
// wire engine's DUC rate (ratio = iq_rate / 48000). In CW modes the
// DSP still runs (so its internal state tracks the stream) but the
// RF envelope is synthesised locally from the ramp table.

type TxState int

const (
	TxIdle TxState = iota
	TxPttDown
	TxTransmit
	TxPttUp
	TxQuiet
)

// FM microphone samples get +15 dB before the DSP to compensate the
// pre-emphasis filter's attenuation of low frequencies.
const fmMicBoost = 5.6234

const (
	twoToneLow  = 700.0
	twoToneHigh = 1900.0
)

type Transmitter struct {
	ID int

	mu    sync.Mutex
	state TxState

	MicSampleRate int // fixed 48000
	IQRate        int
	Ratio         int // IQRate / MicSampleRate
	BufferSize    int
	OutputSamples int // BufferSize * Ratio

	dsp     TxChannel
	factory DSPFactory

	micInput []float64
	samples  int
	iqOutput []float64

	// Mirrored store state.
	Mode         int
	FilterLow    int
	FilterHigh   int
	Deviation    int
	CtcssEnabled bool
	Ctcss        int
	MicGain      float64
	Drive        int // 0..100
	TuneDrive    int
	TuneUseDrive bool
	Tuning       bool
	TwoTone      bool

	// PureSignal.
	Puresignal  bool
	PsAuto      bool
	PsOneshot   bool
	PsPtol      bool
	PsMap       bool
	PsSetPk     float64
	PsAmpdelay  float64
	PsMoxdelay  float64
	PsLoopdelay float64
	PsInts      int
	PsSpi       int
	FeedbackRx  int // index of the PS_RX_FEEDBACK receiver, -1 if none

	// Compressor / CFC. CESSB overshoot control is tied to the
	// classical compressor only, never to CFC alone (this follows
	// the existing radios in the field; see DESIGN.md).
	Compressor      bool
	CompressorLevel float64
	CFC             bool
	CFCEq           bool
	CfcFreq         [EqBands]float64
	CfcLvl          [EqBands]float64
	CfcPost         [EqBands]float64
	CessbOvershoot  bool

	// Downward expander, applied to the mic ring in place, outside
	// the DSP channel.
	Dexp           bool
	DexpTrigger    float64 // dB
	DexpExp        float64 // expansion ratio dB
	DexpTau        float64
	DexpAttack     float64
	DexpRelease    float64
	DexpHold       float64
	DexpHyst       float64
	DexpFilter     bool
	DexpFilterLow  int
	DexpFilterHigh int
	dexpEnv        float64
	dexpHoldCnt    int

	// Equalizer.
	EqEnable bool
	EqFreq   [EqBands]float64
	EqGain   [EqBands]float64

	// AM carrier.
	AmCarrierLevel float64

	// CW.
	CWRing         CWRing
	cwKeyDown      bool
	cwWait         int
	cwNextDown     bool
	cwHavePending  bool
	cwDelay        int
	cwRampMu       sync.Mutex
	cwRampRF       []float64
	cwRampRFPtr    int
	cwRampAudio    []float64
	cwRampAudioPtr int
	CWKeyerSpeed   int // WPM
	CWRampWidthMs  int
	SidetoneFreq   int
	SidetoneVolume float64
	sidetonePhase  float64

	// SWR protection: two successive readings at or above the
	// alarm while keyed (and not tuning) zero the drive.
	SwrProtection bool
	SwrAlarm      float64
	swrCount      int
	HighSwrSeen   bool
	Swr           float64
	Fwd           float64
	Alc           float64
	ExciterPower  float64

	// Two-tone oscillators.
	ttPhase1 float64
	ttPhase2 float64

	// Display.
	displayMu           sync.Mutex
	analyzer            SpectrumAnalyzer
	Width               int
	Fps                 int
	FFTSize             int
	PixelSamples        []float32
	DisplayDetectorMode int
	DisplayAverageMode  int
	DisplayAverageTime  float64

	// Routing hooks, all optional.
	LocalMicSample  func() (int16, bool) // local microphone device
	RemoteMicSample func() (int16, bool) // authenticated remote client
	CaptureReplay   func() (float64, bool)
	CaptureDone     func()
	RadioPTT        bool // PTT asserted by the radio itself

	EmitIQ       func(i, q float64) // to the wire engine
	EmitSidetone func(s float64)    // CW audio path
	PSCalibrate  func()             // two-tone auto attenuation
}

// NewTransmitter builds the single transmit chain.
func NewTransmitter(iqRate int, factory DSPFactory) *Transmitter {
	tx := &Transmitter{
		MicSampleRate:  48000,
		IQRate:         iqRate,
		Ratio:          iqRate / 48000,
		BufferSize:     1024,
		MicGain:        1.0,
		Drive:          50,
		TuneDrive:      10,
		CWKeyerSpeed:   18,
		SidetoneFreq:   700,
		SidetoneVolume: 0.2,
		FeedbackRx:     -1,
		Width:          800,
		Fps:            10,
		FFTSize:        2048,
		SwrAlarm:       3.0,
		factory:        factory,
	}
	if tx.Ratio < 1 {
		tx.Ratio = 1
	}
	tx.OutputSamples = tx.BufferSize * tx.Ratio
	tx.micInput = make([]float64, tx.BufferSize)
	tx.iqOutput = make([]float64, 2*tx.OutputSamples)
	tx.dsp = factory.NewTxChannel(tx.BufferSize, tx.MicSampleRate, iqRate)
	tx.analyzer = factory.NewSpectrumAnalyzer(tx.FFTSize, tx.Width)
	tx.PixelSamples = make([]float32, tx.Width)
	tx.SetRamps()
	return tx
}

// SetRamps regenerates both envelope tables. Called whenever the
// keyer speed or the ramp width changes.
func (tx *Transmitter) SetRamps() {
	tx.cwRampMu.Lock()
	defer tx.cwRampMu.Unlock()
	tx.CWRampWidthMs = cwRampWidthMs(tx.CWKeyerSpeed)
	tx.cwRampRF = cwRFRamp(48 * tx.Ratio * tx.CWRampWidthMs)
	tx.cwRampRFPtr = 0
	tx.cwRampAudio = cwAudioRamp(cwAudioRampLen)
	tx.cwRampAudioPtr = 0
}

func (tx *Transmitter) State() TxState {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// SetMox drives the RX->TX and TX->RX edges.
func (tx *Transmitter) SetMox(on bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if on && tx.state == TxIdle {
		tx.state = TxPttDown
		tx.samples = 0
		tx.swrCount = 0
		tx.state = TxTransmit
	} else if !on && (tx.state == TxTransmit || tx.state == TxPttDown) {
		tx.state = TxPttUp
		tx.samples = 0
		tx.cwRampRFPtr = 0
		tx.cwRampAudioPtr = 0
		tx.state = TxQuiet
		tx.state = TxIdle
	}
}

func (tx *Transmitter) Transmitting() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state == TxTransmit
}

// driveLevel returns the linear output scale for the current
// drive/tune settings.
func (tx *Transmitter) driveLevel() float64 {
	d := tx.Drive
	if tx.Tuning && tx.TuneUseDrive {
		d = tx.TuneDrive
	}
	if d < 0 {
		d = 0
	}
	if d > 100 {
		d = 100
	}
	return float64(d) / 100.0
}

// AddMicSample is the 48 kHz entry point. The routing rules pick
// the sample that actually counts:
//   - a local microphone replaces the radio-supplied sample, except
//     that radio PTT sums the two (headset plus hand mic),
//   - an authenticated remote client wins over both,
//   - capture replay wins over everything until the buffer drains.
func (tx *Transmitter) AddMicSample(radioSample int16) {
	sample := float64(radioSample) / 32768.0

	if tx.LocalMicSample != nil {
		if local, ok := tx.LocalMicSample(); ok {
			ls := float64(local) / 32768.0
			if tx.RadioPTT {
				sample += ls
			} else {
				sample = ls
			}
		}
	}
	if tx.RemoteMicSample != nil {
		if remote, ok := tx.RemoteMicSample(); ok {
			sample = float64(remote) / 32768.0
		}
	}
	if tx.CaptureReplay != nil {
		if s, ok := tx.CaptureReplay(); ok {
			sample = s
		} else if tx.CaptureDone != nil {
			tx.CaptureDone()
		}
	}

	sample *= tx.MicGain

	if modeIsCW(tx.Mode) && !tx.Tuning && !tx.TwoTone {
		tx.cwSample(sample)
		return
	}

	tx.micInput[tx.samples] = sample
	tx.samples++
	if tx.samples >= tx.BufferSize {
		tx.samples = 0
		tx.fullBuffer()
	}
}

// fullBuffer runs one DSP exchange (or the two-tone generator) and
// hands the IQ to the wire engine.
func (tx *Transmitter) fullBuffer() {
	if !tx.Transmitting() {
		return
	}

	if tx.Dexp {
		tx.applyDexp(tx.micInput)
	}
	if tx.Mode == ModeFMN && !tx.Tuning {
		for i := range tx.micInput {
			tx.micInput[i] *= fmMicBoost
		}
	}

	if tx.TwoTone {
		tx.generateTwoTone(tx.iqOutput)
	} else if err := tx.dsp.Exchange(tx.micInput, tx.iqOutput); err != nil {
		log.Printf("tx: dsp exchange: %v", err)
		return
	}

	tx.displayMu.Lock()
	if tx.analyzer != nil {
		tx.analyzer.Feed(tx.iqOutput)
	}
	tx.displayMu.Unlock()

	level := tx.driveLevel()
	if tx.EmitIQ != nil {
		for i := 0; i < tx.OutputSamples; i++ {
			tx.EmitIQ(tx.iqOutput[2*i]*level, tx.iqOutput[2*i+1]*level)
		}
	}
}

// generateTwoTone fills the IQ buffer with the standard linearity
// test signal: 700 and 1900 Hz at 0.5 each, negative frequencies
// for the lower-sideband family.
func (tx *Transmitter) generateTwoTone(iq []float64) {
	f1, f2 := twoToneLow, twoToneHigh
	switch tx.Mode {
	case ModeLSB, ModeCWL, ModeDIGL:
		f1, f2 = -f1, -f2
	}
	d1 := 2.0 * math.Pi * f1 / float64(tx.IQRate)
	d2 := 2.0 * math.Pi * f2 / float64(tx.IQRate)
	n := len(iq) / 2
	for i := 0; i < n; i++ {
		iq[2*i] = 0.5*math.Cos(tx.ttPhase1) + 0.5*math.Cos(tx.ttPhase2)
		iq[2*i+1] = 0.5*math.Sin(tx.ttPhase1) + 0.5*math.Sin(tx.ttPhase2)
		tx.ttPhase1 += d1
		tx.ttPhase2 += d2
	}
	// keep the phases bounded
	tx.ttPhase1 = math.Mod(tx.ttPhase1, 2.0*math.Pi)
	tx.ttPhase2 = math.Mod(tx.ttPhase2, 2.0*math.Pi)
}

// applyDexp runs the downward expander in place on the mic buffer.
// A simple envelope follower with attack/release and hold; below
// the trigger the gain drops by the expansion ratio.
func (tx *Transmitter) applyDexp(buf []float64) {
	trigger := math.Pow(10.0, tx.DexpTrigger/20.0)
	floorGain := math.Pow(10.0, -tx.DexpExp/20.0)
	attack := 1.0 - math.Exp(-1.0/(float64(tx.MicSampleRate)*tx.DexpAttack))
	release := 1.0 - math.Exp(-1.0/(float64(tx.MicSampleRate)*tx.DexpRelease))
	hold := int(tx.DexpHold * float64(tx.MicSampleRate))

	for i, s := range buf {
		mag := math.Abs(s)
		if mag > tx.dexpEnv {
			tx.dexpEnv += (mag - tx.dexpEnv) * attack
		} else {
			tx.dexpEnv += (mag - tx.dexpEnv) * release
		}
		if tx.dexpEnv >= trigger {
			tx.dexpHoldCnt = hold
		}
		gain := 1.0
		if tx.dexpEnv < trigger {
			if tx.dexpHoldCnt > 0 {
				tx.dexpHoldCnt--
			} else {
				gain = floorGain
			}
		}
		buf[i] = s * gain
	}
}

// cwSample handles one 48 kHz tick in CW mode. The DSP is fed
// silence so its internal state keeps tracking, its output is
// discarded, and the RF envelope comes from the ramp table applied
// to a zero-frequency carrier: I = ramp, Q = 0.
func (tx *Transmitter) cwSample(sample float64) {
	// feed the DSP to keep it primed, discard the result
	tx.micInput[tx.samples] = 0
	tx.samples++
	if tx.samples >= tx.BufferSize {
		tx.samples = 0
		if tx.Transmitting() {
			_ = tx.dsp.Exchange(tx.micInput, tx.iqOutput)
		}
	}

	tx.advanceKeyState()

	tx.cwRampMu.Lock()
	level := tx.driveLevel()
	rfLen := len(tx.cwRampRF) - 1
	for j := 0; j < tx.Ratio; j++ {
		if tx.cwKeyDown && tx.cwRampRFPtr < rfLen {
			tx.cwRampRFPtr++
		} else if !tx.cwKeyDown && tx.cwRampRFPtr > 0 {
			tx.cwRampRFPtr--
		}
		if tx.EmitIQ != nil && tx.Transmitting() {
			tx.EmitIQ(tx.cwRampRF[tx.cwRampRFPtr]*level, 0.0)
		}
	}

	audioLen := len(tx.cwRampAudio) - 1
	if tx.cwKeyDown && tx.cwRampAudioPtr < audioLen {
		tx.cwRampAudioPtr++
	} else if !tx.cwKeyDown && tx.cwRampAudioPtr > 0 {
		tx.cwRampAudioPtr--
	}
	if tx.EmitSidetone != nil {
		st := tx.sidetone() * tx.cwRampAudio[tx.cwRampAudioPtr]
		tx.EmitSidetone(st)
	}
	tx.cwRampMu.Unlock()
}

// advanceKeyState consumes the event ring at sample pace and
// enforces the 20-second stuck-key release.
func (tx *Transmitter) advanceKeyState() {
	if tx.cwHavePending {
		if tx.cwWait > 0 {
			tx.cwWait--
		}
		if tx.cwWait == 0 {
			tx.setKey(tx.cwNextDown)
			tx.cwHavePending = false
		}
	}
	if !tx.cwHavePending {
		if down, wait, ok := tx.CWRing.Dequeue(); ok {
			if wait == 0 {
				tx.setKey(down)
			} else {
				tx.cwNextDown = down
				tx.cwWait = wait
				tx.cwHavePending = true
			}
		}
	}

	if tx.cwKeyDown {
		tx.cwDelay++
		if tx.cwDelay > cwKeyTimeoutSamples {
			log.Printf("keyer: key-down timeout, forcing key-up")
			tx.setKey(false)
		}
	}
}

func (tx *Transmitter) setKey(down bool) {
	if down && !tx.cwKeyDown {
		tx.cwDelay = 0
	}
	tx.cwKeyDown = down
}

// sidetone is a phase-continuous sine generator at the keyer
// sidetone frequency.
func (tx *Transmitter) sidetone() float64 {
	v := tx.SidetoneVolume * math.Sin(tx.sidetonePhase)
	tx.sidetonePhase += 2.0 * math.Pi * float64(tx.SidetoneFreq) / float64(tx.MicSampleRate)
	if tx.sidetonePhase > 2.0*math.Pi {
		tx.sidetonePhase -= 2.0 * math.Pi
	}
	return v
}

// SetMeterReadings ingests forward/reverse power from the wire
// engine and applies SWR protection: two successive readings at or
// above the alarm, keyed and not tuning, force the drive to zero.
func (tx *Transmitter) SetMeterReadings(fwd, rev float64) {
	tx.Fwd = fwd
	if fwd <= 0.0 {
		tx.Swr = 1.0
		tx.swrCount = 0
		return
	}
	rho := math.Sqrt(rev / fwd)
	if rho >= 1.0 {
		tx.Swr = 99.9
	} else {
		tx.Swr = (1.0 + rho) / (1.0 - rho)
	}

	if !tx.SwrProtection || tx.Tuning || !tx.Transmitting() {
		tx.swrCount = 0
		return
	}
	if tx.Swr >= tx.SwrAlarm {
		tx.swrCount++
		if tx.swrCount >= 2 {
			log.Printf("tx: SWR %.1f above alarm %.1f, drive forced to zero", tx.Swr, tx.SwrAlarm)
			tx.Drive = 0
			tx.HighSwrSeen = true
		}
	} else {
		tx.swrCount = 0
	}
}

// ApplyFilter forwards the mode-derived passband. With use_rx_filter
// the store hands the active receiver's edges in instead.
func (tx *Transmitter) ApplyFilter(low, high int) {
	tx.FilterLow = low
	tx.FilterHigh = high
	if tx.dsp != nil {
		tx.dsp.SetFilter(low, high)
	}
}

func (tx *Transmitter) ApplyCompressor() {
	if tx.dsp != nil {
		tx.dsp.SetCompressor(tx.Compressor, tx.CompressorLevel)
	}
	// CESSB overshoot control follows the classical compressor
	// only; CFC alone leaves it off.
	tx.CessbOvershoot = tx.Compressor
}

func (tx *Transmitter) ApplyEqualizer() {
	if tx.dsp != nil {
		tx.dsp.SetEqualizer(tx.EqEnable, tx.EqFreq[:], tx.EqGain[:])
	}
}

// SetFFTSize swaps the TX analyzer resolution.
func (tx *Transmitter) SetFFTSize(size int) {
	if size < 512 || size > 262144 {
		return
	}
	tx.displayMu.Lock()
	defer tx.displayMu.Unlock()
	tx.FFTSize = size
	if tx.analyzer != nil {
		tx.analyzer.Close()
	}
	tx.analyzer = tx.factory.NewSpectrumAnalyzer(tx.FFTSize, tx.Width)
}

// SpectrumFrame renders the TX panadapter row.
func (tx *Transmitter) SpectrumFrame() []float32 {
	tx.displayMu.Lock()
	defer tx.displayMu.Unlock()
	if tx.analyzer == nil || !tx.analyzer.Pixels(tx.PixelSamples) {
		return nil
	}
	out := make([]float32, len(tx.PixelSamples))
	copy(out, tx.PixelSamples)
	return out
}

func (tx *Transmitter) Close() {
	if tx.dsp != nil {
		tx.dsp.Close()
	}
	tx.displayMu.Lock()
	if tx.analyzer != nil {
		tx.analyzer.Close()
		tx.analyzer = nil
	}
	tx.displayMu.Unlock()
}
