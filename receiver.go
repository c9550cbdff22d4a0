package main

import (
	"log"
	"math"
	"sync"
)

// Receive chain. A wire engine thread produces IQ pairs into the
// input ring; every buffer_size pairs the chain runs one DSP
// exchange and fans the audio out. Reconfiguration happens under
// rx.mu with the chain paused; spectrum readers and writers share
// rx.displayMu.

type RxState int

const (
	RxUninit RxState = iota
	RxReady
	RxRunning
	RxPaused
	RxClosing
)

// Receivers with id >= the local receiver count are PureSignal
// feedback taps: they exchange IQ but never produce audio.
type Receiver struct {
	ID  int
	ADC int

	mu        sync.Mutex // stream reconfiguration guard
	displayMu sync.Mutex // spectrum readers vs writers
	state     RxState

	SampleRate    int
	BufferSize    int
	DspSize       int
	FFTSize       int
	OutputSamples int

	iqInput     []float64 // 2*BufferSize interleaved I,Q
	samples     int
	audioOutput []float64 // 2*OutputSamples interleaved L,R

	dsp      RxChannel
	analyzer SpectrumAnalyzer
	factory  DSPFactory

	// Display geometry. pixels = width * zoom always holds;
	// hz_per_pixel * pixels = sample_rate.
	Width        int
	Zoom         int
	Pan          int
	Pixels       int
	HzPerPixel   float64
	Fps          int
	PixelSamples []float32

	PanadapterLow  int
	PanadapterHigh int
	WaterfallLow   int
	WaterfallHigh  int

	DisplayDetectorMode int
	DisplayAverageMode  int
	DisplayAverageTime  float64

	// Demod state mirrored from the store.
	FilterLow     int
	FilterHigh    int
	Volume        float64
	AGCMode       int
	AGCGain       float64
	AGCHang       float64
	AGCThresh     float64
	AGCHangThresh float64
	NB            int
	NR            int
	ANF           bool
	SNB           bool
	SquelchEnable bool
	Squelch       float64
	Binaural      bool
	EqEnable      bool
	EqFreq        [EqBands]float64
	EqGain        [EqBands]float64
	Dither        bool
	Random        bool
	Preamp        bool

	AlexAntenna     int
	AlexAttenuation int

	// Diversity mixer coefficients (two-ADC radios).
	divCos, divSin float64

	// TX->RX tail suppression: the first txrxmax samples after a
	// transition are zeroed (per-radio calibration; 0 disables).
	txrxCount int
	TxrxMax   int

	// Meter level (dBm) updated on each exchange. MeterPeak
	// selects the peak detector instead of the average.
	Meter     float64
	MeterPeak bool

	// Audio fan-out, all optional.
	LocalAudio   func(samples []float64)   // speaker
	RadioAudio   func(left, right float64) // HPSDR speaker path
	RemoteAudio  func(left, right int16)   // remote client stream
	CaptureAudio func(samples []float64)   // capture buffer

	// Fan-out gates owned by the store.
	FeedRadioAudio func() bool // duplex && !mute_rx_while_tx during TX
}

// NewReceiver allocates a ready chain. Sample rate must be a
// power-of-two multiple of 48 kHz.
func NewReceiver(id, adc, sampleRate, width int, factory DSPFactory) *Receiver {
	rx := &Receiver{
		ID:         id,
		ADC:        adc,
		BufferSize: 1024,
		DspSize:    2048,
		FFTSize:    2048,
		Width:      width,
		Zoom:       1,
		Fps:        10,
		Volume:     0.2,
		AGCGain:    80.0,
		factory:    factory,

		PanadapterLow:  -140,
		PanadapterHigh: -40,
		WaterfallLow:   -140,
		WaterfallHigh:  -40,
	}
	rx.setRateLocked(sampleRate)
	rx.iqInput = make([]float64, 2*rx.BufferSize)
	rx.recreateAnalyzerLocked()
	rx.dsp = factory.NewRxChannel(rx.BufferSize, rx.SampleRate, 48000)
	rx.state = RxReady
	return rx
}

func (rx *Receiver) setRateLocked(sampleRate int) {
	rx.SampleRate = sampleRate
	rx.OutputSamples = rx.BufferSize / (sampleRate / 48000)
	rx.audioOutput = make([]float64, 2*rx.OutputSamples)
	rx.Pixels = rx.Width * rx.Zoom
	rx.HzPerPixel = float64(sampleRate) / float64(rx.Pixels)
}

func (rx *Receiver) recreateAnalyzerLocked() {
	rx.displayMu.Lock()
	defer rx.displayMu.Unlock()
	if rx.analyzer != nil {
		rx.analyzer.Close()
	}
	rx.Pixels = rx.Width * rx.Zoom
	rx.HzPerPixel = float64(rx.SampleRate) / float64(rx.Pixels)
	rx.PixelSamples = make([]float32, rx.Pixels)
	rx.analyzer = rx.factory.NewSpectrumAnalyzer(rx.FFTSize, rx.Pixels)
}

// Run/Pause/Close drive the chain state machine. Reconfiguration is
// only legal in Ready or Paused.
func (rx *Receiver) Run() {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	if rx.state == RxReady || rx.state == RxPaused {
		rx.state = RxRunning
	}
}

func (rx *Receiver) Pause() {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	if rx.state == RxRunning {
		rx.state = RxPaused
		rx.samples = 0
	}
}

func (rx *Receiver) Close() {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	rx.state = RxClosing
	if rx.dsp != nil {
		rx.dsp.Close()
	}
	rx.displayMu.Lock()
	if rx.analyzer != nil {
		rx.analyzer.Close()
		rx.analyzer = nil
	}
	rx.displayMu.Unlock()
}

// IsFeedback reports a PureSignal feedback tap.
func (rx *Receiver) IsFeedback(localReceivers int) bool {
	return rx.ID >= localReceivers
}

// NotifyTxRxTransition arms the tail suppression window.
func (rx *Receiver) NotifyTxRxTransition() {
	rx.txrxCount = rx.TxrxMax
}

// AddIQSamples is the producer entry point, called from the wire
// engine reader for every IQ pair. Contention with a reconfigure is
// resolved by dropping the buffer rather than blocking the reader.
func (rx *Receiver) AddIQSamples(i, q float64) {
	if rx.txrxCount > 0 {
		i, q = 0, 0
		rx.txrxCount--
	}
	rx.iqInput[2*rx.samples] = i
	rx.iqInput[2*rx.samples+1] = q
	rx.samples++
	if rx.samples >= rx.BufferSize {
		rx.samples = 0
		rx.fullBuffer()
	}
}

// AddDivIQSamples mixes the second ADC in with the diversity
// rotation before the ring: (i0 + g·i1 rotated, q0 + g·q1 rotated).
func (rx *Receiver) AddDivIQSamples(i0, q0, i1, q1 float64) {
	i := i0 + rx.divCos*i1 - rx.divSin*q1
	q := q0 + rx.divSin*i1 + rx.divCos*q1
	rx.AddIQSamples(i, q)
}

// SetDiversityGain converts the store's polar gain/phase into the
// mixer coefficients.
func (rx *Receiver) SetDiversityGain(gain, phaseDeg float64) {
	rad := phaseDeg * math.Pi / 180.0
	rx.divCos = gain * math.Cos(rad)
	rx.divSin = gain * math.Sin(rad)
}

// fullBuffer pushes one input buffer through the DSP and fans the
// audio out. Runs on the wire engine thread.
func (rx *Receiver) fullBuffer() {
	if !rx.mu.TryLock() {
		return // reconfiguration in progress, skip this buffer
	}
	defer rx.mu.Unlock()
	if rx.state != RxRunning || rx.dsp == nil {
		return
	}

	if err := rx.dsp.Exchange(rx.iqInput, rx.audioOutput); err != nil {
		log.Printf("rx%d: dsp exchange: %v", rx.ID, err)
		return
	}

	rx.displayMu.Lock()
	if rx.analyzer != nil {
		rx.analyzer.Feed(rx.iqInput)
	}
	rx.displayMu.Unlock()

	rx.updateMeter()

	if rx.LocalAudio != nil {
		rx.LocalAudio(rx.audioOutput)
	}
	if rx.RadioAudio != nil && (rx.FeedRadioAudio == nil || rx.FeedRadioAudio()) {
		for i := 0; i < rx.OutputSamples; i++ {
			rx.RadioAudio(rx.audioOutput[2*i], rx.audioOutput[2*i+1])
		}
	}
	if rx.RemoteAudio != nil {
		for i := 0; i < rx.OutputSamples; i++ {
			rx.RemoteAudio(sampleToI16(rx.audioOutput[2*i]), sampleToI16(rx.audioOutput[2*i+1]))
		}
	}
	if rx.CaptureAudio != nil {
		rx.CaptureAudio(rx.audioOutput)
	}
}

// updateMeter computes the input power of the last buffer in dBm
// (relative full scale plus the usual HPSDR offset): the buffer's
// average power, or its largest sample power when MeterPeak is set.
func (rx *Receiver) updateMeter() {
	var acc, peak float64
	for i := 0; i < rx.BufferSize; i++ {
		re := rx.iqInput[2*i]
		im := rx.iqInput[2*i+1]
		p := re*re + im*im
		acc += p
		if p > peak {
			peak = p
		}
	}
	acc /= float64(rx.BufferSize)
	if rx.MeterPeak {
		acc = peak
	}
	if acc < 1e-20 {
		acc = 1e-20
	}
	rx.Meter = 10.0*math.Log10(acc) - 73.0
}

// SetSampleRate drains the chain and reallocates everything that
// depends on the rate, then re-enters running.
func (rx *Receiver) SetSampleRate(sampleRate int) {
	rx.mu.Lock()
	defer rx.mu.Unlock()

	wasRunning := rx.state == RxRunning
	rx.state = RxPaused
	rx.samples = 0

	rx.setRateLocked(sampleRate)
	if rx.dsp != nil {
		rx.dsp.Close()
	}
	rx.dsp = rx.factory.NewRxChannel(rx.BufferSize, rx.SampleRate, 48000)
	rx.dsp.SetFilter(rx.FilterLow, rx.FilterHigh)
	rx.recreateAnalyzerLocked()

	if wasRunning {
		rx.state = RxRunning
	} else {
		rx.state = RxReady
	}
	log.Printf("rx%d: sample rate %d, output samples %d", rx.ID, sampleRate, rx.OutputSamples)
}

// SetZoom recomputes the display geometry: pixels = width * zoom,
// pan re-clamped so the CTUN center stays visible, analyzer
// re-created at the new resolution.
func (rx *Receiver) SetZoom(zoom int, ctunOffset int64) {
	if zoom < 1 {
		zoom = 1
	}
	if zoom > 8 {
		zoom = 8
	}
	rx.mu.Lock()
	defer rx.mu.Unlock()
	rx.Zoom = zoom
	rx.clampPanLocked(ctunOffset)
	rx.recreateAnalyzerLocked()
}

// SetFFTSize swaps the analyzer resolution.
func (rx *Receiver) SetFFTSize(size int) {
	if size < 512 || size > 262144 {
		return
	}
	rx.mu.Lock()
	defer rx.mu.Unlock()
	rx.FFTSize = size
	rx.recreateAnalyzerLocked()
}

// SetWidth is called when the client display geometry changes.
func (rx *Receiver) SetWidth(width int) {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	rx.Width = width
	rx.clampPanLocked(0)
	rx.recreateAnalyzerLocked()
}

// SetPan clamps the requested offset into the zoomed range.
func (rx *Receiver) SetPan(pan int) {
	rx.mu.Lock()
	defer rx.mu.Unlock()
	rx.Pan = pan
	rx.clampPanLocked(0)
}

func (rx *Receiver) clampPanLocked(ctunOffset int64) {
	limit := rx.Width * (rx.Zoom - 1)
	if rx.Zoom > 1 && ctunOffset != 0 && rx.HzPerPixel > 0 {
		// keep the CTUN center pixel inside the visible window
		center := int(float64(ctunOffset)/rx.HzPerPixel) + rx.Width*rx.Zoom/2
		visible := rx.Width
		if center-rx.Pan < 0 {
			rx.Pan = center
		} else if center-rx.Pan >= visible {
			rx.Pan = center - visible + 1
		}
	}
	if rx.Pan < 0 {
		rx.Pan = 0
	}
	if rx.Pan > limit {
		rx.Pan = limit
	}
}

// ApplyFilter forwards the mode-derived passband to the DSP.
func (rx *Receiver) ApplyFilter(low, high int) {
	rx.FilterLow = low
	rx.FilterHigh = high
	if rx.dsp != nil {
		rx.dsp.SetFilter(low, high)
	}
}

// ApplyAGC re-derives thresholds after AGC or mode changes.
func (rx *Receiver) ApplyAGC() {
	if rx.dsp != nil {
		rx.dsp.SetAGC(rx.AGCMode, rx.AGCGain, rx.AGCHang, rx.AGCThresh, rx.AGCHangThresh)
	}
}

// ApplyNoise forwards the noise processing flags.
func (rx *Receiver) ApplyNoise() {
	if rx.dsp != nil {
		rx.dsp.SetNoise(rx.NB, rx.NR, rx.ANF, rx.SNB)
	}
}

// ApplyEqualizer forwards the 11-band equalizer.
func (rx *Receiver) ApplyEqualizer() {
	if rx.dsp != nil {
		rx.dsp.SetEqualizer(rx.EqEnable, rx.EqFreq[:], rx.EqGain[:])
	}
}

// SpectrumFrame renders the latest pixel row under the display
// mutex. Returns nil when no frame is ready.
func (rx *Receiver) SpectrumFrame() []float32 {
	rx.displayMu.Lock()
	defer rx.displayMu.Unlock()
	if rx.analyzer == nil || !rx.analyzer.Pixels(rx.PixelSamples) {
		return nil
	}
	out := make([]float32, len(rx.PixelSamples))
	copy(out, rx.PixelSamples)
	return out
}
