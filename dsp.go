package main

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// DSP capability surface. The heavy filtering/AGC/noise-reduction
// math lives in an external library; the engines only depend on the
// interfaces below, one channel handle per receiver or transmitter.
// The built-in baseline implementation is good enough to run the
// radio and the tests without that library: a mixer-free passband
// with decimation on RX, interpolation on TX, and a real FFT
// panadapter.

// RxChannel turns buffer_size IQ samples into output_samples audio
// samples (stereo interleaved).
type RxChannel interface {
	// Exchange consumes len(iq)/2 IQ pairs and fills audio with
	// interleaved stereo output. Short and bounded.
	Exchange(iq []float64, audio []float64) error
	SetFilter(low, high int)
	SetMode(mode int)
	SetAGC(agc int, gain, hang, thresh, hangThresh float64)
	SetNoise(nb, nr int, anf, snb bool)
	SetEqualizer(enable bool, freq, gain []float64)
	Close()
}

// TxChannel turns mic samples into IQ samples at the DSP rate.
type TxChannel interface {
	Exchange(mic []float64, iq []float64) error
	SetFilter(low, high int)
	SetMode(mode int)
	SetCompressor(enable bool, level float64)
	SetEqualizer(enable bool, freq, gain []float64)
	Close()
}

// SpectrumAnalyzer accumulates IQ and renders pixel rows.
type SpectrumAnalyzer interface {
	// Feed adds buffer_size IQ pairs.
	Feed(iq []float64)
	// Pixels renders the latest frame into out (len = pixels) and
	// reports whether a complete frame was available.
	Pixels(out []float32) bool
	Close()
}

// DSPFactory creates channels; swapping in the external library is
// a matter of providing another factory.
type DSPFactory interface {
	NewRxChannel(bufferSize, sampleRate, outputRate int) RxChannel
	NewTxChannel(bufferSize, micRate, iqRate int) TxChannel
	NewSpectrumAnalyzer(fftSize, pixels int) SpectrumAnalyzer
}

type baselineFactory struct{}

// NewBaselineDSP returns the built-in DSP implementation.
func NewBaselineDSP() DSPFactory { return baselineFactory{} }

func (baselineFactory) NewRxChannel(bufferSize, sampleRate, outputRate int) RxChannel {
	ratio := sampleRate / outputRate
	if ratio < 1 {
		ratio = 1
	}
	return &baselineRx{ratio: ratio, agcGain: 1.0}
}

func (baselineFactory) NewTxChannel(bufferSize, micRate, iqRate int) TxChannel {
	ratio := iqRate / micRate
	if ratio < 1 {
		ratio = 1
	}
	return &baselineTx{ratio: ratio}
}

func (baselineFactory) NewSpectrumAnalyzer(fftSize, pixels int) SpectrumAnalyzer {
	return newFFTAnalyzer(fftSize, pixels)
}

// baselineRx: boxcar decimator with a running DC block. Stands in
// for the external demodulator.
type baselineRx struct {
	ratio   int
	agcGain float64
	dc      float64
}

func (c *baselineRx) Exchange(iq []float64, audio []float64) error {
	n := len(audio) / 2
	for i := 0; i < n; i++ {
		var acc float64
		for j := 0; j < c.ratio; j++ {
			idx := 2 * (i*c.ratio + j)
			if idx < len(iq) {
				acc += iq[idx]
			}
		}
		s := acc / float64(c.ratio)
		c.dc += (s - c.dc) * 1e-4
		s = (s - c.dc) * c.agcGain
		audio[2*i] = s
		audio[2*i+1] = s
	}
	return nil
}

func (c *baselineRx) SetFilter(low, high int) {}
func (c *baselineRx) SetMode(mode int)        {}
func (c *baselineRx) SetAGC(agc int, gain, hang, thresh, hangThresh float64) {
	c.agcGain = math.Pow(10.0, gain/20.0)
}
func (c *baselineRx) SetNoise(nb, nr int, anf, snb bool)             {}
func (c *baselineRx) SetEqualizer(enable bool, freq, gain []float64) {}
func (c *baselineRx) Close()                                         {}

// baselineTx: zero-order-hold interpolator producing a DSB signal
// from the mic stream.
type baselineTx struct {
	ratio int
}

func (c *baselineTx) Exchange(mic []float64, iq []float64) error {
	n := len(iq) / 2
	for i := 0; i < n; i++ {
		src := i / c.ratio
		var s float64
		if src < len(mic) {
			s = mic[src]
		}
		iq[2*i] = s
		iq[2*i+1] = 0
	}
	return nil
}

func (c *baselineTx) SetFilter(low, high int)                        {}
func (c *baselineTx) SetMode(mode int)                               {}
func (c *baselineTx) SetCompressor(enable bool, level float64)       {}
func (c *baselineTx) SetEqualizer(enable bool, freq, gain []float64) {}
func (c *baselineTx) Close()                                         {}

// fftAnalyzer renders a panadapter row with a Blackman-Harris
// windowed complex FFT.
type fftAnalyzer struct {
	mu      sync.Mutex
	fftSize int
	pixels  int
	fft     *fourier.CmplxFFT
	win     []float64
	acc     []complex128
	fill    int
	frame   []float64
	ready   bool
}

func newFFTAnalyzer(fftSize, pixels int) *fftAnalyzer {
	win := make([]float64, fftSize)
	for i := range win {
		win[i] = 1.0
	}
	window.BlackmanHarris(win)
	return &fftAnalyzer{
		fftSize: fftSize,
		pixels:  pixels,
		fft:     fourier.NewCmplxFFT(fftSize),
		win:     win,
		acc:     make([]complex128, fftSize),
		frame:   make([]float64, pixels),
	}
}

func (a *fftAnalyzer) Feed(iq []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(iq); i += 2 {
		a.acc[a.fill] = complex(iq[i], iq[i+1])
		a.fill++
		if a.fill == a.fftSize {
			a.render()
			a.fill = 0
		}
	}
}

// render computes one dBFS row, center frequency in the middle.
func (a *fftAnalyzer) render() {
	in := make([]complex128, a.fftSize)
	for i := range in {
		in[i] = a.acc[i] * complex(a.win[i], 0)
	}
	out := a.fft.Coefficients(nil, in)

	// FFT order is DC-first; rotate so the panadapter center is
	// the channel center.
	half := a.fftSize / 2
	for p := 0; p < a.pixels; p++ {
		bin := p * a.fftSize / a.pixels
		bin = (bin + half) % a.fftSize
		mag := cmplx.Abs(out[bin]) / float64(a.fftSize)
		db := -200.0
		if mag > 1e-10 {
			db = 20.0 * math.Log10(mag)
		}
		a.frame[p] = db
	}
	a.ready = true
}

func (a *fftAnalyzer) Pixels(out []float32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready {
		return false
	}
	n := len(out)
	if n > a.pixels {
		n = a.pixels
	}
	for i := 0; i < n; i++ {
		out[i] = float32(a.frame[i])
	}
	return true
}

func (a *fftAnalyzer) Close() {}
