package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestRx(t *testing.T, rate int) *Receiver {
	t.Helper()
	rx := NewReceiver(0, 0, rate, 800, NewBaselineDSP())
	rx.Run()
	t.Cleanup(rx.Close)
	return rx
}

// pixels = width * zoom and hz_per_pixel * pixels = sample_rate
// must hold through any sequence of zoom/width changes.
func TestDisplayGeometryInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rx := NewReceiver(0, 0, 384000, 800, NewBaselineDSP())
		defer rx.Close()

		n := rapid.IntRange(1, 8).Draw(t, "ops")
		for i := 0; i < n; i++ {
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				rx.SetZoom(rapid.IntRange(1, 8).Draw(t, "zoom"), 0)
			case 1:
				rx.SetWidth(rapid.SampledFrom([]int{600, 800, 1024, 1280}).Draw(t, "width"))
			case 2:
				rx.SetPan(rapid.IntRange(-100, 10000).Draw(t, "pan"))
			}
		}

		assert.Equal(t, rx.Width*rx.Zoom, rx.Pixels)
		assert.InDelta(t, float64(rx.SampleRate), rx.HzPerPixel*float64(rx.Pixels), 1e-6)
		assert.GreaterOrEqual(t, rx.Pan, 0)
		assert.LessOrEqual(t, rx.Pan, rx.Width*(rx.Zoom-1))
	})
}

func TestZoomClampsToRange(t *testing.T) {
	rx := newTestRx(t, 384000)
	rx.SetZoom(0, 0)
	assert.Equal(t, 1, rx.Zoom)
	rx.SetZoom(99, 0)
	assert.Equal(t, 8, rx.Zoom)
}

func TestSampleRateChangeRecomputesOutput(t *testing.T) {
	rx := newTestRx(t, 384000)
	assert.Equal(t, 1024/8, rx.OutputSamples)

	rx.SetSampleRate(48000)
	assert.Equal(t, 1024, rx.OutputSamples)
	assert.Equal(t, RxRunning, rx.state, "running chain re-enters running")

	rx.SetSampleRate(192000)
	assert.Equal(t, 256, rx.OutputSamples)
	assert.InDelta(t, float64(192000)/float64(rx.Pixels), rx.HzPerPixel, 1e-9)
}

func TestFullBufferProducesAudio(t *testing.T) {
	rx := newTestRx(t, 48000)

	var audio []float64
	rx.LocalAudio = func(samples []float64) {
		audio = append(audio, samples...)
	}

	for i := 0; i < rx.BufferSize; i++ {
		rx.AddIQSamples(0.5, 0.0)
	}
	require.Len(t, audio, 2*rx.OutputSamples, "one exchange per full buffer")
}

func TestTxRxTailSuppression(t *testing.T) {
	rx := newTestRx(t, 48000)
	rx.TxrxMax = 100
	rx.NotifyTxRxTransition()

	for i := 0; i < rx.BufferSize; i++ {
		rx.AddIQSamples(1.0, 1.0)
	}

	// the first txrxmax ring slots must have been zeroed
	for i := 0; i < 100; i++ {
		assert.Equal(t, 0.0, rx.iqInput[2*i], "tail sample %d", i)
	}
	assert.Equal(t, 1.0, rx.iqInput[200], "later samples pass through")
}

func TestTailSuppressionDisabledByZero(t *testing.T) {
	rx := newTestRx(t, 48000)
	rx.TxrxMax = 0
	rx.NotifyTxRxTransition()
	rx.AddIQSamples(1.0, 1.0)
	assert.Equal(t, 1.0, rx.iqInput[0])
}

func TestDiversityMixing(t *testing.T) {
	rx := newTestRx(t, 48000)
	rx.SetDiversityGain(1.0, 90.0) // pure rotation by 90 degrees

	rx.AddDivIQSamples(0.0, 0.0, 1.0, 0.0)
	// (i1,q1)=(1,0) rotated 90deg -> (0,1)
	assert.InDelta(t, 0.0, rx.iqInput[0], 1e-9)
	assert.InDelta(t, 1.0, rx.iqInput[1], 1e-9)
}

func TestSpectrumFrameAfterFeed(t *testing.T) {
	rx := newTestRx(t, 48000)

	// feed enough buffers to fill one FFT
	for b := 0; b < rx.FFTSize/rx.BufferSize+1; b++ {
		for i := 0; i < rx.BufferSize; i++ {
			rx.AddIQSamples(0.25, 0.0)
		}
	}

	frame := rx.SpectrumFrame()
	require.NotNil(t, frame)
	assert.Len(t, frame, rx.Pixels)
}

func TestFeedbackReceiverIdentity(t *testing.T) {
	rx := NewReceiver(2, 0, 192000, 800, NewBaselineDSP())
	defer rx.Close()
	assert.True(t, rx.IsFeedback(2), "id >= local receiver count marks a feedback tap")
	assert.False(t, rx.IsFeedback(3))
}
