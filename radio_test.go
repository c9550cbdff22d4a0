package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeChangeDerivesFilter(t *testing.T) {
	r := testRadio(t)

	r.SetMode(VfoA, ModeCWU)
	rx := r.Receivers[0]
	low, high := FilterEdges(ModeCWU, r.VFO[VfoA].Filter, r.Tx.SidetoneFreq)
	assert.Equal(t, low, rx.FilterLow)
	assert.Equal(t, high, rx.FilterHigh)
	assert.Equal(t, ModeCWU, r.Tx.Mode, "TX follows the controlling VFO's mode")
}

func TestUseRxFilterCopiesEdges(t *testing.T) {
	r := testRadio(t)
	r.UseRxFilter = true

	r.SetMode(VfoA, ModeLSB)
	assert.Equal(t, r.Receivers[0].FilterLow, r.Tx.FilterLow)
	assert.Equal(t, r.Receivers[0].FilterHigh, r.Tx.FilterHigh)
}

func TestP1SampleRateSlaving(t *testing.T) {
	r := testRadio(t) // 2 local receivers, protocol 1

	r.SetSampleRate(0, 96000)
	assert.Equal(t, 96000, r.Receivers[0].SampleRate)
	assert.Equal(t, 96000, r.Receivers[1].SampleRate, "RX1 is slaved to RX0 on protocol 1")
}

func TestP1SampleRateCap(t *testing.T) {
	r := testRadio(t)
	r.SetSampleRate(0, 768000)
	assert.Equal(t, 384000, r.Receivers[0].SampleRate, "protocol 1 caps at 384k")
}

func TestOutOfBandMoxRefused(t *testing.T) {
	r := testRadio(t)
	r.TxOutOfBandAllowed = false

	// drag VFO A outside the 20m band edges without a band change
	r.VFO[VfoA].Frequency = 14500000

	r.SetMox(true)
	assert.False(t, r.Mox, "out-of-band TX must be refused")
	assert.True(t, r.OutOfBand, "the warning flag is raised")

	// the flag clears itself after one second
	require.Eventually(t, func() bool {
		r.Lock()
		defer r.Unlock()
		return !r.OutOfBand
	}, 3*time.Second, 50*time.Millisecond)
}

func TestOutOfBandAllowedOverride(t *testing.T) {
	r := testRadio(t)
	r.TxOutOfBandAllowed = true
	r.VFO[VfoA].Frequency = 14500000
	r.SetMox(true)
	assert.True(t, r.Mox)
}

func TestTxVfoDerivation(t *testing.T) {
	r := testRadio(t)

	assert.Equal(t, VfoA, r.TxVfoIndex())
	r.Split = true
	assert.Equal(t, VfoB, r.TxVfoIndex())
	r.SatMode = SatModeRSat
	assert.Equal(t, VfoA, r.TxVfoIndex(), "RSAT inverts split")
	r.Split = false
	assert.Equal(t, VfoB, r.TxVfoIndex())
}

func TestBandSelectLoadsStackEntry(t *testing.T) {
	r := testRadio(t)

	r.SelectBand(VfoA, Band40)
	v := &r.VFO[VfoA]
	assert.Equal(t, Band40, v.Band)
	assert.Equal(t, r.Bands[Band40].Stack[r.Bands[Band40].Current].Frequency, v.Frequency)

	// re-selecting the active band cycles the stack
	first := v.Frequency
	r.SelectBand(VfoA, Band40)
	assert.NotEqual(t, first, v.Frequency)
}

func TestBandChangeRemembersOldEntry(t *testing.T) {
	r := testRadio(t)

	r.SelectBand(VfoA, Band40)
	r.VFO[VfoA].ApplyMoveTo(7123450)
	r.SelectBand(VfoA, Band80)
	r.SelectBand(VfoA, Band40)
	assert.Equal(t, int64(7123450), r.VFO[VfoA].Frequency, "the bandstack keeps the last frequency")
}

func TestBandIndexOutOfRangeIgnored(t *testing.T) {
	r := testRadio(t)
	before := r.VFO[VfoA].Band
	r.SelectBand(VfoA, 999)
	assert.Equal(t, before, r.VFO[VfoA].Band)
}

func TestMemoryStoreRecall(t *testing.T) {
	r := testRadio(t)

	r.VFO[VfoA].ApplyMoveTo(14222000)
	r.SetMode(VfoA, ModeUSB)
	r.StoreMemory(2)

	r.VFO[VfoA].ApplyMoveTo(14010000)
	r.SetMode(VfoA, ModeCWU)

	r.RecallMemory(2)
	assert.Equal(t, int64(14222000), r.VFO[VfoA].Frequency)
	assert.Equal(t, ModeUSB, r.VFO[VfoA].Mode)
}

func TestMemoryIndexClamped(t *testing.T) {
	r := testRadio(t)
	r.StoreMemory(-1)
	r.StoreMemory(MemorySlots) // both silently ignored
}

func TestLockBlocksTuning(t *testing.T) {
	r := testRadio(t)
	before := r.VFO[VfoA].Frequency
	r.Locked = true
	r.VfoStep(VfoA, 10)
	r.VfoMove(VfoA, 5000, false)
	assert.Equal(t, before, r.VFO[VfoA].Frequency)
}

func TestDiversityPropagates(t *testing.T) {
	r := testRadio(t)
	r.SetDiversity(true, 1.0, 90.0)
	assert.True(t, r.DiversityEnabled)
	assert.InDelta(t, 0.0, r.Receivers[0].divCos, 1e-9)
	assert.InDelta(t, 1.0, r.Receivers[0].divSin, 1e-9)
}

func TestFeedbackReceiverExists(t *testing.T) {
	r := testRadio(t)
	require.Greater(t, len(r.Receivers), r.LocalReceivers, "HPSDR radios get a PureSignal feedback tap")
	fb := r.Receivers[len(r.Receivers)-1]
	assert.True(t, fb.IsFeedback(r.LocalReceivers))
	assert.Equal(t, r.LocalReceivers, r.Tx.FeedbackRx)
}

func TestCaptureLifecycle(t *testing.T) {
	r := testRadio(t)

	r.SetCaptureState(CaptureRecording)
	require.Equal(t, CaptureRecording, r.CaptureState())
	rx := r.Receivers[r.ActiveReceiver]
	require.NotNil(t, rx.CaptureAudio)
	rx.CaptureAudio([]float64{0.5, 0.5, -0.25, -0.25})

	r.SetCaptureState(CaptureReplaying)
	require.NotNil(t, r.Tx.CaptureReplay)
	require.Nil(t, rx.CaptureAudio)

	s, ok := r.Tx.CaptureReplay()
	require.True(t, ok)
	assert.InDelta(t, 0.5, s, 1e-9)
	s, ok = r.Tx.CaptureReplay()
	require.True(t, ok)
	assert.InDelta(t, -0.25, s, 1e-9)

	// drained: the transmitter's done hook flips the state
	_, ok = r.Tx.CaptureReplay()
	require.False(t, ok)
	r.Tx.CaptureDone()
	assert.Equal(t, CaptureReplayDone, r.CaptureState())
}
