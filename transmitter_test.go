package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTx(iqRate int) *Transmitter {
	tx := NewTransmitter(iqRate, NewBaselineDSP())
	tx.Drive = 100
	return tx
}

func TestSwrProtectionTriggersOnTwoReadings(t *testing.T) {
	tx := newTestTx(192000)
	tx.SwrProtection = true
	tx.SwrAlarm = 3.0
	tx.SetMox(true)
	require.True(t, tx.Transmitting())

	// fwd/rev chosen so swr comes out just above 3.1
	fwd, rev := 100.0, 26.5 // rho ~ 0.515 -> swr ~ 3.12

	tx.SetMeterReadings(fwd, rev)
	assert.Greater(t, tx.Swr, 3.0)
	assert.NotEqual(t, 0, tx.Drive, "one reading must not trip protection")
	assert.False(t, tx.HighSwrSeen)

	tx.SetMeterReadings(fwd, rev)
	assert.Equal(t, 0, tx.Drive, "second reading trips protection")
	assert.True(t, tx.HighSwrSeen)
}

func TestSwrProtectionIgnoredWhileTuning(t *testing.T) {
	tx := newTestTx(192000)
	tx.SwrProtection = true
	tx.SwrAlarm = 3.0
	tx.Tuning = true
	tx.SetMox(true)

	tx.SetMeterReadings(100.0, 26.5)
	tx.SetMeterReadings(100.0, 26.5)
	assert.Equal(t, 100, tx.Drive)
	assert.False(t, tx.HighSwrSeen)
}

func TestSwrProtectionResetsOnGoodReading(t *testing.T) {
	tx := newTestTx(192000)
	tx.SwrProtection = true
	tx.SwrAlarm = 3.0
	tx.SetMox(true)

	tx.SetMeterReadings(100.0, 26.5)
	tx.SetMeterReadings(100.0, 1.0) // swr ~ 1.2 clears the strike
	tx.SetMeterReadings(100.0, 26.5)
	assert.Equal(t, 100, tx.Drive, "non-consecutive alarms must not trip")
}

// CW envelope: a 60 ms dot at ratio 4 produces an RF envelope whose
// rise and fall match the precomputed ramp and whose flat top is
// exactly 1.0.
func TestCWEnvelopeMatchesRamp(t *testing.T) {
	tx := newTestTx(192000) // ratio 4
	require.Equal(t, 4, tx.Ratio)
	tx.Mode = ModeCWU
	tx.CWKeyerSpeed = 15 // 7 ms ramp
	tx.SetRamps()

	rampLen := 48 * 4 * 7 // 1344 RF samples
	require.Len(t, tx.cwRampRF, rampLen+1)

	var envelope []float64
	tx.EmitIQ = func(i, q float64) {
		assert.Equal(t, 0.0, q, "CW carrier is I-only")
		envelope = append(envelope, i)
	}
	tx.SetMox(true)

	const dotMicSamples = 60 * 48 // 60 ms at 48 kHz
	tx.CWRing.Enqueue(true, 0)
	for i := 0; i < dotMicSamples; i++ {
		tx.AddMicSample(0)
	}
	tx.CWRing.Enqueue(false, 0)
	for i := 0; i < dotMicSamples; i++ {
		tx.AddMicSample(0)
	}

	rfSamples := 2 * dotMicSamples * tx.Ratio
	require.Len(t, envelope, rfSamples)

	// rising edge follows the ramp table
	for i := 0; i < rampLen; i++ {
		assert.InDelta(t, tx.cwRampRF[i+1], envelope[i], 1e-9, "rise sample %d", i)
	}

	// flat top: everything between the edges is exactly 1.0
	center := dotMicSamples * tx.Ratio / 2
	assert.Equal(t, 1.0, envelope[center], "center sample must be full scale")
	for i := rampLen; i < dotMicSamples*tx.Ratio; i++ {
		assert.Equal(t, 1.0, envelope[i], "flat top sample %d", i)
	}

	// falling edge mirrors the ramp back down to zero
	fallStart := dotMicSamples * tx.Ratio
	for i := 0; i < rampLen; i++ {
		assert.InDelta(t, tx.cwRampRF[rampLen-1-i], envelope[fallStart+i], 1e-9, "fall sample %d", i)
	}
	assert.Equal(t, 0.0, envelope[len(envelope)-1])
}

func TestCWKeyTimeoutForcesKeyUp(t *testing.T) {
	tx := newTestTx(48000)
	tx.Mode = ModeCWU
	tx.SetMox(true)
	tx.EmitIQ = func(i, q float64) {}

	tx.CWRing.Enqueue(true, 0)
	tx.AddMicSample(0)
	require.True(t, tx.cwKeyDown)

	for i := 0; i < cwKeyTimeoutSamples+2; i++ {
		tx.AddMicSample(0)
	}
	assert.False(t, tx.cwKeyDown, "20 s stuck key must be released")
}

func TestTwoToneGenerator(t *testing.T) {
	tx := newTestTx(192000)
	tx.Mode = ModeUSB
	tx.TwoTone = true

	iq := make([]float64, 2*4096)
	tx.generateTwoTone(iq)

	var peak float64
	for i := 0; i < len(iq); i += 2 {
		mag := math.Hypot(iq[i], iq[i+1])
		if mag > peak {
			peak = mag
		}
	}
	// two 0.5 tones peak at 1.0 when they align
	assert.InDelta(t, 1.0, peak, 0.05)
}

func TestFMMicBoostIsFifteenDB(t *testing.T) {
	assert.InDelta(t, 15.0, 20.0*math.Log10(fmMicBoost), 0.01)
}

func TestMicRoutingRemoteOverridesLocal(t *testing.T) {
	tx := newTestTx(48000)
	tx.Mode = ModeUSB
	tx.SetMox(true)

	tx.LocalMicSample = func() (int16, bool) { return 1000, true }
	tx.RemoteMicSample = func() (int16, bool) { return 2000, true }

	tx.AddMicSample(500)
	assert.InDelta(t, 2000.0/32768.0, tx.micInput[0], 1e-9, "remote client wins")
}

func TestMicRoutingRadioPTTSumsLocal(t *testing.T) {
	tx := newTestTx(48000)
	tx.Mode = ModeUSB
	tx.SetMox(true)
	tx.RadioPTT = true
	tx.LocalMicSample = func() (int16, bool) { return 1000, true }

	tx.AddMicSample(500)
	assert.InDelta(t, 1500.0/32768.0, tx.micInput[0], 1e-9, "radio PTT sums the two mics")
}

func TestDexpGatesQuietInput(t *testing.T) {
	tx := newTestTx(48000)
	tx.Dexp = true
	tx.DexpTrigger = -20.0 // dB
	tx.DexpExp = 25.0
	tx.DexpAttack = 0.001
	tx.DexpRelease = 0.1
	tx.DexpHold = 0.0

	buf := make([]float64, 1024)
	for i := range buf {
		buf[i] = 0.001 // well below the trigger
	}
	tx.applyDexp(buf)
	assert.Less(t, math.Abs(buf[len(buf)-1]), 0.001, "quiet input is attenuated")
}
