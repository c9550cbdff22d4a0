package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCWRingBasic(t *testing.T) {
	var r CWRing
	assert.True(t, r.Empty())

	r.Enqueue(true, 0)
	r.Enqueue(false, 480)

	down, wait, ok := r.Dequeue()
	require.True(t, ok)
	assert.True(t, down)
	assert.Equal(t, 0, wait)

	down, wait, ok = r.Dequeue()
	require.True(t, ok)
	assert.False(t, down)
	assert.Equal(t, 480, wait)

	_, _, ok = r.Dequeue()
	assert.False(t, ok)
}

func TestCWRingDropsKeyDownWhenNearlyFull(t *testing.T) {
	var r CWRing
	// fill until fewer than 16 slots remain free
	for i := 0; i < cwRingSize-15; i++ {
		r.Enqueue(true, 1)
	}

	before := r.inpt.Load()
	r.Enqueue(true, 1) // key-down must be dropped
	assert.Equal(t, before, r.inpt.Load())

	r.Enqueue(false, 1) // key-up still goes in
	assert.NotEqual(t, before, r.inpt.Load())
}

func TestCWRingFullDropsEverything(t *testing.T) {
	var r CWRing
	for i := 0; i < cwRingSize-1; i++ {
		r.Enqueue(false, 1) // key-ups fill the ring completely
	}
	before := r.inpt.Load()
	r.Enqueue(false, 1) // literally full: even key-up is dropped
	assert.Equal(t, before, r.inpt.Load())
}

func TestRampWidthSelection(t *testing.T) {
	assert.Equal(t, 7, cwRampWidthMs(5))
	assert.Equal(t, 7, cwRampWidthMs(15))
	assert.Equal(t, 8, cwRampWidthMs(16))
	assert.Equal(t, 8, cwRampWidthMs(32))
	assert.Equal(t, 9, cwRampWidthMs(33))
	assert.Equal(t, 9, cwRampWidthMs(40))
}

func TestRFRampShape(t *testing.T) {
	width := 48 * 4 * 7 // 7 ms at the 4:1 DUC rate
	ramp := cwRFRamp(width)
	require.Len(t, ramp, width+1)

	assert.Equal(t, 0.0, ramp[0])
	assert.Equal(t, 1.0, ramp[width])

	// monotonically non-decreasing, bounded
	for i := 1; i <= width; i++ {
		assert.GreaterOrEqual(t, ramp[i], ramp[i-1]-1e-9, "dip at %d", i)
		assert.LessOrEqual(t, ramp[i], 1.0+1e-9)
	}
	// the midpoint of an odd-symmetric ramp sits at one half
	assert.InDelta(t, 0.5, ramp[width/2], 1e-6)
}

func TestAudioRampShape(t *testing.T) {
	ramp := cwAudioRamp(cwAudioRampLen)
	require.Len(t, ramp, cwAudioRampLen+1)
	assert.Equal(t, 0.0, ramp[0])
	assert.InDelta(t, 1.0, ramp[cwAudioRampLen], 1e-12)
	assert.InDelta(t, 0.5, ramp[cwAudioRampLen/2], 1e-12)
}
