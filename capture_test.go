package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRecordReplay(t *testing.T) {
	c := NewCaptureBuffer()

	stereo := []float64{0.5, 0.5, -0.25, -0.25}
	require.True(t, c.Record(stereo))

	s, ok := c.NextReplaySample()
	require.True(t, ok)
	assert.InDelta(t, 0.5, s, 1e-9)
	s, ok = c.NextReplaySample()
	require.True(t, ok)
	assert.InDelta(t, -0.25, s, 1e-9)
	_, ok = c.NextReplaySample()
	assert.False(t, ok, "replay ends at the buffer end")

	c.RewindReplay()
	s, ok = c.NextReplaySample()
	require.True(t, ok)
	assert.InDelta(t, 0.5, s, 1e-9)
}

func TestCaptureStereoAveraging(t *testing.T) {
	c := NewCaptureBuffer()
	c.Record([]float64{1.0, 0.0})
	s, _ := c.NextReplaySample()
	assert.InDelta(t, 0.5, s, 1e-9)
}

func TestCaptureFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.zst")

	c := NewCaptureBuffer()
	for i := 0; i < 4800; i++ {
		c.Record([]float64{0.25, 0.25})
	}
	require.NoError(t, c.SaveFile(path))

	d := NewCaptureBuffer()
	require.NoError(t, d.LoadFile(path))

	for i := 0; i < 4800; i++ {
		s, ok := d.NextReplaySample()
		require.True(t, ok, "sample %d", i)
		assert.InDelta(t, 0.25, s, 1e-3)
	}
	_, ok := d.NextReplaySample()
	assert.False(t, ok)
}

func TestCaptureClear(t *testing.T) {
	c := NewCaptureBuffer()
	c.Record([]float64{0.5, 0.5})
	c.Clear()
	_, ok := c.NextReplaySample()
	assert.False(t, ok)
}
