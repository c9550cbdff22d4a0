package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestStepSnapsToGrid(t *testing.T) {
	v := VFO{Frequency: 14010037, Step: 100}
	v.ApplyStep(1)
	assert.Equal(t, int64(14010100), v.Frequency, "step snaps then moves")

	v.ApplyStep(-2)
	assert.Equal(t, int64(14009900), v.Frequency)
}

func TestMoveRounding(t *testing.T) {
	v := VFO{Frequency: 14010000, Step: 100}
	v.ApplyMove(37, false)
	assert.Equal(t, int64(14010037), v.Frequency)

	v.ApplyMove(37, true)
	assert.Equal(t, int64(14010100), v.Frequency, "round snaps to the step grid")
}

func TestCtunKeepsDisplayCenter(t *testing.T) {
	v := VFO{Frequency: 14150000, Step: 10}
	v.SetCTUN(true)
	assert.Equal(t, int64(14150000), v.CtunFrequency)
	assert.Equal(t, int64(0), v.Offset)

	v.ApplyMove(5000, false)
	assert.Equal(t, int64(14150000), v.Frequency, "display center stays put in CTUN")
	assert.Equal(t, int64(14155000), v.CtunFrequency)
	assert.Equal(t, int64(5000), v.Offset)

	v.SetCTUN(false)
	assert.Equal(t, int64(14155000), v.Frequency, "leaving CTUN carries the tuned frequency")
	assert.Equal(t, int64(0), v.Offset)
}

func TestCtunWindowReset(t *testing.T) {
	v := VFO{Frequency: 14150000, Step: 10}
	v.SetCTUN(true)
	v.ApplyMove(300000, false) // outside a 384k window? no: half is 192k

	v.ResetCTUNWindow(384000)
	assert.Equal(t, int64(0), v.Offset, "offset beyond the half-window recenters")
	assert.Equal(t, int64(14450000), v.Frequency)
}

func TestRitXitFolding(t *testing.T) {
	v := VFO{Frequency: 7100000, Rit: 200, Xit: -300}
	assert.Equal(t, int64(7100000), v.RxFrequency())

	v.RitEnabled = true
	v.XitEnabled = true
	assert.Equal(t, int64(7100200), v.RxFrequency())
	assert.Equal(t, int64(7099700), v.TxFrequency())
}

func TestTransverterLOSubtraction(t *testing.T) {
	v := VFO{Frequency: 144300000, LO: 116000000}
	assert.Equal(t, int64(28300000), v.RxFrequency(), "the radio is tuned to the IF")
}

func TestFilterEdgesCWFoldsPitch(t *testing.T) {
	low, high := FilterEdges(ModeCWU, 4, 700)
	assert.Equal(t, 450, low)
	assert.Equal(t, 950, high)

	// CWL mirrors the passband below the carrier
	low, high = FilterEdges(ModeCWL, 4, 700)
	assert.Equal(t, -950, low)
	assert.Equal(t, -450, high)
}

func TestFilterEdgesLSBMirrors(t *testing.T) {
	ulow, uhigh := FilterEdges(ModeUSB, 5, 0)
	llow, lhigh := FilterEdges(ModeLSB, 5, 0)
	assert.Equal(t, -uhigh, llow)
	assert.Equal(t, -ulow, lhigh)
}

func TestFilterEdgesClampIndex(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mode := rapid.IntRange(0, Modes-1).Draw(t, "mode")
		filter := rapid.IntRange(-5, Filters+5).Draw(t, "filter")
		low, high := FilterEdges(mode, filter, 700)
		assert.Less(t, low, high, "edges stay ordered for any input")
	})
}

func TestVarFilterUpdate(t *testing.T) {
	SetVarFilter(ModeUSB, FilterVar1, 100, 2000)
	low, high := FilterEdges(ModeUSB, FilterVar1, 0)
	assert.Equal(t, 100, low)
	assert.Equal(t, 2000, high)

	// Var edits never touch the fixed entries
	low, high = FilterEdges(ModeUSB, 5, 0)
	assert.Equal(t, 150, low)
	assert.Equal(t, 2850, high)
}

func TestBandForFrequency(t *testing.T) {
	bands := NewBandTable()
	assert.Equal(t, Band40, BandForFrequency(bands, 7100000))
	assert.Equal(t, Band20, BandForFrequency(bands, 14200000))
	assert.Equal(t, BandGen, BandForFrequency(bands, 4000001), "gaps fall back to GEN")

	// transverter slots take precedence once configured
	bands[BandXvtrFirst].Title = "2M"
	bands[BandXvtrFirst].FrequencyMin = 144000000
	bands[BandXvtrFirst].FrequencyMax = 146000000
	assert.Equal(t, BandXvtrFirst, BandForFrequency(bands, 144300000))
}
