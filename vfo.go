package main

// The two VFOs. A VFO is pure frequency-control state; all side
// effects of changing it (retuning the wire engine, filter
// re-derivation, display updates) are applied by the state store.

const (
	VfoA = 0
	VfoB = 1
)

type VFO struct {
	Band              int
	Bandstack         int
	Frequency         int64
	Mode              int
	Filter            int
	CTUN              bool
	CtunFrequency     int64
	Rit               int64
	RitEnabled        bool
	Xit               int64
	XitEnabled        bool
	LO                int64
	Offset            int64
	RitStep           int
	Step              int64
	Deviation         int
	CwAudioPeakFilter bool
}

// CarrierFrequency is the frequency the radio is actually tuned
// to: in CTUN mode the display center stays put and the ctun
// frequency selects the signal inside the passband.
func (v *VFO) CarrierFrequency() int64 {
	if v.CTUN {
		return v.CtunFrequency
	}
	return v.Frequency
}

// RxFrequency folds in RIT.
func (v *VFO) RxFrequency() int64 {
	f := v.CarrierFrequency()
	if v.RitEnabled {
		f += v.Rit
	}
	return f - v.LO
}

// TxFrequency folds in XIT.
func (v *VFO) TxFrequency() int64 {
	f := v.CarrierFrequency()
	if v.XitEnabled {
		f += v.Xit
	}
	return f - v.LO
}

// ApplyStep moves the VFO by steps increments of its step size,
// rounding to a step boundary the way the original tuning knob
// does.
func (v *VFO) ApplyStep(steps int) {
	if steps == 0 || v.Step == 0 {
		return
	}
	f := v.CarrierFrequency()
	f = (f / v.Step) * v.Step // snap, then move
	f += int64(steps) * v.Step
	v.setCarrier(f)
}

// ApplyMove shifts by hz; when round is set the result snaps to the
// step grid (mouse-wheel tuning on the panadapter).
func (v *VFO) ApplyMove(hz int64, round bool) {
	f := v.CarrierFrequency() + hz
	if round && v.Step != 0 {
		f = ((f + v.Step/2) / v.Step) * v.Step
	}
	v.setCarrier(f)
}

// ApplyMoveTo tunes to an absolute frequency.
func (v *VFO) ApplyMoveTo(hz int64) {
	v.setCarrier(hz)
}

func (v *VFO) setCarrier(f int64) {
	if v.CTUN {
		v.CtunFrequency = f
		v.Offset = f - v.Frequency
	} else {
		v.Frequency = f
	}
}

// SetCTUN switches click-to-tune mode on or off. Turning it on
// starts with zero offset; turning it off carries the listening
// frequency over to the display center.
func (v *VFO) SetCTUN(state bool) {
	if state == v.CTUN {
		return
	}
	if state {
		v.CTUN = true
		v.CtunFrequency = v.Frequency
		v.Offset = 0
	} else {
		v.CTUN = false
		v.Frequency = v.CtunFrequency
		v.Offset = 0
	}
}

// ResetCTUNWindow re-centers a CTUN offset that no longer fits the
// sample-rate window after a rate or zoom change.
func (v *VFO) ResetCTUNWindow(sampleRate int) {
	if !v.CTUN {
		return
	}
	half := int64(sampleRate / 2)
	if v.Offset > half || v.Offset < -half {
		v.Frequency = v.CtunFrequency
		v.Offset = 0
	}
}

// CopyTo implements A->B (and B->A) including mode and filter.
func (v *VFO) CopyTo(dst *VFO) {
	dst.Band = v.Band
	dst.Bandstack = v.Bandstack
	dst.Frequency = v.Frequency
	dst.Mode = v.Mode
	dst.Filter = v.Filter
	dst.CTUN = v.CTUN
	dst.CtunFrequency = v.CtunFrequency
	dst.LO = v.LO
	dst.Offset = v.Offset
	dst.Deviation = v.Deviation
}

// LoadBandstack copies a stack entry into the VFO.
func (v *VFO) LoadBandstack(band int, stack int, e *BandstackEntry, b *Band) {
	v.Band = band
	v.Bandstack = stack
	v.Frequency = e.Frequency
	v.CtunFrequency = e.CtunFrequency
	v.CTUN = e.CTUN
	v.Mode = e.Mode
	v.Filter = e.Filter
	v.Deviation = e.Deviation
	v.LO = b.FrequencyLO + b.ErrorLO
	if v.CTUN {
		v.Offset = v.CtunFrequency - v.Frequency
	} else {
		v.Offset = 0
	}
}

// SaveBandstack copies the VFO back into a stack entry, so the band
// remembers where it was left.
func (v *VFO) SaveBandstack(e *BandstackEntry) {
	e.Frequency = v.Frequency
	e.CtunFrequency = v.CtunFrequency
	e.CTUN = v.CTUN
	e.Mode = v.Mode
	e.Filter = v.Filter
	e.Deviation = v.Deviation
}
