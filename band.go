package main

// Band tables. Fixed HF/VHF entries plus transverter (XVTR) slots.
// Selecting a band means choosing its active stack entry and
// copying it into the owning VFO; the reverse copy happens when the
// VFO leaves the band.

const (
	Band2200 = iota
	Band630
	Band160
	Band80
	Band60
	Band40
	Band30
	Band20
	Band17
	Band15
	Band12
	Band10
	Band6
	BandGen
	BandWWV
	BandXvtrFirst
	Bands = BandXvtrFirst + 8 // 8 transverter slots
)

// BandstackEntry is one remembered VFO configuration of a band.
type BandstackEntry struct {
	Frequency     int64
	CtunFrequency int64
	CTUN          bool
	Mode          int
	Filter        int
	Deviation     int
	CtcssEnabled  bool
	Ctcss         int
}

// Band carries the hardware programming that depends on the
// frequency range: open-collector outputs, antenna relays, alex
// attenuator and PA calibration.
type Band struct {
	Title           string
	OCrx            uint8
	OCtx            uint8
	AlexRxAntenna   int
	AlexTxAntenna   int
	AlexAttenuation int
	DisablePA       bool
	Gain            int
	PaCalibration   float64
	FrequencyMin    int64
	FrequencyMax    int64
	FrequencyLO     int64
	ErrorLO         int64

	Stack   []BandstackEntry
	Current int
}

func mkStack(entries ...BandstackEntry) []BandstackEntry { return entries }

// NewBandTable builds the default (region-independent subset of
// the) band plan. The properties file overrides everything here.
func NewBandTable() []*Band {
	bands := make([]*Band, Bands)

	set := func(i int, title string, min, max int64, oc uint8, stack ...BandstackEntry) {
		bands[i] = &Band{
			Title:         title,
			OCrx:          oc,
			OCtx:          oc,
			FrequencyMin:  min,
			FrequencyMax:  max,
			PaCalibration: 38.8,
			Stack:         stack,
		}
	}

	set(Band2200, "2200", 135700, 137800, 0,
		BandstackEntry{Frequency: 136000, Mode: ModeCWL, Filter: 4})
	set(Band630, "630", 472000, 479000, 0,
		BandstackEntry{Frequency: 475000, Mode: ModeCWL, Filter: 4})
	set(Band160, "160", 1800000, 2000000, 1,
		BandstackEntry{Frequency: 1810000, Mode: ModeCWL, Filter: 4},
		BandstackEntry{Frequency: 1835000, Mode: ModeCWL, Filter: 4},
		BandstackEntry{Frequency: 1845000, Mode: ModeLSB, Filter: 5})
	set(Band80, "80", 3500000, 4000000, 2,
		BandstackEntry{Frequency: 3501000, Mode: ModeCWL, Filter: 4},
		BandstackEntry{Frequency: 3751000, Mode: ModeLSB, Filter: 5},
		BandstackEntry{Frequency: 3850000, Mode: ModeLSB, Filter: 5})
	set(Band60, "60", 5250000, 5450000, 2,
		BandstackEntry{Frequency: 5330500, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 5346500, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 5366500, Mode: ModeUSB, Filter: 5})
	set(Band40, "40", 7000000, 7300000, 3,
		BandstackEntry{Frequency: 7001000, Mode: ModeCWL, Filter: 4},
		BandstackEntry{Frequency: 7152000, Mode: ModeLSB, Filter: 5},
		BandstackEntry{Frequency: 7255000, Mode: ModeLSB, Filter: 5})
	set(Band30, "30", 10100000, 10150000, 4,
		BandstackEntry{Frequency: 10120000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 10130000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 10140000, Mode: ModeCWU, Filter: 4})
	set(Band20, "20", 14000000, 14350000, 5,
		BandstackEntry{Frequency: 14010000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 14150000, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 14230000, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 14336000, Mode: ModeUSB, Filter: 5})
	set(Band17, "17", 18068000, 18168000, 6,
		BandstackEntry{Frequency: 18080000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 18125000, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 18140000, Mode: ModeUSB, Filter: 5})
	set(Band15, "15", 21000000, 21450000, 7,
		BandstackEntry{Frequency: 21001000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 21255000, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 21300000, Mode: ModeUSB, Filter: 5})
	set(Band12, "12", 24890000, 24990000, 8,
		BandstackEntry{Frequency: 24895000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 24900000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 24910000, Mode: ModeUSB, Filter: 5})
	set(Band10, "10", 28000000, 29700000, 9,
		BandstackEntry{Frequency: 28010000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 28300000, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 28400000, Mode: ModeUSB, Filter: 5})
	set(Band6, "6", 50000000, 54000000, 10,
		BandstackEntry{Frequency: 50090000, Mode: ModeCWU, Filter: 4},
		BandstackEntry{Frequency: 50125000, Mode: ModeUSB, Filter: 5},
		BandstackEntry{Frequency: 50200000, Mode: ModeUSB, Filter: 5})
	set(BandGen, "GEN", 0, 61440000, 0,
		BandstackEntry{Frequency: 909000, Mode: ModeAM, Filter: 3})
	set(BandWWV, "WWV", 0, 61440000, 0,
		BandstackEntry{Frequency: 2500000, Mode: ModeSAM, Filter: 3},
		BandstackEntry{Frequency: 5000000, Mode: ModeSAM, Filter: 3},
		BandstackEntry{Frequency: 10000000, Mode: ModeSAM, Filter: 3},
		BandstackEntry{Frequency: 15000000, Mode: ModeSAM, Filter: 3},
		BandstackEntry{Frequency: 20000000, Mode: ModeSAM, Filter: 3})

	for i := 0; i < 8; i++ {
		bands[BandXvtrFirst+i] = &Band{
			Title:         "",
			PaCalibration: 38.8,
			DisablePA:     true,
			Stack:         mkStack(BandstackEntry{Frequency: 0, Mode: ModeUSB, Filter: 5}),
		}
	}
	return bands
}

// BandForFrequency returns the band containing f, or BandGen when
// nothing matches. Transverter slots win over the fixed table so
// their LO arithmetic applies.
func BandForFrequency(bands []*Band, f int64) int {
	for i := BandXvtrFirst; i < Bands; i++ {
		b := bands[i]
		if b.Title != "" && f >= b.FrequencyMin && f <= b.FrequencyMax {
			return i
		}
	}
	for i := 0; i < BandXvtrFirst; i++ {
		b := bands[i]
		if i == BandGen || i == BandWWV {
			continue
		}
		if f >= b.FrequencyMin && f <= b.FrequencyMax {
			return i
		}
	}
	return BandGen
}

// InBand reports whether a TX frequency lies inside the band edges;
// used for the out-of-band warning and TX inhibit.
func (b *Band) InBand(f int64) bool {
	if b.FrequencyMin == 0 && b.FrequencyMax == 0 {
		return true
	}
	return f >= b.FrequencyMin && f <= b.FrequencyMax
}
