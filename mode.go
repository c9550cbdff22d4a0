package main

// Operating modes and the per-mode filter tables. The numbering is
// fixed on the wire (snapshot and command messages carry mode bytes)
// so entries must never be reordered.

const (
	ModeLSB = iota
	ModeUSB
	ModeDSB
	ModeCWL
	ModeCWU
	ModeFMN
	ModeAM
	ModeDIGU
	ModeSPEC
	ModeDIGL
	ModeSAM
	ModeDRM
	Modes
)

var modeNames = [Modes]string{
	"LSB", "USB", "DSB", "CWL", "CWU", "FMN",
	"AM", "DIGU", "SPEC", "DIGL", "SAM", "DRM",
}

func ModeName(m int) string {
	if m < 0 || m >= Modes {
		return "?"
	}
	return modeNames[m]
}

// modeIsCW reports CW operation, where the TX envelope is shaped
// locally rather than by the DSP.
func modeIsCW(m int) bool { return m == ModeCWL || m == ModeCWU }

// Filter holds one selectable passband.
type Filter struct {
	Low  int
	High int
	Name string
}

const (
	Filters    = 12 // F0..F9 plus Var1, Var2
	FilterVar1 = 10
	FilterVar2 = 11
)

// filterGroup indexes the filter tables: voice modes share one
// table, CW another (offsets are relative to the CW pitch), digital
// modes a third and AM-family modes a fourth.
const (
	filterGroupVoice = iota
	filterGroupCW
	filterGroupDigital
	filterGroupAM
	filterGroups
)

func filterGroupForMode(mode int) int {
	switch mode {
	case ModeCWL, ModeCWU:
		return filterGroupCW
	case ModeDIGU, ModeDIGL:
		return filterGroupDigital
	case ModeAM, ModeSAM, ModeDRM, ModeFMN:
		return filterGroupAM
	default:
		return filterGroupVoice
	}
}

// filterTables[group][index]. Var1/Var2 entries are mutable (the
// remote protocol updates them with CMD_FILTER_VAR).
var filterTables = [filterGroups][Filters]Filter{
	filterGroupVoice: {
		{150, 5150, "5.0k"},
		{150, 4550, "4.4k"},
		{150, 3950, "3.8k"},
		{150, 3450, "3.3k"},
		{150, 3050, "2.9k"},
		{150, 2850, "2.7k"},
		{150, 2550, "2.4k"},
		{150, 2250, "2.1k"},
		{150, 1950, "1.8k"},
		{150, 1150, "1.0k"},
		{150, 2850, "Var1"},
		{150, 2850, "Var2"},
	},
	filterGroupCW: {
		{-500, 500, "1.0k"},
		{-400, 400, "800"},
		{-375, 375, "750"},
		{-300, 300, "600"},
		{-250, 250, "500"},
		{-200, 200, "400"},
		{-125, 125, "250"},
		{-50, 50, "100"},
		{-25, 25, "50"},
		{-13, 13, "25"},
		{-250, 250, "Var1"},
		{-250, 250, "Var2"},
	},
	filterGroupDigital: {
		{150, 5150, "5.0k"},
		{150, 4550, "4.4k"},
		{150, 3950, "3.8k"},
		{150, 3450, "3.3k"},
		{150, 3050, "2.9k"},
		{150, 2850, "2.7k"},
		{150, 2550, "2.4k"},
		{150, 2250, "2.1k"},
		{150, 1950, "1.8k"},
		{150, 1150, "1.0k"},
		{1425, 2850, "Var1"},
		{150, 2850, "Var2"},
	},
	filterGroupAM: {
		{-8000, 8000, "16k"},
		{-6000, 6000, "12k"},
		{-5000, 5000, "10k"},
		{-4000, 4000, "8k"},
		{-3300, 3300, "6.6k"},
		{-2600, 2600, "5.2k"},
		{-2000, 2000, "4.0k"},
		{-1550, 1550, "3.1k"},
		{-1450, 1450, "2.9k"},
		{-1200, 1200, "2.4k"},
		{-3300, 3300, "Var1"},
		{-3300, 3300, "Var2"},
	},
}

// FilterEdges returns the passband for a mode/filter pair, with the
// CW pitch folded in for CW modes and sideband mirroring for the
// lower-sideband family.
func FilterEdges(mode, filter int, cwPitch int) (low, high int) {
	if filter < 0 {
		filter = 0
	}
	if filter >= Filters {
		filter = Filters - 1
	}
	f := filterTables[filterGroupForMode(mode)][filter]
	low, high = f.Low, f.High

	switch mode {
	case ModeCWU:
		low += cwPitch
		high += cwPitch
	case ModeCWL:
		low -= cwPitch
		high -= cwPitch
	case ModeLSB, ModeDIGL:
		low, high = -high, -low
	}
	return low, high
}

// SetVarFilter updates a Var1/Var2 entry for a whole filter group.
func SetVarFilter(mode, filter, low, high int) {
	if filter != FilterVar1 && filter != FilterVar2 {
		return
	}
	g := filterGroupForMode(mode)
	filterTables[g][filter].Low = low
	filterTables[g][filter].High = high
}

// FilterName is used by display paths and the properties file.
func FilterName(mode, filter int) string {
	if filter < 0 || filter >= Filters {
		return "?"
	}
	return filterTables[filterGroupForMode(mode)][filter].Name
}
