package main

// Typed messages of the client/server protocol. Every message starts
// with the 4-byte sync pattern and the 10-byte header; fixed-size
// bodies follow directly, variable-size bodies (spectrum, audio)
// carry their length in header.S1.

// Opcode space. Commands flow client -> server, Info messages flow
// server -> client, heartbeats flow both ways.
const (
	CmdADC uint16 = iota
	CmdAGC
	CmdAGCGain
	CmdAMCarrier
	CmdAttenuation
	CmdBandSel
	CmdBandstack
	CmdBinaural
	CmdCompressor
	CmdCTCSS
	CmdCTUN
	CmdCW
	CmdCWPeak
	CmdDeviation
	CmdDexp
	CmdDiversity
	CmdDrive
	CmdDuplex
	CmdFilterBoard
	CmdFilterCut
	CmdFilterSel
	CmdFilterVar
	CmdFps
	CmdFreq
	CmdHeartbeat
	CmdLock
	CmdMeter
	CmdMicGain
	CmdMode
	CmdMove
	CmdMoveTo
	CmdMuteRX
	CmdNoise
	CmdPan
	CmdPaTrim
	CmdPreemp
	CmdPSAtt
	CmdPSOnOff
	CmdPSParams
	CmdPSReset
	CmdPSResume
	CmdPTT
	CmdRecall
	CmdReceivers
	CmdRegion
	CmdRFGain
	CmdRIT
	CmdRITStep
	CmdRxFFT
	CmdRxEq
	CmdRxSelect
	CmdSampleRate
	CmdSat
	CmdSidetoneFreq
	CmdSoapyAGC
	CmdSoapyRxAnt
	CmdSoapyTxAnt
	CmdSpectrum
	CmdSplit
	CmdSquelch
	CmdStartRadio
	CmdStep
	CmdStore
	CmdTune
	CmdTwoTone
	CmdTxFFT
	CmdTxFilter
	CmdTxEq
	CmdVfoAtoB
	CmdVfoBtoA
	CmdVfoStepSize
	CmdVfoSwap
	CmdVolume
	CmdVox
	CmdXIT
	CmdZoom
	InfoADC
	InfoBand
	InfoBandstack
	InfoDAC
	InfoDisplay
	InfoMemory
	InfoPS
	InfoRadio
	InfoReceiver
	InfoRxAudio
	InfoSpectrum
	InfoTransmitter
	InfoTxAudio
	InfoVFO
	clientServerCommands // number of opcodes, keep last
)

// ClientServerVersion is folded into the authentication digest so
// that mismatched builds fail the handshake instead of
// misinterpreting frames.
const ClientServerVersion uint32 = 0x01000002

const (
	SpectrumDataSize = 4096 // maximum panadapter width
	AudioDataSize    = 1024 // stereo samples per audio frame
	EqBands          = 11
)

// Header is the fixed part of every message after the sync pattern.
// b1/b2/s1/s2 carry the entire payload of the many commands that fit
// in four small numbers.
type Header struct {
	Type uint16
	B1   uint8
	B2   uint8
	S1   uint16
	S2   uint16
}

// 10 bytes after the 4-byte sync; the last two are spare so a full
// frame prefix is 14 bytes.
const headerWireSize = 10

func (h *Header) encode(buf []byte) {
	putU16(buf[0:], h.Type)
	buf[2] = h.B1
	buf[3] = h.B2
	putU16(buf[4:], h.S1)
	putU16(buf[6:], h.S2)
	buf[8] = 0
	buf[9] = 0
}

func decodeHeader(buf []byte) Header {
	return Header{
		Type: getU16(buf[0:]),
		B1:   buf[2],
		B2:   buf[3],
		S1:   getU16(buf[4:]),
		S2:   getU16(buf[6:]),
	}
}

// enc appends big-endian fields to a message body.
type enc struct{ b []byte }

func newEnc(size int) *enc { return &enc{b: make([]byte, 0, size)} }

func (e *enc) u8(v uint8) { e.b = append(e.b, v) }
func (e *enc) u16(v uint16) {
	e.b = append(e.b, byte(v>>8), byte(v))
}
func (e *enc) i16(v int16) { e.u16(uint16(v)) }
func (e *enc) u32(v uint32) {
	e.b = append(e.b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
func (e *enc) u64(v uint64) {
	e.u32(uint32(v >> 32))
	e.u32(uint32(v))
}
func (e *enc) i64(v int64) { e.u64(uint64(v)) }
func (e *enc) dbl(x float64) {
	e.u64(uint64((x + doubleOffset) * doubleScale))
}
func (e *enc) str(s string, n int) {
	f := make([]byte, n)
	copy(f, s)
	e.b = append(e.b, f...)
}
func (e *enc) bool(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

// dec walks a message body; reads past the end return zeros, the
// caller checks dec.ok() once at the end instead of after every
// field.
type dec struct {
	b    []byte
	off  int
	fail bool
}

func newDec(b []byte) *dec { return &dec{b: b} }

func (d *dec) need(n int) bool {
	if d.off+n > len(d.b) {
		d.fail = true
		return false
	}
	return true
}

func (d *dec) u8() uint8 {
	if !d.need(1) {
		return 0
	}
	v := d.b[d.off]
	d.off++
	return v
}

func (d *dec) u16() uint16 {
	if !d.need(2) {
		return 0
	}
	v := getU16(d.b[d.off:])
	d.off += 2
	return v
}

func (d *dec) i16() int16 { return int16(d.u16()) }

func (d *dec) u32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := getU32(d.b[d.off:])
	d.off += 4
	return v
}

func (d *dec) u64() uint64 {
	if !d.need(8) {
		return 0
	}
	v := getU64(d.b[d.off:])
	d.off += 8
	return v
}

func (d *dec) i64() int64 { return int64(d.u64()) }

func (d *dec) dbl() float64 {
	return float64(d.u64())/doubleScale - doubleOffset
}

func (d *dec) str(n int) string {
	if !d.need(n) {
		return ""
	}
	f := d.b[d.off : d.off+n]
	d.off += n
	for i, c := range f {
		if c == 0 {
			f = f[:i]
			break
		}
	}
	return string(f)
}

func (d *dec) bool() bool { return d.u8() != 0 }

func (d *dec) ok() bool { return !d.fail }

// RadioData is the global snapshot sent once after authentication.
type RadioData struct {
	Name                    string
	Locked                  bool
	Protocol                uint8
	Device                  uint16
	SupportedReceivers      uint8
	Receivers               uint8
	FilterBoard             uint8
	Region                  uint8
	NumADC                  uint8
	Split                   bool
	SatMode                 uint8
	Duplex                  bool
	DiversityEnabled        bool
	MuteRxWhileTransmitting bool
	PaEnabled               bool
	TxOutOfBandAllowed      bool
	MicBoost                bool
	MicLinein               bool
	CwKeyerSidetoneVolume   uint8
	CwKeyerSidetoneFreq     uint16
	DisplayWidth            uint16
	TxFilterLow             int16
	TxFilterHigh            int16
	DriveMax                float64
	DivGain                 float64
	DivPhase                float64
	PaTrim                  [11]float64
	FrequencyCalibration    int64
	FrequencyMin            uint64
	FrequencyMax            uint64
	SoapyRadioSampleRate    uint64
	SoapyRxAntennas         []string // up to 8, 16 bytes each
	SoapyRxGains            []string
}

var radioDataSize = len((&RadioData{}).encode())

func (r *RadioData) encode() []byte {
	e := newEnc(512)
	e.str(r.Name, 32)
	e.bool(r.Locked)
	e.u8(r.Protocol)
	e.u8(r.SupportedReceivers)
	e.u8(r.Receivers)
	e.u8(r.FilterBoard)
	e.u8(r.Region)
	e.u8(r.NumADC)
	e.bool(r.Split)
	e.u8(r.SatMode)
	e.bool(r.Duplex)
	e.bool(r.DiversityEnabled)
	e.bool(r.MuteRxWhileTransmitting)
	e.bool(r.PaEnabled)
	e.bool(r.TxOutOfBandAllowed)
	e.bool(r.MicBoost)
	e.bool(r.MicLinein)
	e.u8(r.CwKeyerSidetoneVolume)
	e.u8(0) // pad
	e.u16(r.CwKeyerSidetoneFreq)
	e.u16(r.Device)
	e.u16(r.DisplayWidth)
	e.i16(r.TxFilterLow)
	e.i16(r.TxFilterHigh)
	e.dbl(r.DriveMax)
	e.dbl(r.DivGain)
	e.dbl(r.DivPhase)
	for i := 0; i < 11; i++ {
		e.dbl(r.PaTrim[i])
	}
	e.i64(r.FrequencyCalibration)
	e.u64(r.FrequencyMin)
	e.u64(r.FrequencyMax)
	e.u64(r.SoapyRadioSampleRate)
	e.u8(uint8(len(r.SoapyRxAntennas)))
	e.u8(uint8(len(r.SoapyRxGains)))
	for i := 0; i < 8; i++ {
		s := ""
		if i < len(r.SoapyRxAntennas) {
			s = r.SoapyRxAntennas[i]
		}
		e.str(s, 16)
	}
	for i := 0; i < 8; i++ {
		s := ""
		if i < len(r.SoapyRxGains) {
			s = r.SoapyRxGains[i]
		}
		e.str(s, 16)
	}
	return e.b
}

func decodeRadioData(body []byte) (RadioData, bool) {
	d := newDec(body)
	var r RadioData
	r.Name = d.str(32)
	r.Locked = d.bool()
	r.Protocol = d.u8()
	r.SupportedReceivers = d.u8()
	r.Receivers = d.u8()
	r.FilterBoard = d.u8()
	r.Region = d.u8()
	r.NumADC = d.u8()
	r.Split = d.bool()
	r.SatMode = d.u8()
	r.Duplex = d.bool()
	r.DiversityEnabled = d.bool()
	r.MuteRxWhileTransmitting = d.bool()
	r.PaEnabled = d.bool()
	r.TxOutOfBandAllowed = d.bool()
	r.MicBoost = d.bool()
	r.MicLinein = d.bool()
	r.CwKeyerSidetoneVolume = d.u8()
	d.u8() // pad
	r.CwKeyerSidetoneFreq = d.u16()
	r.Device = d.u16()
	r.DisplayWidth = d.u16()
	r.TxFilterLow = d.i16()
	r.TxFilterHigh = d.i16()
	r.DriveMax = d.dbl()
	r.DivGain = d.dbl()
	r.DivPhase = d.dbl()
	for i := 0; i < 11; i++ {
		r.PaTrim[i] = d.dbl()
	}
	r.FrequencyCalibration = d.i64()
	r.FrequencyMin = d.u64()
	r.FrequencyMax = d.u64()
	r.SoapyRadioSampleRate = d.u64()
	nant := int(d.u8())
	ngain := int(d.u8())
	for i := 0; i < 8; i++ {
		s := d.str(16)
		if i < nant {
			r.SoapyRxAntennas = append(r.SoapyRxAntennas, s)
		}
	}
	for i := 0; i < 8; i++ {
		s := d.str(16)
		if i < ngain {
			r.SoapyRxGains = append(r.SoapyRxGains, s)
		}
	}
	return r, d.ok()
}

// ReceiverData describes one receive chain in the initial snapshot.
type ReceiverData struct {
	ID                  uint8
	ADC                 uint8
	AGC                 uint8
	NB                  uint8
	NR                  uint8
	ANF                 bool
	SNB                 bool
	DisplayDetectorMode uint8
	DisplayAverageMode  uint8
	Zoom                uint8
	Dither              bool
	Random              bool
	Preamp              bool
	SquelchEnable       bool
	Binaural            bool
	EqEnable            bool
	Fps                 uint16
	FilterLow           int16
	FilterHigh          int16
	Pan                 uint16
	Width               uint16
	HzPerPixel          float64
	Squelch             float64
	Volume              float64
	AGCGain             float64
	AGCHang             float64
	AGCThresh           float64
	AGCHangThreshold    float64
	DisplayAverageTime  float64
	EqFreq              [EqBands]float64
	EqGain              [EqBands]float64
	FFTSize             uint64
	SampleRate          uint64
}

func (r *ReceiverData) encode() []byte {
	e := newEnc(256)
	e.u8(r.ID)
	e.u8(r.ADC)
	e.u8(r.AGC)
	e.u8(r.NB)
	e.u8(r.NR)
	e.bool(r.ANF)
	e.bool(r.SNB)
	e.u8(r.DisplayDetectorMode)
	e.u8(r.DisplayAverageMode)
	e.u8(r.Zoom)
	e.bool(r.Dither)
	e.bool(r.Random)
	e.bool(r.Preamp)
	e.bool(r.SquelchEnable)
	e.bool(r.Binaural)
	e.bool(r.EqEnable)
	e.u16(r.Fps)
	e.i16(r.FilterLow)
	e.i16(r.FilterHigh)
	e.u16(r.Pan)
	e.u16(r.Width)
	e.dbl(r.HzPerPixel)
	e.dbl(r.Squelch)
	e.dbl(r.Volume)
	e.dbl(r.AGCGain)
	e.dbl(r.AGCHang)
	e.dbl(r.AGCThresh)
	e.dbl(r.AGCHangThreshold)
	e.dbl(r.DisplayAverageTime)
	for i := 0; i < EqBands; i++ {
		e.dbl(r.EqFreq[i])
	}
	for i := 0; i < EqBands; i++ {
		e.dbl(r.EqGain[i])
	}
	e.u64(r.FFTSize)
	e.u64(r.SampleRate)
	return e.b
}

func decodeReceiverData(body []byte) (ReceiverData, bool) {
	d := newDec(body)
	var r ReceiverData
	r.ID = d.u8()
	r.ADC = d.u8()
	r.AGC = d.u8()
	r.NB = d.u8()
	r.NR = d.u8()
	r.ANF = d.bool()
	r.SNB = d.bool()
	r.DisplayDetectorMode = d.u8()
	r.DisplayAverageMode = d.u8()
	r.Zoom = d.u8()
	r.Dither = d.bool()
	r.Random = d.bool()
	r.Preamp = d.bool()
	r.SquelchEnable = d.bool()
	r.Binaural = d.bool()
	r.EqEnable = d.bool()
	r.Fps = d.u16()
	r.FilterLow = d.i16()
	r.FilterHigh = d.i16()
	r.Pan = d.u16()
	r.Width = d.u16()
	r.HzPerPixel = d.dbl()
	r.Squelch = d.dbl()
	r.Volume = d.dbl()
	r.AGCGain = d.dbl()
	r.AGCHang = d.dbl()
	r.AGCThresh = d.dbl()
	r.AGCHangThreshold = d.dbl()
	r.DisplayAverageTime = d.dbl()
	for i := 0; i < EqBands; i++ {
		r.EqFreq[i] = d.dbl()
	}
	for i := 0; i < EqBands; i++ {
		r.EqGain[i] = d.dbl()
	}
	r.FFTSize = d.u64()
	r.SampleRate = d.u64()
	return r, d.ok()
}

// TransmitterData describes the transmit chain.
type TransmitterData struct {
	ID                 uint8
	DAC                uint8
	UseRxFilter        bool
	AlexAntenna        uint8
	Puresignal         bool
	Feedback           bool
	PsAutoOn           bool
	PsOneshot          bool
	CtcssEnabled       bool
	Ctcss              uint8
	PreEmphasize       bool
	Drive              uint8
	TuneUseDrive       bool
	TuneDrive          uint8
	Compressor         bool
	CFC                bool
	CFCEq              bool
	Dexp               bool
	DexpFilter         bool
	EqEnable           bool
	SwrProtection      bool
	Fps                uint16
	DexpFilterLow      uint16
	DexpFilterHigh     uint16
	DexpTrigger        uint16
	DexpExp            uint16
	FilterLow          int16
	FilterHigh         int16
	Deviation          uint16
	Width              uint16
	Attenuation        uint16
	FFTSize            uint64
	EqFreq             [EqBands]float64
	EqGain             [EqBands]float64
	DexpTau            float64
	DexpAttack         float64
	DexpRelease        float64
	DexpHold           float64
	DexpHyst           float64
	CfcFreq            [EqBands]float64
	CfcLvl             [EqBands]float64
	CfcPost            [EqBands]float64
	MicGain            float64
	CompressorLevel    float64
	DisplayAverageTime float64
	AmCarrierLevel     float64
	PsAmpdelay         float64
	PsMoxdelay         float64
	PsLoopdelay        float64
	SwrAlarm           float64
}

func (t *TransmitterData) encode() []byte {
	e := newEnc(512)
	e.u8(t.ID)
	e.u8(t.DAC)
	e.bool(t.UseRxFilter)
	e.u8(t.AlexAntenna)
	e.bool(t.Puresignal)
	e.bool(t.Feedback)
	e.bool(t.PsAutoOn)
	e.bool(t.PsOneshot)
	e.bool(t.CtcssEnabled)
	e.u8(t.Ctcss)
	e.bool(t.PreEmphasize)
	e.u8(t.Drive)
	e.bool(t.TuneUseDrive)
	e.u8(t.TuneDrive)
	e.bool(t.Compressor)
	e.bool(t.CFC)
	e.bool(t.CFCEq)
	e.bool(t.Dexp)
	e.bool(t.DexpFilter)
	e.bool(t.EqEnable)
	e.bool(t.SwrProtection)
	e.u8(0) // pad
	e.u16(t.Fps)
	e.u16(t.DexpFilterLow)
	e.u16(t.DexpFilterHigh)
	e.u16(t.DexpTrigger)
	e.u16(t.DexpExp)
	e.i16(t.FilterLow)
	e.i16(t.FilterHigh)
	e.u16(t.Deviation)
	e.u16(t.Width)
	e.u16(t.Attenuation)
	e.u64(t.FFTSize)
	for i := 0; i < EqBands; i++ {
		e.dbl(t.EqFreq[i])
	}
	for i := 0; i < EqBands; i++ {
		e.dbl(t.EqGain[i])
	}
	e.dbl(t.DexpTau)
	e.dbl(t.DexpAttack)
	e.dbl(t.DexpRelease)
	e.dbl(t.DexpHold)
	e.dbl(t.DexpHyst)
	for i := 0; i < EqBands; i++ {
		e.dbl(t.CfcFreq[i])
	}
	for i := 0; i < EqBands; i++ {
		e.dbl(t.CfcLvl[i])
	}
	for i := 0; i < EqBands; i++ {
		e.dbl(t.CfcPost[i])
	}
	e.dbl(t.MicGain)
	e.dbl(t.CompressorLevel)
	e.dbl(t.DisplayAverageTime)
	e.dbl(t.AmCarrierLevel)
	e.dbl(t.PsAmpdelay)
	e.dbl(t.PsMoxdelay)
	e.dbl(t.PsLoopdelay)
	e.dbl(t.SwrAlarm)
	return e.b
}

func decodeTransmitterData(body []byte) (TransmitterData, bool) {
	d := newDec(body)
	var t TransmitterData
	t.ID = d.u8()
	t.DAC = d.u8()
	t.UseRxFilter = d.bool()
	t.AlexAntenna = d.u8()
	t.Puresignal = d.bool()
	t.Feedback = d.bool()
	t.PsAutoOn = d.bool()
	t.PsOneshot = d.bool()
	t.CtcssEnabled = d.bool()
	t.Ctcss = d.u8()
	t.PreEmphasize = d.bool()
	t.Drive = d.u8()
	t.TuneUseDrive = d.bool()
	t.TuneDrive = d.u8()
	t.Compressor = d.bool()
	t.CFC = d.bool()
	t.CFCEq = d.bool()
	t.Dexp = d.bool()
	t.DexpFilter = d.bool()
	t.EqEnable = d.bool()
	t.SwrProtection = d.bool()
	d.u8() // pad
	t.Fps = d.u16()
	t.DexpFilterLow = d.u16()
	t.DexpFilterHigh = d.u16()
	t.DexpTrigger = d.u16()
	t.DexpExp = d.u16()
	t.FilterLow = d.i16()
	t.FilterHigh = d.i16()
	t.Deviation = d.u16()
	t.Width = d.u16()
	t.Attenuation = d.u16()
	t.FFTSize = d.u64()
	for i := 0; i < EqBands; i++ {
		t.EqFreq[i] = d.dbl()
	}
	for i := 0; i < EqBands; i++ {
		t.EqGain[i] = d.dbl()
	}
	t.DexpTau = d.dbl()
	t.DexpAttack = d.dbl()
	t.DexpRelease = d.dbl()
	t.DexpHold = d.dbl()
	t.DexpHyst = d.dbl()
	for i := 0; i < EqBands; i++ {
		t.CfcFreq[i] = d.dbl()
	}
	for i := 0; i < EqBands; i++ {
		t.CfcLvl[i] = d.dbl()
	}
	for i := 0; i < EqBands; i++ {
		t.CfcPost[i] = d.dbl()
	}
	t.MicGain = d.dbl()
	t.CompressorLevel = d.dbl()
	t.DisplayAverageTime = d.dbl()
	t.AmCarrierLevel = d.dbl()
	t.PsAmpdelay = d.dbl()
	t.PsMoxdelay = d.dbl()
	t.PsLoopdelay = d.dbl()
	t.SwrAlarm = d.dbl()
	return t, d.ok()
}

// VFOData mirrors one VFO.
type VFOData struct {
	VFO               uint8
	Band              uint8
	Bandstack         uint8
	Mode              uint8
	Filter            uint8
	CTUN              bool
	RitEnabled        bool
	XitEnabled        bool
	CwAudioPeakFilter bool
	RitStep           uint16
	Deviation         uint16
	Frequency         int64
	CtunFrequency     int64
	Rit               int64
	Xit               int64
	LO                int64
	Offset            int64
	Step              int64
}

func (v *VFOData) encode() []byte {
	e := newEnc(72)
	e.u8(v.VFO)
	e.u8(v.Band)
	e.u8(v.Bandstack)
	e.u8(v.Mode)
	e.u8(v.Filter)
	e.bool(v.CTUN)
	e.bool(v.RitEnabled)
	e.bool(v.XitEnabled)
	e.bool(v.CwAudioPeakFilter)
	e.u8(0) // pad
	e.u16(v.RitStep)
	e.u16(v.Deviation)
	e.i64(v.Frequency)
	e.i64(v.CtunFrequency)
	e.i64(v.Rit)
	e.i64(v.Xit)
	e.i64(v.LO)
	e.i64(v.Offset)
	e.i64(v.Step)
	return e.b
}

func decodeVFOData(body []byte) (VFOData, bool) {
	d := newDec(body)
	var v VFOData
	v.VFO = d.u8()
	v.Band = d.u8()
	v.Bandstack = d.u8()
	v.Mode = d.u8()
	v.Filter = d.u8()
	v.CTUN = d.bool()
	v.RitEnabled = d.bool()
	v.XitEnabled = d.bool()
	v.CwAudioPeakFilter = d.bool()
	d.u8() // pad
	v.RitStep = d.u16()
	v.Deviation = d.u16()
	v.Frequency = d.i64()
	v.CtunFrequency = d.i64()
	v.Rit = d.i64()
	v.Xit = d.i64()
	v.LO = d.i64()
	v.Offset = d.i64()
	v.Step = d.i64()
	return v, d.ok()
}

// BandData carries one entry of the band table; mostly needed for
// transverter bands, but the full table is shipped in the snapshot.
type BandData struct {
	Title           string
	Band            uint8
	OCrx            uint8
	OCtx            uint8
	AlexRxAntenna   uint8
	AlexTxAntenna   uint8
	AlexAttenuation uint8
	DisablePA       bool
	Current         uint8
	Gain            int16
	PaCalibration   float64
	FrequencyMin    uint64
	FrequencyMax    uint64
	FrequencyLO     int64
	ErrorLO         int64
}

func (b *BandData) encode() []byte {
	e := newEnc(64)
	e.str(b.Title, 16)
	e.u8(b.Band)
	e.u8(b.OCrx)
	e.u8(b.OCtx)
	e.u8(b.AlexRxAntenna)
	e.u8(b.AlexTxAntenna)
	e.u8(b.AlexAttenuation)
	e.bool(b.DisablePA)
	e.u8(b.Current)
	e.i16(b.Gain)
	e.dbl(b.PaCalibration)
	e.u64(b.FrequencyMin)
	e.u64(b.FrequencyMax)
	e.i64(b.FrequencyLO)
	e.i64(b.ErrorLO)
	return e.b
}

func decodeBandData(body []byte) (BandData, bool) {
	d := newDec(body)
	var b BandData
	b.Title = d.str(16)
	b.Band = d.u8()
	b.OCrx = d.u8()
	b.OCtx = d.u8()
	b.AlexRxAntenna = d.u8()
	b.AlexTxAntenna = d.u8()
	b.AlexAttenuation = d.u8()
	b.DisablePA = d.bool()
	b.Current = d.u8()
	b.Gain = d.i16()
	b.PaCalibration = d.dbl()
	b.FrequencyMin = d.u64()
	b.FrequencyMax = d.u64()
	b.FrequencyLO = d.i64()
	b.ErrorLO = d.i64()
	return b, d.ok()
}

// BandstackData carries one stack entry of one band.
type BandstackData struct {
	Band          uint8
	Stack         uint8
	Mode          uint8
	Filter        uint8
	CTUN          bool
	CtcssEnabled  bool
	Ctcss         uint8
	Deviation     uint16
	Frequency     int64
	CtunFrequency int64
}

func (b *BandstackData) encode() []byte {
	e := newEnc(32)
	e.u8(b.Band)
	e.u8(b.Stack)
	e.u8(b.Mode)
	e.u8(b.Filter)
	e.bool(b.CTUN)
	e.bool(b.CtcssEnabled)
	e.u8(b.Ctcss)
	e.u8(0) // pad
	e.u16(b.Deviation)
	e.i64(b.Frequency)
	e.i64(b.CtunFrequency)
	return e.b
}

func decodeBandstackData(body []byte) (BandstackData, bool) {
	d := newDec(body)
	var b BandstackData
	b.Band = d.u8()
	b.Stack = d.u8()
	b.Mode = d.u8()
	b.Filter = d.u8()
	b.CTUN = d.bool()
	b.CtcssEnabled = d.bool()
	b.Ctcss = d.u8()
	d.u8() // pad
	b.Deviation = d.u16()
	b.Frequency = d.i64()
	b.CtunFrequency = d.i64()
	return b, d.ok()
}

// MemoryData is one store/recall slot, including the alternate VFO
// used when the slot was saved in SAT mode.
type MemoryData struct {
	Index            uint8
	SatMode          uint8
	CTUN             bool
	Mode             uint8
	Filter           uint8
	Band             uint8
	AltCTUN          bool
	AltMode          uint8
	AltFilter        uint8
	AltBand          uint8
	CtcssEnabled     bool
	Ctcss            uint8
	Deviation        uint16
	AltDeviation     uint16
	Frequency        int64
	CtunFrequency    int64
	AltFrequency     int64
	AltCtunFrequency int64
}

func (m *MemoryData) encode() []byte {
	e := newEnc(48)
	e.u8(m.Index)
	e.u8(m.SatMode)
	e.bool(m.CTUN)
	e.u8(m.Mode)
	e.u8(m.Filter)
	e.u8(m.Band)
	e.bool(m.AltCTUN)
	e.u8(m.AltMode)
	e.u8(m.AltFilter)
	e.u8(m.AltBand)
	e.bool(m.CtcssEnabled)
	e.u8(m.Ctcss)
	e.u16(m.Deviation)
	e.u16(m.AltDeviation)
	e.i64(m.Frequency)
	e.i64(m.CtunFrequency)
	e.i64(m.AltFrequency)
	e.i64(m.AltCtunFrequency)
	return e.b
}

func decodeMemoryData(body []byte) (MemoryData, bool) {
	d := newDec(body)
	var m MemoryData
	m.Index = d.u8()
	m.SatMode = d.u8()
	m.CTUN = d.bool()
	m.Mode = d.u8()
	m.Filter = d.u8()
	m.Band = d.u8()
	m.AltCTUN = d.bool()
	m.AltMode = d.u8()
	m.AltFilter = d.u8()
	m.AltBand = d.u8()
	m.CtcssEnabled = d.bool()
	m.Ctcss = d.u8()
	m.Deviation = d.u16()
	m.AltDeviation = d.u16()
	m.Frequency = d.i64()
	m.CtunFrequency = d.i64()
	m.AltFrequency = d.i64()
	m.AltCtunFrequency = d.i64()
	return m, d.ok()
}

// ADCData / DACData for analog front end settings.
type ADCData struct {
	ADC         uint8
	Antenna     uint16
	Attenuation uint16
	Gain        float64
	MinGain     float64
	MaxGain     float64
}

func (a *ADCData) encode() []byte {
	e := newEnc(32)
	e.u8(a.ADC)
	e.u8(0) // pad
	e.u16(a.Antenna)
	e.u16(a.Attenuation)
	e.dbl(a.Gain)
	e.dbl(a.MinGain)
	e.dbl(a.MaxGain)
	return e.b
}

func decodeADCData(body []byte) (ADCData, bool) {
	d := newDec(body)
	var a ADCData
	a.ADC = d.u8()
	d.u8() // pad
	a.Antenna = d.u16()
	a.Attenuation = d.u16()
	a.Gain = d.dbl()
	a.MinGain = d.dbl()
	a.MaxGain = d.dbl()
	return a, d.ok()
}

type DACData struct {
	Antenna uint8
	Gain    float64
}

func (a *DACData) encode() []byte {
	e := newEnc(9)
	e.u8(a.Antenna)
	e.dbl(a.Gain)
	return e.b
}

func decodeDACData(body []byte) (DACData, bool) {
	d := newDec(body)
	var a DACData
	a.Antenna = d.u8()
	a.Gain = d.dbl()
	return a, d.ok()
}

// SpectrumData is the variable-length panadapter frame. Only Width
// samples travel on the wire; header.S1 carries the byte length of
// the body so the reader can allocate before parsing.
type SpectrumData struct {
	ID         uint8
	Zoom       uint8
	Width      uint16
	Pan        uint16
	VfoAFreq   int64
	VfoBFreq   int64
	VfoACtun   int64
	VfoBCtun   int64
	VfoAOffset int64
	VfoBOffset int64
	Meter      float64
	Alc        float64
	Fwd        float64
	Swr        float64
	Sample     []uint16 // Width entries of fixed-point dBm
}

const spectrumFixedSize = 1 + 1 + 2 + 2 + 6*8 + 4*8

func (s *SpectrumData) encode() []byte {
	e := newEnc(spectrumFixedSize + 2*len(s.Sample))
	e.u8(s.ID)
	e.u8(s.Zoom)
	e.u16(s.Width)
	e.u16(s.Pan)
	e.i64(s.VfoAFreq)
	e.i64(s.VfoBFreq)
	e.i64(s.VfoACtun)
	e.i64(s.VfoBCtun)
	e.i64(s.VfoAOffset)
	e.i64(s.VfoBOffset)
	e.dbl(s.Meter)
	e.dbl(s.Alc)
	e.dbl(s.Fwd)
	e.dbl(s.Swr)
	for _, v := range s.Sample {
		e.u16(v)
	}
	return e.b
}

func decodeSpectrumData(body []byte) (SpectrumData, bool) {
	d := newDec(body)
	var s SpectrumData
	s.ID = d.u8()
	s.Zoom = d.u8()
	s.Width = d.u16()
	s.Pan = d.u16()
	s.VfoAFreq = d.i64()
	s.VfoBFreq = d.i64()
	s.VfoACtun = d.i64()
	s.VfoBCtun = d.i64()
	s.VfoAOffset = d.i64()
	s.VfoBOffset = d.i64()
	s.Meter = d.dbl()
	s.Alc = d.dbl()
	s.Fwd = d.dbl()
	s.Swr = d.dbl()
	if int(s.Width) > SpectrumDataSize {
		return s, false
	}
	s.Sample = make([]uint16, s.Width)
	for i := range s.Sample {
		s.Sample[i] = d.u16()
	}
	return s, d.ok()
}

// RxAudioData: stereo 16-bit samples server -> client.
// TxAudioData: mono 16-bit mic samples client -> server.
type RxAudioData struct {
	RX         uint8
	NumSamples uint16
	Samples    []int16 // interleaved L,R; 2*NumSamples entries
}

func (a *RxAudioData) encode() []byte {
	e := newEnc(3 + 4*int(a.NumSamples))
	e.u8(a.RX)
	e.u16(a.NumSamples)
	for _, s := range a.Samples {
		e.i16(s)
	}
	return e.b
}

func decodeRxAudioData(body []byte) (RxAudioData, bool) {
	d := newDec(body)
	var a RxAudioData
	a.RX = d.u8()
	a.NumSamples = d.u16()
	if int(a.NumSamples) > AudioDataSize {
		return a, false
	}
	a.Samples = make([]int16, 2*int(a.NumSamples))
	for i := range a.Samples {
		a.Samples[i] = d.i16()
	}
	return a, d.ok()
}

type TxAudioData struct {
	NumSamples uint16
	Samples    []int16
}

func (a *TxAudioData) encode() []byte {
	e := newEnc(2 + 2*int(a.NumSamples))
	e.u16(a.NumSamples)
	for _, s := range a.Samples {
		e.i16(s)
	}
	return e.b
}

func decodeTxAudioData(body []byte) (TxAudioData, bool) {
	d := newDec(body)
	var a TxAudioData
	a.NumSamples = d.u16()
	if int(a.NumSamples) > AudioDataSize {
		return a, false
	}
	a.Samples = make([]int16, a.NumSamples)
	for i := range a.Samples {
		a.Samples[i] = d.i16()
	}
	return a, d.ok()
}

// DisplayData carries the 150ms high-rate alarm/meter flags.
type DisplayData struct {
	Adc0Overload   bool
	Adc1Overload   bool
	HighSwrSeen    bool
	TxFifoOverrun  bool
	TxFifoUnderrun bool
	TxInhibit      bool
	ExciterPower   uint16
	ADC0           uint16
	ADC1           uint16
	SequenceErrors uint16
}

func (dd *DisplayData) encode() []byte {
	e := newEnc(16)
	e.bool(dd.Adc0Overload)
	e.bool(dd.Adc1Overload)
	e.bool(dd.HighSwrSeen)
	e.bool(dd.TxFifoOverrun)
	e.bool(dd.TxFifoUnderrun)
	e.bool(dd.TxInhibit)
	e.u16(dd.ExciterPower)
	e.u16(dd.ADC0)
	e.u16(dd.ADC1)
	e.u16(dd.SequenceErrors)
	return e.b
}

func decodeDisplayData(body []byte) (DisplayData, bool) {
	d := newDec(body)
	var dd DisplayData
	dd.Adc0Overload = d.bool()
	dd.Adc1Overload = d.bool()
	dd.HighSwrSeen = d.bool()
	dd.TxFifoOverrun = d.bool()
	dd.TxFifoUnderrun = d.bool()
	dd.TxInhibit = d.bool()
	dd.ExciterPower = d.u16()
	dd.ADC0 = d.u16()
	dd.ADC1 = d.u16()
	dd.SequenceErrors = d.u16()
	return dd, d.ok()
}

// PSData carries PureSignal feedback status.
type PSData struct {
	Info        [16]uint16
	Attenuation uint16
	GetPk       float64
	GetMx       float64
}

func (p *PSData) encode() []byte {
	e := newEnc(56)
	for i := 0; i < 16; i++ {
		e.u16(p.Info[i])
	}
	e.u16(p.Attenuation)
	e.dbl(p.GetPk)
	e.dbl(p.GetMx)
	return e.b
}

func decodePSData(body []byte) (PSData, bool) {
	d := newDec(body)
	var p PSData
	for i := 0; i < 16; i++ {
		p.Info[i] = d.u16()
	}
	p.Attenuation = d.u16()
	p.GetPk = d.dbl()
	p.GetMx = d.dbl()
	return p, d.ok()
}

// PSParams: the few PureSignal knobs that are remotely adjustable.
type PSParams struct {
	Ptol    bool
	Oneshot bool
	Map     bool
	SetPk   float64
}

func (p *PSParams) encode() []byte {
	e := newEnc(11)
	e.bool(p.Ptol)
	e.bool(p.Oneshot)
	e.bool(p.Map)
	e.dbl(p.SetPk)
	return e.b
}

func decodePSParams(body []byte) (PSParams, bool) {
	d := newDec(body)
	var p PSParams
	p.Ptol = d.bool()
	p.Oneshot = d.bool()
	p.Map = d.bool()
	p.SetPk = d.dbl()
	return p, d.ok()
}

// U64Command / DoubleCommand: the universal bodies for commands that
// carry one number besides the header.
type U64Command struct{ V int64 }

func (c *U64Command) encode() []byte {
	e := newEnc(8)
	e.i64(c.V)
	return e.b
}

func decodeU64Command(body []byte) (U64Command, bool) {
	d := newDec(body)
	c := U64Command{V: d.i64()}
	return c, d.ok()
}

type DoubleCommand struct{ V float64 }

func (c *DoubleCommand) encode() []byte {
	e := newEnc(8)
	e.dbl(c.V)
	return e.b
}

func decodeDoubleCommand(body []byte) (DoubleCommand, bool) {
	d := newDec(body)
	c := DoubleCommand{V: d.dbl()}
	return c, d.ok()
}

type DiversityCommand struct {
	Enabled bool
	Gain    float64
	Phase   float64
}

func (c *DiversityCommand) encode() []byte {
	e := newEnc(17)
	e.bool(c.Enabled)
	e.dbl(c.Gain)
	e.dbl(c.Phase)
	return e.b
}

func decodeDiversityCommand(body []byte) (DiversityCommand, bool) {
	d := newDec(body)
	var c DiversityCommand
	c.Enabled = d.bool()
	c.Gain = d.dbl()
	c.Phase = d.dbl()
	return c, d.ok()
}

type AGCGainCommand struct {
	ID         uint8
	Gain       float64
	Hang       float64
	Thresh     float64
	HangThresh float64
}

func (c *AGCGainCommand) encode() []byte {
	e := newEnc(33)
	e.u8(c.ID)
	e.dbl(c.Gain)
	e.dbl(c.Hang)
	e.dbl(c.Thresh)
	e.dbl(c.HangThresh)
	return e.b
}

func decodeAGCGainCommand(body []byte) (AGCGainCommand, bool) {
	d := newDec(body)
	var c AGCGainCommand
	c.ID = d.u8()
	c.Gain = d.dbl()
	c.Hang = d.dbl()
	c.Thresh = d.dbl()
	c.HangThresh = d.dbl()
	return c, d.ok()
}

type EqualizerCommand struct {
	ID     uint8
	Enable bool
	Freq   [EqBands]float64
	Gain   [EqBands]float64
}

func (c *EqualizerCommand) encode() []byte {
	e := newEnc(2 + 2*EqBands*8)
	e.u8(c.ID)
	e.bool(c.Enable)
	for i := 0; i < EqBands; i++ {
		e.dbl(c.Freq[i])
	}
	for i := 0; i < EqBands; i++ {
		e.dbl(c.Gain[i])
	}
	return e.b
}

func decodeEqualizerCommand(body []byte) (EqualizerCommand, bool) {
	d := newDec(body)
	var c EqualizerCommand
	c.ID = d.u8()
	c.Enable = d.bool()
	for i := 0; i < EqBands; i++ {
		c.Freq[i] = d.dbl()
	}
	for i := 0; i < EqBands; i++ {
		c.Gain[i] = d.dbl()
	}
	return c, d.ok()
}

type NoiseCommand struct {
	ID       uint8
	NB       uint8
	NR       uint8
	ANF      bool
	SNB      bool
	NB2Mode  uint8
	NBTau    float64
	NBHang   float64
	NBAdv    float64
	NBThresh float64
}

func (c *NoiseCommand) encode() []byte {
	e := newEnc(38)
	e.u8(c.ID)
	e.u8(c.NB)
	e.u8(c.NR)
	e.bool(c.ANF)
	e.bool(c.SNB)
	e.u8(c.NB2Mode)
	e.dbl(c.NBTau)
	e.dbl(c.NBHang)
	e.dbl(c.NBAdv)
	e.dbl(c.NBThresh)
	return e.b
}

func decodeNoiseCommand(body []byte) (NoiseCommand, bool) {
	d := newDec(body)
	var c NoiseCommand
	c.ID = d.u8()
	c.NB = d.u8()
	c.NR = d.u8()
	c.ANF = d.bool()
	c.SNB = d.bool()
	c.NB2Mode = d.u8()
	c.NBTau = d.dbl()
	c.NBHang = d.dbl()
	c.NBAdv = d.dbl()
	c.NBThresh = d.dbl()
	return c, d.ok()
}

// bodySize returns the fixed body length for an opcode, 0 for
// header-only commands, or -1 when the length is variable and must
// be taken from header.S1.
func bodySize(op uint16) int {
	switch op {
	case InfoRadio:
		return radioDataSize
	case InfoReceiver:
		return len((&ReceiverData{}).encode())
	case InfoTransmitter:
		return len((&TransmitterData{}).encode())
	case InfoVFO:
		return len((&VFOData{}).encode())
	case InfoBand:
		return len((&BandData{}).encode())
	case InfoBandstack:
		return len((&BandstackData{}).encode())
	case InfoMemory:
		return len((&MemoryData{}).encode())
	case InfoADC, CmdADC:
		return len((&ADCData{}).encode())
	case InfoDAC:
		return len((&DACData{}).encode())
	case InfoDisplay:
		return len((&DisplayData{}).encode())
	case InfoPS:
		return len((&PSData{}).encode())
	case CmdPSParams:
		return len((&PSParams{}).encode())
	case InfoSpectrum, InfoRxAudio, InfoTxAudio:
		return -1
	case CmdFreq, CmdMove, CmdMoveTo, CmdVfoStepSize, CmdSampleRate,
		CmdRIT, CmdXIT, CmdDeviation:
		return 8
	case CmdDrive, CmdMicGain, CmdVolume, CmdSquelch, CmdRFGain,
		CmdAMCarrier:
		return 8
	case CmdDiversity:
		return len((&DiversityCommand{}).encode())
	case CmdAGCGain:
		return len((&AGCGainCommand{}).encode())
	case CmdRxEq, CmdTxEq:
		return len((&EqualizerCommand{}).encode())
	case CmdNoise:
		return len((&NoiseCommand{}).encode())
	default:
		// everything else is header-only
		return 0
	}
}
