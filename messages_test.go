package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The dispatcher relies on bodySize matching what the encoders
// actually produce; drift here corrupts the stream.
func TestBodySizeMatchesEncoders(t *testing.T) {
	cases := []struct {
		op   uint16
		body []byte
	}{
		{InfoRadio, (&RadioData{}).encode()},
		{InfoReceiver, (&ReceiverData{}).encode()},
		{InfoTransmitter, (&TransmitterData{}).encode()},
		{InfoVFO, (&VFOData{}).encode()},
		{InfoBand, (&BandData{}).encode()},
		{InfoBandstack, (&BandstackData{}).encode()},
		{InfoMemory, (&MemoryData{}).encode()},
		{InfoADC, (&ADCData{}).encode()},
		{InfoDAC, (&DACData{}).encode()},
		{InfoDisplay, (&DisplayData{}).encode()},
		{InfoPS, (&PSData{}).encode()},
		{CmdPSParams, (&PSParams{}).encode()},
		{CmdFreq, (&U64Command{}).encode()},
		{CmdDrive, (&DoubleCommand{}).encode()},
		{CmdDiversity, (&DiversityCommand{}).encode()},
		{CmdAGCGain, (&AGCGainCommand{}).encode()},
		{CmdRxEq, (&EqualizerCommand{}).encode()},
		{CmdNoise, (&NoiseCommand{}).encode()},
	}
	for _, c := range cases {
		assert.Equal(t, len(c.body), bodySize(c.op), "opcode %d", c.op)
	}
}

func TestHeaderOnlyOpcodesHaveNoBody(t *testing.T) {
	for _, op := range []uint16{CmdPTT, CmdTune, CmdSplit, CmdHeartbeat, CmdStartRadio, CmdSpectrum, CmdZoom} {
		assert.Equal(t, 0, bodySize(op), "opcode %d", op)
	}
}

func TestVariableOpcodesFlagged(t *testing.T) {
	for _, op := range []uint16{InfoSpectrum, InfoRxAudio, InfoTxAudio} {
		assert.Equal(t, -1, bodySize(op), "opcode %d", op)
	}
}

func TestVFODataRoundTrip(t *testing.T) {
	in := VFOData{
		VFO: 1, Band: Band40, Bandstack: 2, Mode: ModeCWL, Filter: 4,
		CTUN: true, RitEnabled: true, RitStep: 10, Deviation: 2500,
		Frequency: 7030000, CtunFrequency: 7030500, Rit: -50,
		Xit: 120, LO: 0, Offset: 500, Step: 100,
	}
	out, ok := decodeVFOData(in.encode())
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestRadioDataSoapyTables(t *testing.T) {
	in := RadioData{
		Name:            "TestSDR",
		SoapyRxAntennas: []string{"RX", "TX/RX"},
		SoapyRxGains:    []string{"LNA", "PGA", "TIA"},
	}
	out, ok := decodeRadioData(in.encode())
	require.True(t, ok)
	assert.Equal(t, in.SoapyRxAntennas, out.SoapyRxAntennas)
	assert.Equal(t, in.SoapyRxGains, out.SoapyRxGains)
}

func TestRxAudioRejectsOversize(t *testing.T) {
	a := RxAudioData{RX: 0, NumSamples: AudioDataSize + 1}
	body := a.encode()
	_, ok := decodeRxAudioData(body)
	assert.False(t, ok)
}

func TestSpectrumRejectsOversizeWidth(t *testing.T) {
	sd := SpectrumData{Width: SpectrumDataSize + 1}
	_, ok := decodeSpectrumData(sd.encode())
	assert.False(t, ok)
}

func TestTruncatedBodyFailsDecode(t *testing.T) {
	in := VFOData{Frequency: 7030000}
	body := in.encode()
	_, ok := decodeVFOData(body[:len(body)-3])
	assert.False(t, ok)
}
