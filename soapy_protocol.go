package main

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// SoapySDR adapter. The vendor library is loaded out of process;
// this file adapts whatever satisfies SoapyDevice to the same
// sink/source shape as the two HPSDR engines. There are no
// PureSignal feedback channels here.

type SoapyDeviceInfo struct {
	Driver       string
	HardwareKey  string
	Label        string
	Antennas     []string
	GainNames    []string
	GainMin      []float64
	GainMax      []float64
	SampleRates  []int
	FrequencyMin float64
	FrequencyMax float64
	TxChannels   int
	HasAGC       bool
}

// SoapyDevice is the narrow streaming surface the adapter needs.
type SoapyDevice interface {
	Info() SoapyDeviceInfo
	SetSampleRate(rate int) error
	SetRxFrequency(hz int64) error
	SetTxFrequency(hz int64) error
	SetAntenna(name string) error
	SetGain(name string, value float64) error
	SetAGC(on bool) error
	StartRx(sink func(i, q float64)) error
	StopRx()
	WriteTx(i, q float64)
}

// soapySampleRate picks the streaming rate: 768 kHz when the
// device supports it, 48 kHz for Radioberry-class boards, 1536 kHz
// for RTL-SDR dongles.
func soapySampleRate(info SoapyDeviceInfo) int {
	driver := strings.ToLower(info.Driver)
	if strings.Contains(driver, "radioberry") {
		return 48000
	}
	if strings.Contains(driver, "rtlsdr") {
		return 1536000
	}
	for _, r := range info.SampleRates {
		if r == 768000 {
			return 768000
		}
	}
	if len(info.SampleRates) > 0 {
		return info.SampleRates[0]
	}
	return 768000
}

func soapyRadioFromInfo(info SoapyDeviceInfo) *DiscoveredRadio {
	return &DiscoveredRadio{
		Protocol:           ProtocolSoapy,
		Name:               info.Label,
		SupportedReceivers: 1,
		AdcCount:           1,
		FrequencyMin:       info.FrequencyMin,
		FrequencyMax:       info.FrequencyMax,
	}
}

type SoapyProtocol struct {
	radio   *Radio
	dev     SoapyDevice
	info    SoapyDeviceInfo
	running atomic.Bool
}

func NewSoapyProtocol(radio *Radio, dev SoapyDevice) *SoapyProtocol {
	return &SoapyProtocol{radio: radio, dev: dev, info: dev.Info()}
}

func (s *SoapyProtocol) Protocol() RadioProtocol { return ProtocolSoapy }

// Start selects the rate, surfaces the antenna and gain tables to
// the store and begins streaming into receiver 0.
func (s *SoapyProtocol) Start() error {
	if s.running.Load() {
		return fmt.Errorf("soapy: already running")
	}
	rate := soapySampleRate(s.info)
	if err := s.dev.SetSampleRate(rate); err != nil {
		return fmt.Errorf("soapy: set sample rate %d: %w", rate, err)
	}
	rx := s.radio.Receivers[0]
	if rx.SampleRate != rate {
		rx.SetSampleRate(rate)
	}

	if s.radio.Discovered != nil {
		s.radio.Discovered.SupportedReceivers = 1
	}

	if err := s.dev.StartRx(rx.AddIQSamples); err != nil {
		return fmt.Errorf("soapy: start stream: %w", err)
	}
	s.running.Store(true)
	log.Printf("soapy: started %s at %d Hz", s.info.Label, rate)
	return nil
}

func (s *SoapyProtocol) Stop() {
	if !s.running.Swap(false) {
		return
	}
	s.dev.StopRx()
	log.Printf("soapy: stopped")
}

// IQSamples is the TX sink; devices without TX channels discard.
func (s *SoapyProtocol) IQSamples(i, q float64) {
	if s.info.TxChannels == 0 || !s.running.Load() {
		return
	}
	s.dev.WriteTx(i, q)
}

func (s *SoapyProtocol) SetRxFrequency(rx int, hz int64) {
	if rx != 0 {
		return
	}
	if err := s.dev.SetRxFrequency(hz); err != nil {
		log.Printf("soapy: set rx frequency: %v", err)
	}
}

func (s *SoapyProtocol) SetTxFrequency(hz int64) {
	if s.info.TxChannels == 0 {
		return
	}
	if err := s.dev.SetTxFrequency(hz); err != nil {
		log.Printf("soapy: set tx frequency: %v", err)
	}
}

// SetAntenna / SetGain / SetAGC are forwarded from the remote
// commands that only exist for Soapy devices.
func (s *SoapyProtocol) SetAntenna(index int) {
	if index < 0 || index >= len(s.info.Antennas) {
		return
	}
	if err := s.dev.SetAntenna(s.info.Antennas[index]); err != nil {
		log.Printf("soapy: set antenna: %v", err)
	}
}

func (s *SoapyProtocol) SetGain(index int, value float64) {
	if index < 0 || index >= len(s.info.GainNames) {
		return
	}
	if err := s.dev.SetGain(s.info.GainNames[index], value); err != nil {
		log.Printf("soapy: set gain: %v", err)
	}
}

func (s *SoapyProtocol) SetAGC(on bool) {
	if !s.info.HasAGC {
		return
	}
	if err := s.dev.SetAGC(on); err != nil {
		log.Printf("soapy: set agc: %v", err)
	}
}

// The scheduling hooks are no-ops: Soapy calls are synchronous,
// and there is no radio-side TX FIFO to pad on keying edges.
func (s *SoapyProtocol) SetPTT(on bool)            {}
func (s *SoapyProtocol) ScheduleGeneral()          {}
func (s *SoapyProtocol) ScheduleHighPriority()     {}
func (s *SoapyProtocol) ScheduleReceiveSpecific()  {}
func (s *SoapyProtocol) ScheduleTransmitSpecific() {}
