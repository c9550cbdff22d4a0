package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Persisted state: a plain key/value properties file per radio, one
// line per scalar, arrays with bracketed indices
// (band[3].oc_rx=4). Loaded at startup, rewritten on save; absent
// keys take their defaults.

type Properties struct {
	values map[string]string
}

func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// LoadProperties reads a file; a missing file is not an error, it
// just yields an empty set.
func LoadProperties(path string) (*Properties, error) {
	p := NewProperties()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("properties: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 1 {
			continue
		}
		p.values[line[:eq]] = line[eq+1:]
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("properties: read %s: %w", path, err)
	}
	return p, nil
}

// Save rewrites the file atomically, keys sorted so diffs stay
// readable.
func (p *Properties) Save(path string) error {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("properties: create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	for _, k := range keys {
		fmt.Fprintf(w, "%s=%s\n", k, p.values[k])
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("properties: rename: %w", err)
	}
	return nil
}

func (p *Properties) SetInt(key string, v int)     { p.values[key] = strconv.Itoa(v) }
func (p *Properties) SetInt64(key string, v int64) { p.values[key] = strconv.FormatInt(v, 10) }
func (p *Properties) SetFloat(key string, v float64) {
	p.values[key] = strconv.FormatFloat(v, 'g', -1, 64)
}
func (p *Properties) SetString(key string, v string) { p.values[key] = v }
func (p *Properties) SetBool(key string, v bool) {
	if v {
		p.values[key] = "1"
	} else {
		p.values[key] = "0"
	}
}

func (p *Properties) GetInt(key string, def int) int {
	if s, ok := p.values[key]; ok {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return def
}

func (p *Properties) GetInt64(key string, def int64) int64 {
	if s, ok := p.values[key]; ok {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	}
	return def
}

func (p *Properties) GetFloat(key string, def float64) float64 {
	if s, ok := p.values[key]; ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return def
}

func (p *Properties) GetString(key string, def string) string {
	if s, ok := p.values[key]; ok {
		return s
	}
	return def
}

func (p *Properties) GetBool(key string, def bool) bool {
	if s, ok := p.values[key]; ok {
		return s == "1" || strings.EqualFold(s, "true")
	}
	return def
}

// propsPathForRadio: one file per radio, named by MAC so several
// radios on one LAN keep separate state.
func propsPathForRadio(dir string, d *DiscoveredRadio) string {
	name := strings.ReplaceAll(macString(d.MAC), ":", "")
	if name == "000000000000" {
		name = strings.ReplaceAll(d.Name, " ", "_")
	}
	return filepath.Join(dir, name+".props")
}

// SaveRadioState flattens the store into properties.
func SaveRadioState(r *Radio, path string) error {
	p := NewProperties()

	p.SetBool("radio.duplex", r.Duplex)
	p.SetBool("radio.split", r.Split)
	p.SetInt("radio.sat_mode", r.SatMode)
	p.SetBool("radio.mute_rx_while_transmitting", r.MuteRxWhileTransmitting)
	p.SetBool("radio.cw_keyer_internal", r.CwKeyerInternal)
	p.SetInt("radio.region", r.Region)
	p.SetInt("radio.filter_board", r.FilterBoard)
	p.SetBool("radio.pa_enabled", r.PaEnabled)
	p.SetBool("radio.tx_out_of_band_allowed", r.TxOutOfBandAllowed)
	p.SetInt64("radio.frequency_calibration", r.FrequencyCalibration)
	p.SetInt("radio.active_receiver", r.ActiveReceiver)
	for i, t := range r.PaTrim {
		p.SetFloat(fmt.Sprintf("radio.pa_trim[%d]", i), t)
	}

	for v := 0; v < 2; v++ {
		vfo := &r.VFO[v]
		pfx := fmt.Sprintf("vfo[%d].", v)
		p.SetInt64(pfx+"frequency", vfo.Frequency)
		p.SetInt64(pfx+"ctun_frequency", vfo.CtunFrequency)
		p.SetBool(pfx+"ctun", vfo.CTUN)
		p.SetInt(pfx+"mode", vfo.Mode)
		p.SetInt(pfx+"filter", vfo.Filter)
		p.SetInt(pfx+"band", vfo.Band)
		p.SetInt(pfx+"bandstack", vfo.Bandstack)
		p.SetInt64(pfx+"step", vfo.Step)
		p.SetInt64(pfx+"rit", vfo.Rit)
		p.SetBool(pfx+"rit_enabled", vfo.RitEnabled)
		p.SetInt64(pfx+"xit", vfo.Xit)
		p.SetBool(pfx+"xit_enabled", vfo.XitEnabled)
		p.SetInt(pfx+"deviation", vfo.Deviation)
	}

	for i, rx := range r.Receivers {
		pfx := fmt.Sprintf("receiver[%d].", i)
		p.SetInt(pfx+"sample_rate", rx.SampleRate)
		p.SetInt(pfx+"adc", rx.ADC)
		p.SetInt(pfx+"zoom", rx.Zoom)
		p.SetInt(pfx+"pan", rx.Pan)
		p.SetFloat(pfx+"volume", rx.Volume)
		p.SetInt(pfx+"agc", rx.AGCMode)
		p.SetFloat(pfx+"agc_gain", rx.AGCGain)
		p.SetInt(pfx+"nb", rx.NB)
		p.SetInt(pfx+"nr", rx.NR)
		p.SetBool(pfx+"anf", rx.ANF)
		p.SetBool(pfx+"snb", rx.SNB)
		p.SetBool(pfx+"eq_enable", rx.EqEnable)
		for b := 0; b < EqBands; b++ {
			p.SetFloat(fmt.Sprintf("%seq_freq[%d]", pfx, b), rx.EqFreq[b])
			p.SetFloat(fmt.Sprintf("%seq_gain[%d]", pfx, b), rx.EqGain[b])
		}
	}

	tx := r.Tx
	p.SetInt("transmitter.drive", tx.Drive)
	p.SetInt("transmitter.tune_drive", tx.TuneDrive)
	p.SetBool("transmitter.tune_use_drive", tx.TuneUseDrive)
	p.SetFloat("transmitter.mic_gain", tx.MicGain)
	p.SetBool("transmitter.puresignal", tx.Puresignal)
	p.SetBool("transmitter.compressor", tx.Compressor)
	p.SetFloat("transmitter.compressor_level", tx.CompressorLevel)
	p.SetBool("transmitter.swr_protection", tx.SwrProtection)
	p.SetFloat("transmitter.swr_alarm", tx.SwrAlarm)
	p.SetInt("transmitter.cw_keyer_speed", tx.CWKeyerSpeed)
	p.SetInt("transmitter.sidetone_frequency", tx.SidetoneFreq)
	p.SetFloat("transmitter.sidetone_volume", tx.SidetoneVolume)

	for i, b := range r.Bands {
		pfx := fmt.Sprintf("band[%d].", i)
		p.SetString(pfx+"title", b.Title)
		p.SetInt(pfx+"oc_rx", int(b.OCrx))
		p.SetInt(pfx+"oc_tx", int(b.OCtx))
		p.SetInt(pfx+"alex_attenuation", b.AlexAttenuation)
		p.SetFloat(pfx+"pa_calibration", b.PaCalibration)
		p.SetInt64(pfx+"frequency_lo", b.FrequencyLO)
		p.SetInt64(pfx+"error_lo", b.ErrorLO)
		p.SetInt(pfx+"current", b.Current)
		for s, e := range b.Stack {
			spfx := fmt.Sprintf("band[%d].stack[%d].", i, s)
			p.SetInt64(spfx+"frequency", e.Frequency)
			p.SetInt(spfx+"mode", e.Mode)
			p.SetInt(spfx+"filter", e.Filter)
		}
	}

	for i := range r.Memory {
		m := &r.Memory[i]
		pfx := fmt.Sprintf("memory[%d].", i)
		p.SetInt64(pfx+"frequency", m.Frequency)
		p.SetInt(pfx+"mode", m.Mode)
		p.SetInt(pfx+"filter", m.Filter)
		p.SetInt(pfx+"band", m.Band)
		p.SetInt(pfx+"deviation", m.Deviation)
		p.SetBool(pfx+"ctcss_enabled", m.CtcssEnabled)
		p.SetInt(pfx+"ctcss", m.Ctcss)
	}

	return p.Save(path)
}

// LoadRadioState applies saved properties over the defaults.
func LoadRadioState(r *Radio, path string) error {
	p, err := LoadProperties(path)
	if err != nil {
		return err
	}

	r.Duplex = p.GetBool("radio.duplex", r.Duplex)
	r.Split = p.GetBool("radio.split", r.Split)
	r.SatMode = p.GetInt("radio.sat_mode", r.SatMode)
	r.MuteRxWhileTransmitting = p.GetBool("radio.mute_rx_while_transmitting", r.MuteRxWhileTransmitting)
	r.CwKeyerInternal = p.GetBool("radio.cw_keyer_internal", r.CwKeyerInternal)
	r.Region = p.GetInt("radio.region", r.Region)
	r.FilterBoard = p.GetInt("radio.filter_board", r.FilterBoard)
	r.PaEnabled = p.GetBool("radio.pa_enabled", r.PaEnabled)
	r.TxOutOfBandAllowed = p.GetBool("radio.tx_out_of_band_allowed", r.TxOutOfBandAllowed)
	r.FrequencyCalibration = p.GetInt64("radio.frequency_calibration", r.FrequencyCalibration)
	r.ActiveReceiver = p.GetInt("radio.active_receiver", r.ActiveReceiver)
	for i := range r.PaTrim {
		r.PaTrim[i] = p.GetFloat(fmt.Sprintf("radio.pa_trim[%d]", i), r.PaTrim[i])
	}

	for v := 0; v < 2; v++ {
		vfo := &r.VFO[v]
		pfx := fmt.Sprintf("vfo[%d].", v)
		vfo.Frequency = p.GetInt64(pfx+"frequency", vfo.Frequency)
		vfo.CtunFrequency = p.GetInt64(pfx+"ctun_frequency", vfo.CtunFrequency)
		vfo.CTUN = p.GetBool(pfx+"ctun", vfo.CTUN)
		vfo.Mode = p.GetInt(pfx+"mode", vfo.Mode)
		vfo.Filter = p.GetInt(pfx+"filter", vfo.Filter)
		vfo.Band = p.GetInt(pfx+"band", vfo.Band)
		vfo.Bandstack = p.GetInt(pfx+"bandstack", vfo.Bandstack)
		vfo.Step = p.GetInt64(pfx+"step", vfo.Step)
		vfo.Rit = p.GetInt64(pfx+"rit", vfo.Rit)
		vfo.RitEnabled = p.GetBool(pfx+"rit_enabled", vfo.RitEnabled)
		vfo.Xit = p.GetInt64(pfx+"xit", vfo.Xit)
		vfo.XitEnabled = p.GetBool(pfx+"xit_enabled", vfo.XitEnabled)
		vfo.Deviation = p.GetInt(pfx+"deviation", vfo.Deviation)
	}

	for i, rx := range r.Receivers {
		pfx := fmt.Sprintf("receiver[%d].", i)
		if rate := p.GetInt(pfx+"sample_rate", rx.SampleRate); rate != rx.SampleRate {
			rx.SetSampleRate(rate)
		}
		rx.ADC = p.GetInt(pfx+"adc", rx.ADC)
		rx.Zoom = p.GetInt(pfx+"zoom", rx.Zoom)
		rx.Pan = p.GetInt(pfx+"pan", rx.Pan)
		rx.Volume = p.GetFloat(pfx+"volume", rx.Volume)
		rx.AGCMode = p.GetInt(pfx+"agc", rx.AGCMode)
		rx.AGCGain = p.GetFloat(pfx+"agc_gain", rx.AGCGain)
		rx.NB = p.GetInt(pfx+"nb", rx.NB)
		rx.NR = p.GetInt(pfx+"nr", rx.NR)
		rx.ANF = p.GetBool(pfx+"anf", rx.ANF)
		rx.SNB = p.GetBool(pfx+"snb", rx.SNB)
		rx.EqEnable = p.GetBool(pfx+"eq_enable", rx.EqEnable)
		for b := 0; b < EqBands; b++ {
			rx.EqFreq[b] = p.GetFloat(fmt.Sprintf("%seq_freq[%d]", pfx, b), rx.EqFreq[b])
			rx.EqGain[b] = p.GetFloat(fmt.Sprintf("%seq_gain[%d]", pfx, b), rx.EqGain[b])
		}
	}

	tx := r.Tx
	tx.Drive = p.GetInt("transmitter.drive", tx.Drive)
	tx.TuneDrive = p.GetInt("transmitter.tune_drive", tx.TuneDrive)
	tx.TuneUseDrive = p.GetBool("transmitter.tune_use_drive", tx.TuneUseDrive)
	tx.MicGain = p.GetFloat("transmitter.mic_gain", tx.MicGain)
	tx.Puresignal = p.GetBool("transmitter.puresignal", tx.Puresignal)
	tx.Compressor = p.GetBool("transmitter.compressor", tx.Compressor)
	tx.CompressorLevel = p.GetFloat("transmitter.compressor_level", tx.CompressorLevel)
	tx.SwrProtection = p.GetBool("transmitter.swr_protection", tx.SwrProtection)
	tx.SwrAlarm = p.GetFloat("transmitter.swr_alarm", tx.SwrAlarm)
	tx.CWKeyerSpeed = p.GetInt("transmitter.cw_keyer_speed", tx.CWKeyerSpeed)
	tx.SidetoneFreq = p.GetInt("transmitter.sidetone_frequency", tx.SidetoneFreq)
	tx.SidetoneVolume = p.GetFloat("transmitter.sidetone_volume", tx.SidetoneVolume)
	tx.SetRamps()

	for i, b := range r.Bands {
		pfx := fmt.Sprintf("band[%d].", i)
		b.Title = p.GetString(pfx+"title", b.Title)
		b.OCrx = uint8(p.GetInt(pfx+"oc_rx", int(b.OCrx)))
		b.OCtx = uint8(p.GetInt(pfx+"oc_tx", int(b.OCtx)))
		b.AlexAttenuation = p.GetInt(pfx+"alex_attenuation", b.AlexAttenuation)
		b.PaCalibration = p.GetFloat(pfx+"pa_calibration", b.PaCalibration)
		b.FrequencyLO = p.GetInt64(pfx+"frequency_lo", b.FrequencyLO)
		b.ErrorLO = p.GetInt64(pfx+"error_lo", b.ErrorLO)
		b.Current = p.GetInt(pfx+"current", b.Current)
		for s := range b.Stack {
			spfx := fmt.Sprintf("band[%d].stack[%d].", i, s)
			e := &b.Stack[s]
			e.Frequency = p.GetInt64(spfx+"frequency", e.Frequency)
			e.Mode = p.GetInt(spfx+"mode", e.Mode)
			e.Filter = p.GetInt(spfx+"filter", e.Filter)
		}
	}

	for i := range r.Memory {
		m := &r.Memory[i]
		pfx := fmt.Sprintf("memory[%d].", i)
		m.Frequency = p.GetInt64(pfx+"frequency", m.Frequency)
		m.Mode = p.GetInt(pfx+"mode", m.Mode)
		m.Filter = p.GetInt(pfx+"filter", m.Filter)
		m.Band = p.GetInt(pfx+"band", m.Band)
		m.Deviation = p.GetInt(pfx+"deviation", m.Deviation)
		m.CtcssEnabled = p.GetBool(pfx+"ctcss_enabled", m.CtcssEnabled)
		m.Ctcss = p.GetInt(pfx+"ctcss", m.Ctcss)
	}

	r.deriveFilters(VfoA)
	r.deriveFilters(VfoB)
	return nil
}
