package main

// Builders that flatten store entities into wire messages, and the
// reverse appliers used by the client mirror. Kept in one place so
// field drift between the two directions shows up in review.

func radioDataFromStore(r *Radio) *RadioData {
	d := r.Discovered
	rd := &RadioData{
		Name:                    r.Name,
		Locked:                  r.Locked,
		Protocol:                uint8(d.Protocol),
		Device:                  uint16(d.Device),
		SupportedReceivers:      uint8(d.SupportedReceivers),
		Receivers:               uint8(r.LocalReceivers),
		FilterBoard:             uint8(r.FilterBoard),
		Region:                  uint8(r.Region),
		NumADC:                  uint8(d.AdcCount),
		Split:                   r.Split,
		SatMode:                 uint8(r.SatMode),
		Duplex:                  r.Duplex,
		DiversityEnabled:        r.DiversityEnabled,
		MuteRxWhileTransmitting: r.MuteRxWhileTransmitting,
		PaEnabled:               r.PaEnabled,
		TxOutOfBandAllowed:      r.TxOutOfBandAllowed,
		MicBoost:                r.MicBoost,
		MicLinein:               r.MicLinein,
		CwKeyerSidetoneVolume:   uint8(r.Tx.SidetoneVolume * 127.0),
		CwKeyerSidetoneFreq:     uint16(r.Tx.SidetoneFreq),
		DisplayWidth:            uint16(r.DisplayWidth),
		TxFilterLow:             int16(r.Tx.FilterLow),
		TxFilterHigh:            int16(r.Tx.FilterHigh),
		DriveMax:                r.DriveMax,
		DivGain:                 r.DivGain,
		DivPhase:                r.DivPhase,
		FrequencyCalibration:    r.FrequencyCalibration,
		FrequencyMin:            uint64(d.FrequencyMin),
		FrequencyMax:            uint64(d.FrequencyMax),
	}
	rd.PaTrim = r.PaTrim

	// Soapy radios additionally publish their antenna and gain
	// element tables so the client can present them.
	if soapy, ok := r.wire.(*SoapyProtocol); ok {
		rd.SoapyRadioSampleRate = uint64(soapySampleRate(soapy.info))
		rd.SoapyRxAntennas = capStrings(soapy.info.Antennas, 8)
		rd.SoapyRxGains = capStrings(soapy.info.GainNames, 8)
	}
	return rd
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// applyRadioData ingests the one-time radio snapshot on the client.
func applyRadioData(r *Radio, rd *RadioData) {
	r.Name = rd.Name
	r.Locked = rd.Locked
	r.LocalReceivers = int(rd.Receivers)
	r.FilterBoard = int(rd.FilterBoard)
	r.Region = int(rd.Region)
	r.Split = rd.Split
	r.SatMode = int(rd.SatMode)
	r.Duplex = rd.Duplex
	r.DiversityEnabled = rd.DiversityEnabled
	r.MuteRxWhileTransmitting = rd.MuteRxWhileTransmitting
	r.PaEnabled = rd.PaEnabled
	r.TxOutOfBandAllowed = rd.TxOutOfBandAllowed
	r.MicBoost = rd.MicBoost
	r.MicLinein = rd.MicLinein
	r.DisplayWidth = int(rd.DisplayWidth)
	r.DriveMax = rd.DriveMax
	r.DivGain = rd.DivGain
	r.DivPhase = rd.DivPhase
	r.PaTrim = rd.PaTrim
	r.FrequencyCalibration = rd.FrequencyCalibration
	r.Tx.SidetoneFreq = int(rd.CwKeyerSidetoneFreq)
	r.Tx.FilterLow = int(rd.TxFilterLow)
	r.Tx.FilterHigh = int(rd.TxFilterHigh)
}

func receiverDataFromStore(rx *Receiver) *ReceiverData {
	rd := &ReceiverData{
		ID:                  uint8(rx.ID),
		ADC:                 uint8(rx.ADC),
		AGC:                 uint8(rx.AGCMode),
		NB:                  uint8(rx.NB),
		NR:                  uint8(rx.NR),
		ANF:                 rx.ANF,
		SNB:                 rx.SNB,
		DisplayDetectorMode: uint8(rx.DisplayDetectorMode),
		DisplayAverageMode:  uint8(rx.DisplayAverageMode),
		Zoom:                uint8(rx.Zoom),
		Dither:              rx.Dither,
		Random:              rx.Random,
		Preamp:              rx.Preamp,
		SquelchEnable:       rx.SquelchEnable,
		Binaural:            rx.Binaural,
		EqEnable:            rx.EqEnable,
		Fps:                 uint16(rx.Fps),
		FilterLow:           int16(rx.FilterLow),
		FilterHigh:          int16(rx.FilterHigh),
		Pan:                 uint16(rx.Pan),
		Width:               uint16(rx.Width),
		HzPerPixel:          rx.HzPerPixel,
		Squelch:             rx.Squelch,
		Volume:              rx.Volume,
		AGCGain:             rx.AGCGain,
		AGCHang:             rx.AGCHang,
		AGCThresh:           rx.AGCThresh,
		AGCHangThreshold:    rx.AGCHangThresh,
		DisplayAverageTime:  rx.DisplayAverageTime,
		FFTSize:             uint64(rx.FFTSize),
		SampleRate:          uint64(rx.SampleRate),
	}
	rd.EqFreq = rx.EqFreq
	rd.EqGain = rx.EqGain
	return rd
}

func applyReceiverData(rx *Receiver, rd *ReceiverData) {
	rx.ADC = int(rd.ADC)
	rx.AGCMode = int(rd.AGC)
	rx.NB = int(rd.NB)
	rx.NR = int(rd.NR)
	rx.ANF = rd.ANF
	rx.SNB = rd.SNB
	rx.DisplayDetectorMode = int(rd.DisplayDetectorMode)
	rx.DisplayAverageMode = int(rd.DisplayAverageMode)
	rx.Zoom = int(rd.Zoom)
	rx.Dither = rd.Dither
	rx.Random = rd.Random
	rx.Preamp = rd.Preamp
	rx.SquelchEnable = rd.SquelchEnable
	rx.Binaural = rd.Binaural
	rx.EqEnable = rd.EqEnable
	rx.Fps = int(rd.Fps)
	rx.FilterLow = int(rd.FilterLow)
	rx.FilterHigh = int(rd.FilterHigh)
	rx.Pan = int(rd.Pan)
	rx.Width = int(rd.Width)
	rx.HzPerPixel = rd.HzPerPixel
	rx.Squelch = rd.Squelch
	rx.Volume = rd.Volume
	rx.AGCGain = rd.AGCGain
	rx.AGCHang = rd.AGCHang
	rx.AGCThresh = rd.AGCThresh
	rx.AGCHangThresh = rd.AGCHangThreshold
	rx.DisplayAverageTime = rd.DisplayAverageTime
	rx.EqFreq = rd.EqFreq
	rx.EqGain = rd.EqGain
	if rate := int(rd.SampleRate); rate != rx.SampleRate && rate >= 48000 {
		rx.SetSampleRate(rate)
	}
	rx.Pixels = rx.Width * rx.Zoom
}

func transmitterDataFromStore(r *Radio) *TransmitterData {
	tx := r.Tx
	td := &TransmitterData{
		ID:                 uint8(tx.ID),
		UseRxFilter:        r.UseRxFilter,
		Feedback:           tx.FeedbackRx >= 0,
		Puresignal:         tx.Puresignal,
		PsAutoOn:           tx.PsAuto,
		PsOneshot:          tx.PsOneshot,
		CtcssEnabled:       tx.CtcssEnabled,
		Ctcss:              uint8(tx.Ctcss),
		Drive:              uint8(tx.Drive),
		TuneUseDrive:       tx.TuneUseDrive,
		TuneDrive:          uint8(tx.TuneDrive),
		Compressor:         tx.Compressor,
		CFC:                tx.CFC,
		CFCEq:              tx.CFCEq,
		Dexp:               tx.Dexp,
		DexpFilter:         tx.DexpFilter,
		EqEnable:           tx.EqEnable,
		SwrProtection:      tx.SwrProtection,
		Fps:                uint16(tx.Fps),
		DexpFilterLow:      uint16(tx.DexpFilterLow),
		DexpFilterHigh:     uint16(tx.DexpFilterHigh),
		DexpTrigger:        uint16(tx.DexpTrigger),
		DexpExp:            uint16(tx.DexpExp),
		FilterLow:          int16(tx.FilterLow),
		FilterHigh:         int16(tx.FilterHigh),
		Deviation:          uint16(tx.Deviation),
		Width:              uint16(tx.Width),
		FFTSize:            uint64(tx.FFTSize),
		DexpTau:            tx.DexpTau,
		DexpAttack:         tx.DexpAttack,
		DexpRelease:        tx.DexpRelease,
		DexpHold:           tx.DexpHold,
		DexpHyst:           tx.DexpHyst,
		MicGain:            tx.MicGain,
		CompressorLevel:    tx.CompressorLevel,
		DisplayAverageTime: tx.DisplayAverageTime,
		AmCarrierLevel:     tx.AmCarrierLevel,
		PsAmpdelay:         tx.PsAmpdelay,
		PsMoxdelay:         tx.PsMoxdelay,
		PsLoopdelay:        tx.PsLoopdelay,
		SwrAlarm:           tx.SwrAlarm,
	}
	td.EqFreq = tx.EqFreq
	td.EqGain = tx.EqGain
	td.CfcFreq = tx.CfcFreq
	td.CfcLvl = tx.CfcLvl
	td.CfcPost = tx.CfcPost
	return td
}

func applyTransmitterData(tx *Transmitter, td *TransmitterData) {
	tx.Puresignal = td.Puresignal
	tx.PsAuto = td.PsAutoOn
	tx.PsOneshot = td.PsOneshot
	tx.CtcssEnabled = td.CtcssEnabled
	tx.Ctcss = int(td.Ctcss)
	tx.Drive = int(td.Drive)
	tx.TuneUseDrive = td.TuneUseDrive
	tx.TuneDrive = int(td.TuneDrive)
	tx.Compressor = td.Compressor
	tx.CFC = td.CFC
	tx.CFCEq = td.CFCEq
	tx.Dexp = td.Dexp
	tx.DexpFilter = td.DexpFilter
	tx.EqEnable = td.EqEnable
	tx.SwrProtection = td.SwrProtection
	tx.Fps = int(td.Fps)
	tx.FilterLow = int(td.FilterLow)
	tx.FilterHigh = int(td.FilterHigh)
	tx.Deviation = int(td.Deviation)
	tx.MicGain = td.MicGain
	tx.CompressorLevel = td.CompressorLevel
	tx.AmCarrierLevel = td.AmCarrierLevel
	tx.PsAmpdelay = td.PsAmpdelay
	tx.PsMoxdelay = td.PsMoxdelay
	tx.PsLoopdelay = td.PsLoopdelay
	tx.SwrAlarm = td.SwrAlarm
	tx.EqFreq = td.EqFreq
	tx.EqGain = td.EqGain
	tx.CfcFreq = td.CfcFreq
	tx.CfcLvl = td.CfcLvl
	tx.CfcPost = td.CfcPost
}

func vfoDataFromStore(v *VFO, idx int) *VFOData {
	return &VFOData{
		VFO:               uint8(idx),
		Band:              uint8(v.Band),
		Bandstack:         uint8(v.Bandstack),
		Mode:              uint8(v.Mode),
		Filter:            uint8(v.Filter),
		CTUN:              v.CTUN,
		RitEnabled:        v.RitEnabled,
		XitEnabled:        v.XitEnabled,
		CwAudioPeakFilter: v.CwAudioPeakFilter,
		RitStep:           uint16(v.RitStep),
		Deviation:         uint16(v.Deviation),
		Frequency:         v.Frequency,
		CtunFrequency:     v.CtunFrequency,
		Rit:               v.Rit,
		Xit:               v.Xit,
		LO:                v.LO,
		Offset:            v.Offset,
		Step:              v.Step,
	}
}

func applyVFOData(v *VFO, vd *VFOData) {
	v.Band = int(vd.Band)
	v.Bandstack = int(vd.Bandstack)
	v.Mode = int(vd.Mode)
	v.Filter = int(vd.Filter)
	v.CTUN = vd.CTUN
	v.RitEnabled = vd.RitEnabled
	v.XitEnabled = vd.XitEnabled
	v.CwAudioPeakFilter = vd.CwAudioPeakFilter
	v.RitStep = int(vd.RitStep)
	v.Deviation = int(vd.Deviation)
	v.Frequency = vd.Frequency
	v.CtunFrequency = vd.CtunFrequency
	v.Rit = vd.Rit
	v.Xit = vd.Xit
	v.LO = vd.LO
	v.Offset = vd.Offset
	v.Step = vd.Step
}

func bandDataFromStore(b *Band, idx int) *BandData {
	return &BandData{
		Title:           b.Title,
		Band:            uint8(idx),
		OCrx:            b.OCrx,
		OCtx:            b.OCtx,
		AlexRxAntenna:   uint8(b.AlexRxAntenna),
		AlexTxAntenna:   uint8(b.AlexTxAntenna),
		AlexAttenuation: uint8(b.AlexAttenuation),
		DisablePA:       b.DisablePA,
		Current:         uint8(b.Current),
		Gain:            int16(b.Gain),
		PaCalibration:   b.PaCalibration,
		FrequencyMin:    uint64(b.FrequencyMin),
		FrequencyMax:    uint64(b.FrequencyMax),
		FrequencyLO:     b.FrequencyLO,
		ErrorLO:         b.ErrorLO,
	}
}

func applyBandData(b *Band, bd *BandData) {
	b.Title = bd.Title
	b.OCrx = bd.OCrx
	b.OCtx = bd.OCtx
	b.AlexRxAntenna = int(bd.AlexRxAntenna)
	b.AlexTxAntenna = int(bd.AlexTxAntenna)
	b.AlexAttenuation = int(bd.AlexAttenuation)
	b.DisablePA = bd.DisablePA
	b.Current = int(bd.Current)
	b.Gain = int(bd.Gain)
	b.PaCalibration = bd.PaCalibration
	b.FrequencyMin = int64(bd.FrequencyMin)
	b.FrequencyMax = int64(bd.FrequencyMax)
	b.FrequencyLO = bd.FrequencyLO
	b.ErrorLO = bd.ErrorLO
}

func bandstackDataFromStore(b *Band, band, stack int) *BandstackData {
	e := &b.Stack[stack]
	return &BandstackData{
		Band:          uint8(band),
		Stack:         uint8(stack),
		Mode:          uint8(e.Mode),
		Filter:        uint8(e.Filter),
		CTUN:          e.CTUN,
		CtcssEnabled:  e.CtcssEnabled,
		Ctcss:         uint8(e.Ctcss),
		Deviation:     uint16(e.Deviation),
		Frequency:     e.Frequency,
		CtunFrequency: e.CtunFrequency,
	}
}

func applyBandstackData(b *Band, sd *BandstackData) {
	s := int(sd.Stack)
	for len(b.Stack) <= s {
		b.Stack = append(b.Stack, BandstackEntry{})
	}
	e := &b.Stack[s]
	e.Mode = int(sd.Mode)
	e.Filter = int(sd.Filter)
	e.CTUN = sd.CTUN
	e.CtcssEnabled = sd.CtcssEnabled
	e.Ctcss = int(sd.Ctcss)
	e.Deviation = int(sd.Deviation)
	e.Frequency = sd.Frequency
	e.CtunFrequency = sd.CtunFrequency
}

func memoryDataFromStore(m *MemorySlot, idx int) *MemoryData {
	return &MemoryData{
		Index:            uint8(idx),
		SatMode:          uint8(m.SatMode),
		CTUN:             m.CTUN,
		Mode:             uint8(m.Mode),
		Filter:           uint8(m.Filter),
		Band:             uint8(m.Band),
		AltCTUN:          m.AltCTUN,
		AltMode:          uint8(m.AltMode),
		AltFilter:        uint8(m.AltFilter),
		AltBand:          uint8(m.AltBand),
		CtcssEnabled:     m.CtcssEnabled,
		Ctcss:            uint8(m.Ctcss),
		Deviation:        uint16(m.Deviation),
		AltDeviation:     uint16(m.AltDeviation),
		Frequency:        m.Frequency,
		CtunFrequency:    m.CtunFrequency,
		AltFrequency:     m.AltFrequency,
		AltCtunFrequency: m.AltCtunFrequency,
	}
}

func applyMemoryData(m *MemorySlot, md *MemoryData) {
	m.SatMode = int(md.SatMode)
	m.CTUN = md.CTUN
	m.Mode = int(md.Mode)
	m.Filter = int(md.Filter)
	m.Band = int(md.Band)
	m.AltCTUN = md.AltCTUN
	m.AltMode = int(md.AltMode)
	m.AltFilter = int(md.AltFilter)
	m.AltBand = int(md.AltBand)
	m.CtcssEnabled = md.CtcssEnabled
	m.Ctcss = int(md.Ctcss)
	m.Deviation = int(md.Deviation)
	m.AltDeviation = int(md.AltDeviation)
	m.Frequency = md.Frequency
	m.CtunFrequency = md.CtunFrequency
	m.AltFrequency = md.AltFrequency
	m.AltCtunFrequency = md.AltCtunFrequency
}

func adcDataFromStore(r *Radio, i int) *ADCData {
	a := &r.ADC[i]
	return &ADCData{
		ADC:         uint8(i),
		Antenna:     uint16(a.Antenna),
		Attenuation: uint16(a.Attenuation),
		Gain:        a.Gain,
		MinGain:     a.MinGain,
		MaxGain:     a.MaxGain,
	}
}

func applyADCData(r *Radio, ad *ADCData) {
	i := int(ad.ADC)
	if i < 0 || i >= len(r.ADC) {
		return
	}
	a := &r.ADC[i]
	a.Antenna = int(ad.Antenna)
	a.Attenuation = int(ad.Attenuation)
	a.Gain = ad.Gain
	a.MinGain = ad.MinGain
	a.MaxGain = ad.MaxGain
}
