package main

import (
	"log"
	"time"
)

// dispatch interprets one client message. Runs on the session
// thread; all store mutation happens here or on the UI task, never
// from the sample paths.
func (sess *serverSession) dispatch(h Header, body []byte) {
	r := sess.radio
	r.Lock()
	defer r.Unlock()

	rxID := int(h.B1)
	validRx := rxID >= 0 && rxID < len(r.Receivers)

	switch h.Type {
	case CmdHeartbeat:
		// liveness only, the read deadline does the accounting

	case CmdStartRadio:
		// client echo of the snapshot terminator; nothing to do

	case CmdAGC:
		if validRx {
			r.Receivers[rxID].AGCMode = int(h.B2)
			r.Receivers[rxID].ApplyAGC()
		}

	case CmdAGCGain:
		if c, ok := decodeAGCGainCommand(body); ok && int(c.ID) < len(r.Receivers) {
			rx := r.Receivers[c.ID]
			rx.AGCGain = c.Gain
			rx.AGCHang = c.Hang
			rx.AGCThresh = c.Thresh
			rx.AGCHangThresh = c.HangThresh
			rx.ApplyAGC()
		}

	case CmdADC:
		// ADC antenna selection exists only on Soapy hardware; the
		// HPSDR engines ignore it silently.
		if soapy, ok := r.wire.(*SoapyProtocol); ok {
			if a, good := decodeADCData(body); good {
				soapy.SetAntenna(int(a.Antenna))
			}
		}

	case CmdAMCarrier:
		if c, ok := decodeDoubleCommand(body); ok {
			r.Tx.AmCarrierLevel = c.V
		}

	case CmdAttenuation:
		if int(h.B1) < len(r.ADC) {
			r.ADC[h.B1].Attenuation = int(int16(h.S1))
			if r.wire != nil {
				r.wire.ScheduleHighPriority()
			}
		}

	case CmdBandSel:
		r.SelectBand(int(h.B1), int(h.B2))

	case CmdBandstack:
		r.SelectBandstack(int(h.B1), int(h.B2))

	case CmdBinaural:
		if validRx {
			r.Receivers[rxID].Binaural = h.B2 != 0
		}

	case CmdCompressor:
		// b1 = enable, s1 = level in tenths of a dB
		r.Tx.Compressor = h.B1 != 0
		r.Tx.CompressorLevel = float64(int16(h.S1)) / 10.0
		r.Tx.ApplyCompressor()

	case CmdCTCSS:
		r.Tx.CtcssEnabled = h.B1 != 0
		r.Tx.Ctcss = int(h.B2)
		if r.wire != nil {
			r.wire.ScheduleTransmitSpecific()
		}

	case CmdCTUN:
		v := int(h.B1)
		if v == VfoA || v == VfoB {
			r.VFO[v].SetCTUN(h.B2 != 0)
			r.retune(v)
		}

	case CmdCW:
		// remote CW key event: b2 = state, s1 = wait in samples
		r.Tx.CWRing.Enqueue(h.B2 != 0, int(h.S1))

	case CmdCWPeak:
		v := int(h.B1)
		if v == VfoA || v == VfoB {
			r.VFO[v].CwAudioPeakFilter = h.B2 != 0
		}

	case CmdDeviation:
		if c, ok := decodeU64Command(body); ok {
			v := int(h.B1)
			if v == VfoA || v == VfoB {
				r.VFO[v].Deviation = int(c.V)
				r.deriveFilters(v)
			}
		}

	case CmdDexp:
		r.Tx.Dexp = h.B1 != 0
		r.Tx.DexpFilter = h.B2 != 0

	case CmdDiversity:
		if c, ok := decodeDiversityCommand(body); ok {
			r.SetDiversity(c.Enabled, c.Gain, c.Phase)
		}

	case CmdDrive:
		if c, ok := decodeDoubleCommand(body); ok {
			d := int(c.V)
			if d < 0 {
				d = 0
			}
			if d > 100 {
				d = 100
			}
			r.Tx.Drive = d
			if r.wire != nil {
				r.wire.ScheduleHighPriority()
			}
		}

	case CmdDuplex:
		r.Duplex = h.B1 != 0

	case CmdFilterBoard:
		r.FilterBoard = int(h.B1)
		if r.wire != nil {
			r.wire.ScheduleGeneral()
		}

	case CmdFilterSel:
		r.SetFilter(int(h.B1), int(h.B2))

	case CmdFilterVar:
		SetVarFilter(int(h.B1), int(h.B2), int(int16(h.S1)), int(int16(h.S2)))
		r.deriveFilters(VfoA)
		r.deriveFilters(VfoB)

	case CmdFilterCut:
		if validRx {
			rx := r.Receivers[rxID]
			rx.ApplyFilter(int(int16(h.S1)), int(int16(h.S2)))
		}

	case CmdFps:
		if validRx {
			r.Receivers[rxID].Fps = int(h.B2)
		}

	case CmdFreq:
		if c, ok := decodeU64Command(body); ok {
			v := int(h.B1)
			if v == VfoA || v == VfoB {
				r.VfoSetFrequency(v, c.V)
			}
		}

	case CmdLock:
		r.Locked = h.B1 != 0

	case CmdMeter:
		if validRx {
			r.Receivers[rxID].MeterPeak = h.B2 != 0
		}

	case CmdMicGain:
		if c, ok := decodeDoubleCommand(body); ok {
			r.Tx.MicGain = c.V
		}

	case CmdMode:
		v := int(h.B1)
		if v == VfoA || v == VfoB {
			r.SetMode(v, int(h.B2))
		}

	case CmdMove:
		v := int(h.B1)
		if c, ok := decodeU64Command(body); ok && (v == VfoA || v == VfoB) {
			r.VfoMove(v, c.V, h.B2 != 0)
		}

	case CmdMoveTo:
		v := int(h.B1)
		if c, ok := decodeU64Command(body); ok && (v == VfoA || v == VfoB) {
			r.VfoMoveTo(v, c.V)
		}

	case CmdMuteRX:
		r.MuteRxWhileTransmitting = h.B2 != 0

	case CmdNoise:
		if c, ok := decodeNoiseCommand(body); ok && int(c.ID) < len(r.Receivers) {
			rx := r.Receivers[c.ID]
			rx.NB = int(c.NB)
			rx.NR = int(c.NR)
			rx.ANF = c.ANF
			rx.SNB = c.SNB
			rx.ApplyNoise()
		}

	case CmdPan:
		if validRx {
			r.Receivers[rxID].SetPan(int(int16(h.S1)))
		}

	case CmdPaTrim:
		// b1 = table index, s1 = calibration point in tenths
		if int(h.B1) < len(r.PaTrim) {
			r.PaTrim[h.B1] = float64(int16(h.S1)) / 10.0
		}

	case CmdPreemp:
		r.Tx.PreEmphasize = h.B1 != 0

	case CmdPSOnOff:
		r.Tx.Puresignal = h.B1 != 0
		if r.wire != nil {
			r.wire.ScheduleTransmitSpecific()
		}

	case CmdPSReset, CmdPSResume, CmdPSAtt:
		// forwarded to the PureSignal engine when one is attached
		if r.Tx.PSCalibrate != nil {
			r.Tx.PSCalibrate()
		}

	case CmdPSParams:
		if c, ok := decodePSParams(body); ok {
			r.Tx.PsPtol = c.Ptol
			r.Tx.PsOneshot = c.Oneshot
			r.Tx.PsMap = c.Map
			r.Tx.PsSetPk = c.SetPk
		}

	case CmdPTT:
		r.SetMox(h.B1 != 0)

	case CmdRecall:
		r.RecallMemory(int(h.B1))

	case CmdStore:
		r.StoreMemory(int(h.B1))

	case CmdRegion:
		r.Region = int(h.B1)

	case CmdRFGain:
		if c, ok := decodeDoubleCommand(body); ok && int(h.B1) < len(r.ADC) {
			r.ADC[h.B1].Gain = c.V
		}

	case CmdRIT:
		if c, ok := decodeU64Command(body); ok {
			v := int(h.B1)
			if v == VfoA || v == VfoB {
				r.VFO[v].Rit = c.V
				r.VFO[v].RitEnabled = h.B2 != 0
				r.retune(v)
			}
		}

	case CmdXIT:
		if c, ok := decodeU64Command(body); ok {
			v := int(h.B1)
			if v == VfoA || v == VfoB {
				r.VFO[v].Xit = c.V
				r.VFO[v].XitEnabled = h.B2 != 0
				r.retune(v)
			}
		}

	case CmdRITStep:
		v := int(h.B1)
		if v == VfoA || v == VfoB {
			r.VFO[v].RitStep = int(h.S1)
		}

	case CmdRxFFT:
		// s1 = log2 of the analyzer size
		if validRx {
			r.Receivers[rxID].SetFFTSize(1 << h.S1)
		}

	case CmdTxFFT:
		r.Tx.SetFFTSize(1 << h.S1)

	case CmdRxEq:
		if c, ok := decodeEqualizerCommand(body); ok && int(c.ID) < len(r.Receivers) {
			rx := r.Receivers[c.ID]
			rx.EqEnable = c.Enable
			rx.EqFreq = c.Freq
			rx.EqGain = c.Gain
			rx.ApplyEqualizer()
		}

	case CmdTxEq:
		if c, ok := decodeEqualizerCommand(body); ok {
			r.Tx.EqEnable = c.Enable
			r.Tx.EqFreq = c.Freq
			r.Tx.EqGain = c.Gain
			r.Tx.ApplyEqualizer()
		}

	case CmdRxSelect:
		if validRx {
			r.ActiveReceiver = rxID
		}

	case CmdSampleRate:
		if c, ok := decodeU64Command(body); ok {
			r.SetSampleRate(rxID, int(c.V))
		}

	case CmdSat:
		r.SetSat(int(h.B1))

	case CmdSidetoneFreq:
		r.Tx.SidetoneFreq = int(h.S1)
		r.Tx.SetRamps()
		if r.wire != nil {
			r.wire.ScheduleTransmitSpecific()
		}

	case CmdSoapyAGC:
		if soapy, ok := r.wire.(*SoapyProtocol); ok {
			soapy.SetAGC(h.B2 != 0)
		}

	case CmdSoapyRxAnt, CmdSoapyTxAnt:
		if soapy, ok := r.wire.(*SoapyProtocol); ok {
			soapy.SetAntenna(int(h.B2))
		}

	case CmdSpectrum:
		// b1 = slot id, b2 = start/stop
		if int(h.B1) < spectrumSlots {
			sess.sendSpectrum[h.B1] = h.B2 != 0
		}

	case CmdSplit:
		r.SetSplit(h.B1 != 0)

	case CmdSquelch:
		if c, ok := decodeDoubleCommand(body); ok && validRx {
			rx := r.Receivers[rxID]
			rx.SquelchEnable = h.B2 != 0
			rx.Squelch = c.V
		}

	case CmdStep:
		v := int(h.B1)
		if v == VfoA || v == VfoB {
			r.VfoStep(v, int(int16(h.S1)))
		}

	case CmdTune:
		r.SetTune(h.B1 != 0)

	case CmdTwoTone:
		on := h.B1 != 0
		r.Tx.TwoTone = on
		if on {
			r.SetMox(true)
		} else {
			// radios with a slow TX chain need 100 ms of silence
			// before un-keying or the tail re-triggers the PA
			if radioHasTxTail(r.Discovered) {
				r.Unlock()
				time.Sleep(100 * time.Millisecond)
				r.Lock()
			}
			r.SetMox(false)
		}

	case CmdTxFilter:
		r.Tx.ApplyFilter(int(int16(h.S1)), int(int16(h.S2)))

	case CmdVfoAtoB:
		r.VfoAtoB()

	case CmdVfoBtoA:
		r.VfoBtoA()

	case CmdVfoSwap:
		r.VfoSwap()

	case CmdVfoStepSize:
		if c, ok := decodeU64Command(body); ok {
			v := int(h.B1)
			if v == VfoA || v == VfoB {
				r.VFO[v].Step = c.V
			}
		}

	case CmdVolume:
		if c, ok := decodeDoubleCommand(body); ok && validRx {
			r.Receivers[rxID].Volume = c.V
		}

	case CmdVox:
		r.Vox = h.B1 != 0

	case CmdZoom:
		if validRx {
			v := r.RxVfoIndex(rxID)
			r.Receivers[rxID].SetZoom(int(h.B2), r.VFO[v].Offset)
		}

	case CmdReceivers:
		// changing the receiver count needs a full protocol
		// restart; only legal between stop and start
		log.Printf("server: receiver count change requires restart, ignored while running")

	case InfoTxAudio:
		if a, ok := decodeTxAudioData(body); ok {
			sess.micRing.Write(a.Samples)
		}

	default:
		log.Printf("server: unhandled message type %d", h.Type)
	}
}

// radioHasTxTail: HermesLite, Hermes and STEMlab keep emitting for
// a moment after the stream stops.
func radioHasTxTail(d *DiscoveredRadio) bool {
	if d == nil {
		return false
	}
	switch d.Device {
	case DeviceHermes, DeviceHermesLite, DeviceHermesLite2, DeviceStemlab, NewDeviceHermes:
		return true
	}
	return false
}
