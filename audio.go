package main

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Local audio through PortAudio: a stereo speaker stream fed from a
// ring, and a mono microphone stream draining into a ring. A nil
// *AudioBackend is legal everywhere; a headless server simply has
// no local audio.

const (
	audioOutRingSize     = 32768 // stereo samples
	audioInRingSize      = 8192
	audioFramesPerBuffer = 256
)

type AudioBackend struct {
	mu sync.Mutex

	outStream *portaudio.Stream
	outRing   []float32
	outHead   int
	outTail   int

	inStream *portaudio.Stream
	inRing   []int16
	inHead   int
	inTail   int

	initialized bool
}

// NewAudioBackend initializes PortAudio and opens the default
// devices. Failure leaves the radio running without local audio.
func NewAudioBackend(enableMic bool) (*AudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: initialize: %w", err)
	}
	a := &AudioBackend{
		outRing:     make([]float32, 2*audioOutRingSize),
		inRing:      make([]int16, audioInRingSize),
		initialized: true,
	}

	out, err := portaudio.OpenDefaultStream(0, 2, 48000, audioFramesPerBuffer, a.outCallback)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("audio: open output: %w", err)
	}
	a.outStream = out
	if err := out.Start(); err != nil {
		a.Close()
		return nil, fmt.Errorf("audio: start output: %w", err)
	}

	if enableMic {
		in, err := portaudio.OpenDefaultStream(1, 0, 48000, audioFramesPerBuffer, a.inCallback)
		if err != nil {
			log.Printf("audio: no microphone: %v", err)
		} else {
			a.inStream = in
			if err := in.Start(); err != nil {
				log.Printf("audio: microphone start: %v", err)
				a.inStream = nil
			}
		}
	}
	return a, nil
}

// outCallback drains the speaker ring; underflow plays silence.
func (a *AudioBackend) outCallback(out [][]float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range out[0] {
		if a.outTail == a.outHead {
			out[0][i] = 0
			out[1][i] = 0
			continue
		}
		out[0][i] = a.outRing[2*a.outTail]
		out[1][i] = a.outRing[2*a.outTail+1]
		a.outTail = (a.outTail + 1) % audioOutRingSize
	}
}

// inCallback fills the mic ring; overflow drops the oldest.
func (a *AudioBackend) inCallback(in []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range in {
		next := (a.inHead + 1) % audioInRingSize
		if next == a.inTail {
			a.inTail = (a.inTail + 1) % audioInRingSize
		}
		a.inRing[a.inHead] = s
		a.inHead = next
	}
}

// WriteAudio enqueues interleaved stereo float64 samples.
func (a *AudioBackend) WriteAudio(samples []float64) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(samples); i += 2 {
		next := (a.outHead + 1) % audioOutRingSize
		if next == a.outTail {
			break // full, drop the rest
		}
		a.outRing[2*a.outHead] = float32(samples[i])
		a.outRing[2*a.outHead+1] = float32(samples[i+1])
		a.outHead = next
	}
}

// MicSample returns the next local microphone sample; ok is false
// when no microphone is open.
func (a *AudioBackend) MicSample() (int16, bool) {
	if a == nil || a.inStream == nil {
		return 0, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inTail == a.inHead {
		return 0, true // underflow: silence
	}
	s := a.inRing[a.inTail]
	a.inTail = (a.inTail + 1) % audioInRingSize
	return s, true
}

func (a *AudioBackend) Close() {
	if a == nil {
		return
	}
	if a.outStream != nil {
		a.outStream.Stop()
		a.outStream.Close()
	}
	if a.inStream != nil {
		a.inStream.Stop()
		a.inStream.Close()
	}
	if a.initialized {
		portaudio.Terminate()
	}
}
