package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Capture: record received audio into a bounded buffer and replay
// it through the transmitter. The buffer persists zstd-compressed
// so a minute of audio costs a few hundred kilobytes on disk.

const captureMaxSamples = 48000 * 60 // one minute at 48 kHz

type CaptureBuffer struct {
	mu      sync.Mutex
	samples []float64
	replay  int
}

func NewCaptureBuffer() *CaptureBuffer {
	return &CaptureBuffer{samples: make([]float64, 0, captureMaxSamples)}
}

// Record appends mono samples (stereo input is averaged down).
// Returns false when the buffer is full.
func (c *CaptureBuffer) Record(stereo []float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i+1 < len(stereo); i += 2 {
		if len(c.samples) >= captureMaxSamples {
			return false
		}
		c.samples = append(c.samples, 0.5*(stereo[i]+stereo[i+1]))
	}
	return true
}

// NextReplaySample feeds the transmitter; ok is false at the end.
func (c *CaptureBuffer) NextReplaySample() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replay >= len(c.samples) {
		return 0, false
	}
	s := c.samples[c.replay]
	c.replay++
	return s, true
}

func (c *CaptureBuffer) RewindReplay() {
	c.mu.Lock()
	c.replay = 0
	c.mu.Unlock()
}

func (c *CaptureBuffer) Clear() {
	c.mu.Lock()
	c.samples = c.samples[:0]
	c.replay = 0
	c.mu.Unlock()
}

// SaveFile writes the buffer zstd-compressed as little-endian
// 16-bit PCM.
func (c *CaptureBuffer) SaveFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture: create %s: %w", path, err)
	}
	defer f.Close()

	w, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("capture: zstd writer: %w", err)
	}
	buf := make([]byte, 2*len(c.samples))
	for i, s := range c.samples {
		v := sampleToI16(s)
		buf[2*i] = byte(v)
		buf[2*i+1] = byte(uint16(v) >> 8)
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return fmt.Errorf("capture: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	log.Printf("capture: saved %d samples to %s", len(c.samples), path)
	return nil
}

// LoadFile replaces the buffer contents from a saved capture.
func (c *CaptureBuffer) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("capture: open %s: %w", path, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("capture: zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, 2*captureMaxSamples))
	if err != nil {
		return fmt.Errorf("capture: read: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = c.samples[:0]
	for i := 0; i+1 < len(data); i += 2 {
		v := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		c.samples = append(c.samples, i16ToSample(v))
	}
	c.replay = 0
	log.Printf("capture: loaded %d samples from %s", len(c.samples), path)
	return nil
}
