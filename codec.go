package main

import (
	"encoding/binary"
	"math"
)

// On-wire scalar conversions for the client/server protocol.
// All multi-byte integers are big-endian. Doubles travel as 64-bit
// fixed point: u = (x + 9.0e8) * 1.0e10, which covers the full
// range of frequencies, gains and calibration values used anywhere
// in the radio. The wire quantum is 1e-10, but the conversion is
// done in float64 around the 9e8 offset, so a round trip is only
// accurate to about 1e-7.

const doubleOffset = 9.0e8
const doubleScale = 1.0e10

// putDouble encodes a float64 into 8 bytes at buf.
func putDouble(buf []byte, x float64) {
	u := uint64((x + doubleOffset) * doubleScale)
	binary.BigEndian.PutUint64(buf, u)
}

// getDouble decodes a float64 from 8 bytes at buf.
func getDouble(buf []byte) float64 {
	u := binary.BigEndian.Uint64(buf)
	return float64(u)/doubleScale - doubleOffset
}

// putU64 / getU64 move unsigned 64-bit integers. Signed quantities
// (frequencies can be negative during XVTR arithmetic) are bit-cast.
func putU64(buf []byte, v uint64) {
	binary.BigEndian.PutUint64(buf, v)
}

func getU64(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

func putI64(buf []byte, v int64) {
	binary.BigEndian.PutUint64(buf, uint64(v))
}

func getI64(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf))
}

func putU32(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}

func getU32(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

// putU16 / getU16 are used for header shorts and sample words.
func putU16(buf []byte, v uint16) {
	binary.BigEndian.PutUint16(buf, v)
}

func getU16(buf []byte) uint16 {
	return binary.BigEndian.Uint16(buf)
}

// putI16 / getI16 wrap signed shorts by bit-cast, matching the
// wire behavior for pan offsets and filter edges that can go
// negative.
func putI16(buf []byte, v int16) {
	binary.BigEndian.PutUint16(buf, uint16(v))
}

func getI16(buf []byte) int16 {
	return int16(binary.BigEndian.Uint16(buf))
}

// sampleToI16 converts a normalized audio/spectrum sample to the
// 16-bit wire representation, clamping instead of wrapping.
func sampleToI16(x float64) int16 {
	s := x * 32767.0
	if s > 32767.0 {
		s = 32767.0
	}
	if s < -32768.0 {
		s = -32768.0
	}
	return int16(math.Round(s))
}

func i16ToSample(v int16) float64 {
	return float64(v) / 32767.0
}
