package main

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transportPair(t *testing.T) (*Transport, *Transport) {
	t.Helper()
	a, b := net.Pipe()
	ta := NewTransport(a)
	tb := NewTransport(b)
	t.Cleanup(func() {
		ta.Close()
		tb.Close()
	})
	return ta, tb
}

func TestEveryMessageStartsWithSync(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	ta := NewTransport(a)

	go ta.SendHeader(CmdPTT, 1, 2, 3, 4)

	var prefix [4]byte
	_, err := readFull(b, prefix[:])
	require.NoError(t, err)
	assert.Equal(t, syncPattern, prefix)
}

func readFull(c net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := c.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

func TestHeaderOnlyRoundTrip(t *testing.T) {
	ta, tb := transportPair(t)

	go func() {
		ta.SendHeader(CmdAGC, 1, 3, 0x1234, 0x5678)
	}()

	h, body, err := tb.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, CmdAGC, h.Type)
	assert.Equal(t, uint8(1), h.B1)
	assert.Equal(t, uint8(3), h.B2)
	assert.Equal(t, uint16(0x1234), h.S1)
	assert.Equal(t, uint16(0x5678), h.S2)
	assert.Nil(t, body)
}

func TestBodyRoundTrip(t *testing.T) {
	ta, tb := transportPair(t)

	cmd := U64Command{V: 14250000}
	go func() {
		ta.Send(Header{Type: CmdFreq, B1: VfoA}, cmd.encode())
	}()

	h, body, err := tb.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, CmdFreq, h.Type)
	got, ok := decodeU64Command(body)
	require.True(t, ok)
	assert.Equal(t, int64(14250000), got.V)
}

func TestResyncAfterGarbage(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	tb := NewTransport(b)
	defer tb.Close()

	go func() {
		// garbage, then a clean heartbeat frame
		a.Write([]byte{0x00, 0xDE, 0xAD, 0xBE, 0xEF})
		frame := make([]byte, 4+headerWireSize)
		copy(frame, syncPattern[:])
		Header{Type: CmdHeartbeat}.encodeTo(frame[4:])
		a.Write(frame)
	}()

	h, _, err := tb.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, CmdHeartbeat, h.Type)
	assert.Equal(t, uint64(1), tb.Resyncs)
}

// encodeTo lets tests build raw frames.
func (h Header) encodeTo(buf []byte) { h.encode(buf) }

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	ta, tb := transportPair(t)

	const perSender = 50
	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				cmd := U64Command{V: int64(s*1000 + i)}
				ta.Send(Header{Type: CmdFreq, B1: uint8(s)}, cmd.encode())
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for n := 0; n < 4*perSender; n++ {
		h, body, err := tb.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, CmdFreq, h.Type)
		_, ok := decodeU64Command(body)
		require.True(t, ok)
	}
	<-done
	assert.Equal(t, uint64(0), tb.Resyncs, "interleaved writes would have broken sync")
}

func TestOversizedVariablePayloadIsFatal(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	tb := NewTransport(b)
	defer tb.Close()

	go func() {
		frame := make([]byte, 4+headerWireSize)
		copy(frame, syncPattern[:])
		Header{Type: InfoSpectrum, S1: 0xFFFF}.encodeTo(frame[4:])
		a.Write(frame)
	}()

	_, _, err := tb.ReadMessage()
	require.Error(t, err)
}
