package main

import (
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"
)

// Framed transport for the client/server link. Every message starts
// with the sync pattern so that a reader which lost its place can
// scan forward and recover instead of tearing the session down.
var syncPattern = [4]byte{0xFA, 0xFA, 0xAF, 0xAF}

const (
	heartbeatInterval = 1500 * time.Millisecond
	readTimeout       = 30 * time.Second
)

// Transport wraps one TCP connection with framing, the send mutex
// and the heartbeat sender. The send mutex is what allows the RX
// audio callback to emit sample frames while another goroutine
// emits commands: all bytes of one message go out in a single
// critical section.
type Transport struct {
	conn   net.Conn
	sendMu sync.Mutex

	hbStop chan struct{}
	hbOnce sync.Once

	Resyncs uint64 // sync-pattern losses seen by the reader
}

func NewTransport(conn net.Conn) *Transport {
	return &Transport{
		conn:   conn,
		hbStop: make(chan struct{}),
	}
}

// SendRaw writes bytes outside the framing, used only during the
// authentication handshake.
func (t *Transport) SendRaw(b []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return writeAll(t.conn, b)
}

// ReadRaw reads exactly len(b) bytes outside the framing.
func (t *Transport) ReadRaw(b []byte) error {
	if err := t.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return err
	}
	_, err := io.ReadFull(t.conn, b)
	return err
}

// Send writes one framed message atomically.
func (t *Transport) Send(h Header, body []byte) error {
	frame := make([]byte, 4+headerWireSize+len(body))
	copy(frame, syncPattern[:])
	h.encode(frame[4:])
	copy(frame[4+headerWireSize:], body)

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if err := writeAll(t.conn, frame); err != nil {
		return fmt.Errorf("send type=%d: %w", h.Type, err)
	}
	metricRemoteBytesOut.Add(float64(len(frame)))
	return nil
}

// SendHeader sends a header-only command. b1/b2/s1/s2 carry the
// payload for the many commands that need no body.
func (t *Transport) SendHeader(op uint16, b1, b2 uint8, s1, s2 uint16) error {
	return t.Send(Header{Type: op, B1: b1, B2: b2, S1: s1, S2: s2}, nil)
}

// ReadMessage blocks until one full message arrives. A short read,
// a closed peer or a read timeout all surface as an error; the
// caller tears the session down. On a sync mismatch the reader
// scans one byte at a time for the pattern and resumes.
func (t *Transport) ReadMessage() (Header, []byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return Header{}, nil, err
	}

	var sync [4]byte
	if _, err := io.ReadFull(t.conn, sync[:]); err != nil {
		return Header{}, nil, fmt.Errorf("read sync: %w", err)
	}

	if sync != syncPattern {
		t.Resyncs++
		metricRemoteResyncs.Inc()
		log.Printf("transport: lost sync (got % 02X), scanning for pattern", sync[:])
		if err := t.resync(sync); err != nil {
			return Header{}, nil, err
		}
	}

	var hb [headerWireSize]byte
	if _, err := io.ReadFull(t.conn, hb[:]); err != nil {
		return Header{}, nil, fmt.Errorf("read header: %w", err)
	}
	h := decodeHeader(hb[:])

	if h.Type >= clientServerCommands {
		return Header{}, nil, fmt.Errorf("bad message type %d", h.Type)
	}

	size := bodySize(h.Type)
	if size < 0 {
		size = int(h.S1)
		if size > spectrumFixedSize+2*SpectrumDataSize {
			// Inconsistent payload length: this is one of the few
			// fatal conditions, the stream can not be trusted.
			return Header{}, nil, fmt.Errorf("inconsistent payload length %d for type %d", size, h.Type)
		}
	}

	var body []byte
	if size > 0 {
		body = make([]byte, size)
		if _, err := io.ReadFull(t.conn, body); err != nil {
			return Header{}, nil, fmt.Errorf("read body type=%d len=%d: %w", h.Type, size, err)
		}
	}
	metricRemoteBytesIn.Add(float64(4 + headerWireSize + size))
	return h, body, nil
}

// resync shifts one byte at a time until the 4-byte pattern lines
// up again.
func (t *Transport) resync(window [4]byte) error {
	var one [1]byte
	for {
		copy(window[0:], window[1:])
		if _, err := io.ReadFull(t.conn, one[:]); err != nil {
			return fmt.Errorf("resync: %w", err)
		}
		window[3] = one[0]
		if window == syncPattern {
			log.Printf("transport: sync re-acquired")
			return nil
		}
	}
}

// StartHeartbeat emits an empty heartbeat message every 1.5s so the
// peer's 30s read timeout never fires on an idle link.
func (t *Transport) StartHeartbeat() {
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.hbStop:
				return
			case <-ticker.C:
				if err := t.SendHeader(CmdHeartbeat, 0, 0, 0, 0); err != nil {
					log.Printf("transport: heartbeat failed: %v", err)
					return
				}
			}
		}
	}()
}

func (t *Transport) Close() {
	t.hbOnce.Do(func() { close(t.hbStop) })
	t.conn.Close()
}

// writeAll loops until the whole buffer is written; a 0-byte write
// or error marks the peer dead.
func writeAll(conn net.Conn, b []byte) error {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("zero-length write, peer dead")
		}
		b = b[n:]
	}
	return nil
}
