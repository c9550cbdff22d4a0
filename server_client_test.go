package main

import (
	"crypto/sha256"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRadio(t *testing.T) *Radio {
	t.Helper()
	d := &DiscoveredRadio{
		Protocol:           ProtocolP1,
		Device:             DeviceHermes,
		Name:               "Hermes",
		SupportedReceivers: 5,
		AdcCount:           1,
		FrequencyMax:       61.44e6,
	}
	copy(d.MAC[:], []byte{0, 1, 2, 3, 4, 5})
	r := NewRadio(d, NewBaselineDSP())
	t.Cleanup(r.Stop)
	return r
}

func startTestServer(t *testing.T, password string) (*RemoteServer, int) {
	t.Helper()
	srv := NewRemoteServer(testRadio(t), password)
	require.NoError(t, srv.Start(0))
	t.Cleanup(srv.Stop)
	return srv, srv.Port()
}

// The authentication vector: server nonce r, version v, password p;
// the accepted response is SHA256(r || v || p) and nothing else.
func TestAuthDigestVector(t *testing.T) {
	nonce := make([]byte, 64) // all zeros
	digest := authDigest(nonce, 0x01000002, "secret")

	// independent computation of the same input
	input := make([]byte, 0, 74)
	input = append(input, nonce...)
	input = append(input, 0x01, 0x00, 0x00, 0x02)
	input = append(input, []byte("secret")...)
	want := sha256.Sum256(input)
	assert.Equal(t, want, digest)
}

func TestAuthAccept(t *testing.T) {
	_, port := startTestServer(t, "secret")

	conn, err := net.DialTimeout("tcp4", net.JoinHostPort("127.0.0.1", portString(port)), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	var nonce [64]byte
	_, err = readFull(conn, nonce[:])
	require.NoError(t, err)

	digest := authDigest(nonce[:], ClientServerVersion, "secret")
	_, err = conn.Write(digest[:])
	require.NoError(t, err)

	var verdict [1]byte
	_, err = readFull(conn, verdict[:])
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), verdict[0])
}

func TestAuthRejectFlippedByte(t *testing.T) {
	_, port := startTestServer(t, "secret")

	conn, err := net.DialTimeout("tcp4", net.JoinHostPort("127.0.0.1", portString(port)), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	var nonce [64]byte
	_, err = readFull(conn, nonce[:])
	require.NoError(t, err)

	digest := authDigest(nonce[:], ClientServerVersion, "secret")
	digest[len(digest)-1] ^= 0x01
	_, err = conn.Write(digest[:])
	require.NoError(t, err)

	var verdict [1]byte
	_, err = readFull(conn, verdict[:])
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), verdict[0])
}

func portString(p int) string {
	return strconv.Itoa(p)
}

func connectTestClient(t *testing.T, port int, password string) (*Radio, *RemoteClient) {
	t.Helper()
	d := &DiscoveredRadio{Protocol: ProtocolP1, Name: "mirror", SupportedReceivers: 2}
	mirror := NewRadio(d, NewBaselineDSP())
	t.Cleanup(mirror.Stop)

	c, err := ConnectRemote(mirror, "127.0.0.1", port, password)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	select {
	case <-c.Started:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot never completed")
	}
	return mirror, c
}

func TestSnapshotMirrorsRadio(t *testing.T) {
	srv, port := startTestServer(t, "secret")
	mirror, _ := connectTestClient(t, port, "secret")

	mirror.Lock()
	name := mirror.Name
	receivers := mirror.LocalReceivers
	freq := mirror.VFO[VfoA].Frequency
	mirror.Unlock()

	srv.radio.Lock()
	wantFreq := srv.radio.VFO[VfoA].Frequency
	srv.radio.Unlock()

	assert.Equal(t, "Hermes", name)
	assert.Equal(t, 2, receivers)
	assert.Equal(t, wantFreq, freq)
}

func TestWrongPasswordRejected(t *testing.T) {
	_, port := startTestServer(t, "secret")

	d := &DiscoveredRadio{Protocol: ProtocolP1, Name: "mirror", SupportedReceivers: 2}
	mirror := NewRadio(d, NewBaselineDSP())
	defer mirror.Stop()

	_, err := ConnectRemote(mirror, "127.0.0.1", port, "wrongpw")
	require.ErrorIs(t, err, ErrWrongPassword)
}

// 1000 wheel steps inside one flush interval reach the server as a
// single CMD_STEP carrying steps=1000.
func TestVfoStepCoalescingSingleMessage(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	c := &RemoteClient{t: NewTransport(a), stop: make(chan struct{})}
	c.runMu.Lock()
	c.running = true
	c.runMu.Unlock()
	c.wg.Add(1)
	go c.vfoTimer()
	defer func() {
		c.stopOnce.Do(func() { close(c.stop) })
		c.t.Close()
		c.wg.Wait()
	}()

	for i := 0; i < 1000; i++ {
		c.UpdateVfoStep(0, 1)
	}

	reader := NewTransport(b)
	h, _, err := reader.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, CmdStep, h.Type)
	assert.Equal(t, uint8(0), h.B1)
	assert.Equal(t, int16(1000), int16(h.S1))

	// nothing else follows within two flush intervals
	b.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
	var one [1]byte
	_, err = b.Read(one[:])
	assert.Error(t, err, "a second CMD_STEP would break coalescing")
}

func TestVfoStepAppliedOnServer(t *testing.T) {
	srv, port := startTestServer(t, "secret")
	_, c := connectTestClient(t, port, "secret")

	srv.radio.Lock()
	before := srv.radio.VFO[VfoA].CarrierFrequency()
	step := srv.radio.VFO[VfoA].Step
	srv.radio.Unlock()

	for i := 0; i < 1000; i++ {
		c.UpdateVfoStep(VfoA, 1)
	}
	time.Sleep(300 * time.Millisecond) // one flush plus dispatch

	srv.radio.Lock()
	after := srv.radio.VFO[VfoA].CarrierFrequency()
	srv.radio.Unlock()
	assert.Equal(t, before+1000*step, after)
}

// Spectrum framing: width 800 at zoom 2 renders 1600 pixels but
// ships exactly width samples, with the payload length in the
// variable-size header slot.
func TestSpectrumFraming(t *testing.T) {
	srv, port := startTestServer(t, "secret")

	rx := srv.radio.Receivers[0]
	rx.SetZoom(2, 0)
	require.Equal(t, 1600, rx.Pixels)
	require.Equal(t, 0, rx.Pan)

	mirror, c := connectTestClient(t, port, "secret")

	got := make(chan int, 1)
	c.OnRedraw = func(id int) {
		if id == 0 {
			select {
			case got <- id:
			default:
			}
		}
	}
	require.NoError(t, c.SendSpectrum(0, true))

	// keep the analyzer fed until a frame arrives at the client
	deadline := time.After(5 * time.Second)
	for {
		for i := 0; i < rx.BufferSize; i++ {
			rx.AddIQSamples(0.25, 0.0)
		}
		select {
		case <-got:
			mirror.Lock()
			mrx := mirror.Receivers[0]
			mrx.displayMu.Lock()
			width := len(mrx.PixelSamples)
			mrx.displayMu.Unlock()
			mirror.Unlock()
			assert.GreaterOrEqual(t, width, 800, "client holds the visible window")
			return
		case <-deadline:
			t.Fatal("no spectrum frame arrived")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSpectrumBodyLength(t *testing.T) {
	sd := SpectrumData{ID: 0, Zoom: 2, Width: 800, Sample: make([]uint16, 800)}
	body := sd.encode()
	assert.Equal(t, spectrumFixedSize+2*800, len(body))

	decoded, ok := decodeSpectrumData(body)
	require.True(t, ok)
	assert.Equal(t, uint16(800), decoded.Width)
	assert.Len(t, decoded.Sample, 800)
}

// TX audio upstream: the mic ring yields silence on underflow and
// client samples once primed.
func TestRemoteMicRing(t *testing.T) {
	var ring remoteMicRing
	ring.lowWater = 4

	s, ok := ring.ReadSample()
	assert.True(t, ok)
	assert.Equal(t, int16(0), s, "underflow yields silence")

	ring.Write([]int16{10, 20, 30, 40, 50})
	s, _ = ring.ReadSample()
	assert.Equal(t, int16(10), s)
	s, _ = ring.ReadSample()
	assert.Equal(t, int16(20), s)
}

func TestSessionTeardownForcesRx(t *testing.T) {
	srv, port := startTestServer(t, "secret")
	_, c := connectTestClient(t, port, "secret")

	require.NoError(t, c.SendMox(true))
	require.Eventually(t, func() bool {
		srv.radio.Lock()
		defer srv.radio.Unlock()
		return srv.radio.Mox
	}, 2*time.Second, 10*time.Millisecond)

	c.Close()

	require.Eventually(t, func() bool {
		srv.radio.Lock()
		defer srv.radio.Unlock()
		return !srv.radio.Mox
	}, 2*time.Second, 10*time.Millisecond, "session end must force mox off")
}
