package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Loopback emulator: a UDP socket that answers the protocol-1 probe
// with a canned reply.
func startP1Emulator(t *testing.T, reply []byte) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if n >= 3 && buf[0] == 0xEF && buf[1] == 0xFE && buf[2] == 0x02 {
				conn.WriteToUDP(reply, from)
			}
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func cannedP1Reply(device, version uint8) []byte {
	reply := make([]byte, 60)
	reply[0] = 0xEF
	reply[1] = 0xFE
	reply[2] = 0x02 // idle
	copy(reply[3:9], []byte{0x00, 0x1C, 0xC0, 0xA2, 0x13, 0x8F})
	reply[9] = version
	reply[10] = device
	return reply
}

func TestDiscoveryHermesLiteV2(t *testing.T) {
	addr := startP1Emulator(t, cannedP1Reply(0x06, 40))

	var found []*DiscoveredRadio
	oldDiscoverDirected(addr.String(), false, func(r *DiscoveredRadio) {
		found = append(found, r)
	})

	require.Len(t, found, 1)
	r := found[0]
	assert.Equal(t, "HermesLite V2", r.Name)
	assert.Equal(t, ProtocolP1, r.Protocol)
	assert.Equal(t, 0.0, r.FrequencyMin)
	assert.Equal(t, 38.4e6, r.FrequencyMax)
	assert.Equal(t, 40, r.SoftwareVersion)
	assert.True(t, r.UseRoutedProbe)
	assert.True(t, r.Startable(), "routed probe success makes the radio startable")
}

func TestDiscoveryHermesLiteV1Threshold(t *testing.T) {
	// software version below 40 means the V1 firmware line
	r := parseOldReply(cannedP1Reply(0x06, 39), ifaceAddr{Name: "eth0"}, false)
	require.NotNil(t, r)
	assert.Equal(t, "HermesLite V1", r.Name)
	assert.Equal(t, DeviceHermesLite, r.Device)
}

func TestDiscoveryIgnoresBadMagic(t *testing.T) {
	reply := cannedP1Reply(0x01, 28)
	reply[0] = 0x12
	assert.Nil(t, parseOldReply(reply, ifaceAddr{}, false))
}

func TestParseNewReply(t *testing.T) {
	reply := make([]byte, 60)
	reply[4] = 0x02
	copy(reply[5:11], []byte{0x00, 0x1C, 0xC0, 0x01, 0x02, 0x03})
	reply[11] = 5 // board id -> Orion2
	reply[13] = 21
	reply[20] = 4 // DDCs
	reply[23] = 18

	r := parseNewReply(reply, ifaceAddr{Name: "eth0"}, false)
	require.NotNil(t, r)
	assert.Equal(t, ProtocolP2, r.Protocol)
	assert.Equal(t, NewDeviceOrion2, r.Device)
	assert.Equal(t, "Orion2", r.Name)
	assert.Equal(t, 21, r.SoftwareVersion)
	assert.Equal(t, 18, r.BetaVersion)
	assert.Equal(t, 4, r.SupportedReceivers)
	assert.Equal(t, 2, r.AdcCount)
}

func TestStartableRules(t *testing.T) {
	mask := net.CIDRMask(24, 32)

	// same subnet under the interface netmask
	r := &DiscoveredRadio{
		Protocol:      ProtocolP1,
		Address:       &net.UDPAddr{IP: net.IPv4(192, 168, 1, 20)},
		InterfaceIP:   net.IPv4(192, 168, 1, 2).To4(),
		InterfaceMask: mask,
	}
	assert.True(t, r.Startable())

	// different subnet, no routed probe
	r.Address = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5)}
	assert.False(t, r.Startable())

	// routed probe overrides the subnet check
	r.UseRoutedProbe = true
	assert.True(t, r.Startable())

	// link-local on the radio side is always startable
	r.UseRoutedProbe = false
	r.Address = &net.UDPAddr{IP: net.IPv4(169, 254, 10, 1)}
	assert.True(t, r.Startable())
}

func TestMacDedup(t *testing.T) {
	addr := startP1Emulator(t, cannedP1Reply(0x01, 28))

	seen := map[string]int{}
	add := func(r *DiscoveredRadio) { seen[macString(r.MAC)]++ }

	// two passes against the same emulator must not double-count
	var found []*DiscoveredRadio
	collect := func(r *DiscoveredRadio) {
		for _, have := range found {
			if have.MAC == r.MAC {
				return
			}
		}
		found = append(found, r)
		add(r)
	}
	oldDiscoverDirected(addr.String(), false, collect)
	oldDiscoverDirected(addr.String(), false, collect)

	require.Len(t, seen, 1)
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}
