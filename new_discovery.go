package main

import (
	"log"
	"net"
	"time"
)

// Protocol-2 discovery. The probe is 60 bytes, 00 00 00 00 02
// followed by zeros. Replies carry the board id in byte 11 (the
// protocol-2 device number is 1000 + board id), the firmware major
// version in byte 13, the number of DDCs in byte 20 and a beta
// version in byte 23 when nonzero.

const newProbeSize = 60

func newProbePacket() []byte {
	buf := make([]byte, newProbeSize)
	buf[4] = 0x02
	return buf
}

func newDiscoverBroadcast(iface ifaceAddr, add func(*DiscoveredRadio)) {
	conn, err := listenDiscoveryUDP(iface.IP)
	if err != nil {
		log.Printf("new_discovery: bind %s: %v", iface.Name, err)
		return
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: iface.Broadcast, Port: discoveryPort}
	if _, err := conn.WriteToUDP(newProbePacket(), dst); err != nil {
		log.Printf("new_discovery: probe on %s: %v", iface.Name, err)
		return
	}

	newReadReplies(conn, iface, false, add)
}

func newDiscoverDirected(target string, add func(*DiscoveredRadio)) {
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		log.Printf("new_discovery: bad target %q: %v", target, err)
		return
	}
	conn, err := listenDiscoveryUDP(nil)
	if err != nil {
		log.Printf("new_discovery: bind: %v", err)
		return
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP(newProbePacket(), dst); err != nil {
		log.Printf("new_discovery: directed probe: %v", err)
		return
	}

	newReadReplies(conn, ifaceAddr{Name: "routed"}, true, add)
}

func newReadReplies(conn *net.UDPConn, iface ifaceAddr, routed bool, add func(*DiscoveredRadio)) {
	buf := make([]byte, 256)
	deadline := time.Now().Add(discoveryTimeout)
	for {
		conn.SetReadDeadline(deadline)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n < 24 {
			continue
		}
		r := parseNewReply(buf[:n], iface, routed)
		if r == nil {
			continue
		}
		r.Address = &net.UDPAddr{IP: from.IP, Port: discoveryPort}
		add(r)
	}
}

// parseNewReply decodes a protocol-2 discovery reply. Byte 4 is the
// packet type (2 when idle, 3 when already running).
func parseNewReply(buf []byte, iface ifaceAddr, routed bool) *DiscoveredRadio {
	if buf[4] != 0x02 && buf[4] != 0x03 {
		return nil
	}

	r := &DiscoveredRadio{
		Protocol:        ProtocolP2,
		Status:          int(buf[4]),
		Device:          1000 + int(buf[11]),
		SoftwareVersion: int(buf[13]),
		MinorVersion:    int(buf[13]),
		BetaVersion:     int(buf[23]),
		UseRoutedProbe:  routed,
		InterfaceName:   iface.Name,
		InterfaceIP:     iface.IP,
		InterfaceMask:   iface.Mask,
		AdcCount:        1,
		FrequencyMin:    0.0,
		FrequencyMax:    61.44e6,
	}
	copy(r.MAC[:], buf[5:11])
	if n := int(buf[20]); n > 0 {
		r.SupportedReceivers = n
	}

	switch r.Device {
	case NewDeviceAtlas:
		r.Name = "Atlas"
	case NewDeviceHermes:
		r.Name = "Hermes"
	case NewDeviceHermes2:
		r.Name = "Hermes2"
	case NewDeviceAngelia:
		r.Name = "Angelia"
		r.AdcCount = 2
	case NewDeviceOrion:
		r.Name = "Orion"
		r.AdcCount = 2
	case NewDeviceOrion2:
		r.Name = "Orion2"
		r.AdcCount = 2
	case NewDeviceHermesLite:
		r.Name = "HermesLite"
		r.FrequencyMax = 38.4e6
	case NewDeviceSaturn:
		r.Name = "Saturn"
		r.AdcCount = 2
	default:
		r.Name = "unknown"
	}
	if r.SupportedReceivers == 0 {
		r.SupportedReceivers = 4
	}
	if r.BetaVersion != 0 {
		log.Printf("new_discovery: %s runs beta firmware %d.%d", r.Name, r.SoftwareVersion, r.BetaVersion)
	}
	return r
}
