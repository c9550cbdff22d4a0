package main

import (
	"log"
	"net"
	"time"
)

// Protocol-1 discovery. The probe is 0xEF 0xFE 0x02 followed by
// zeros: 63 bytes over UDP, 1032 bytes over TCP (the TCP variant
// must look like a full USB frame or the radio drops it).

const (
	oldProbeUDPSize = 63
	oldProbeTCPSize = 1032
)

func oldProbePacket(size int) []byte {
	buf := make([]byte, size)
	buf[0] = 0xEF
	buf[1] = 0xFE
	buf[2] = 0x02
	return buf
}

// oldDiscoverBroadcast probes one interface via broadcast and
// collects replies for the discovery window.
func oldDiscoverBroadcast(iface ifaceAddr, add func(*DiscoveredRadio)) {
	conn, err := listenDiscoveryUDP(iface.IP)
	if err != nil {
		log.Printf("old_discovery: bind %s: %v", iface.Name, err)
		return
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: iface.Broadcast, Port: discoveryPort}
	if _, err := conn.WriteToUDP(oldProbePacket(oldProbeUDPSize), dst); err != nil {
		log.Printf("old_discovery: probe on %s: %v", iface.Name, err)
		return
	}

	oldReadReplies(conn, iface, false, add)
}

// oldDiscoverDirected sends one routed probe to a fixed target and
// optionally tries the TCP variant.
func oldDiscoverDirected(target string, tryTCP bool, add func(*DiscoveredRadio)) {
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		log.Printf("old_discovery: bad target %q: %v", target, err)
		return
	}

	conn, err := listenDiscoveryUDP(nil)
	if err != nil {
		log.Printf("old_discovery: bind: %v", err)
		return
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP(oldProbePacket(oldProbeUDPSize), dst); err != nil {
		log.Printf("old_discovery: directed probe: %v", err)
		return
	}

	oldReadReplies(conn, ifaceAddr{Name: "routed"}, true, add)

	if tryTCP {
		oldDiscoverTCP(dst, add)
	}
}

// oldDiscoverTCP attempts the TCP fallback with a bounded connect.
func oldDiscoverTCP(dst *net.UDPAddr, add func(*DiscoveredRadio)) {
	d := net.Dialer{Timeout: tcpProbeTimeout}
	conn, err := d.Dial("tcp4", dst.String())
	if err != nil {
		log.Printf("old_discovery: tcp probe %v: %v", dst, err)
		return
	}
	defer conn.Close()

	if err := writeAll(conn, oldProbePacket(oldProbeTCPSize)); err != nil {
		log.Printf("old_discovery: tcp probe write: %v", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(discoveryTimeout))
	buf := make([]byte, 1032)
	n, err := conn.Read(buf)
	if err != nil || n < 11 {
		return
	}
	if r := parseOldReply(buf[:n], ifaceAddr{Name: "tcp"}, true); r != nil {
		r.UseTCP = true
		r.Address = dst
		add(r)
	}
}

// oldReadReplies drains the discovery socket for the 2-second
// window, parsing every reply that carries the EF FE magic.
func oldReadReplies(conn *net.UDPConn, iface ifaceAddr, routed bool, add func(*DiscoveredRadio)) {
	buf := make([]byte, 1032)
	deadline := time.Now().Add(discoveryTimeout)
	for {
		conn.SetReadDeadline(deadline)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return // timeout ends the pass
		}
		if n < 11 {
			continue
		}
		r := parseOldReply(buf[:n], iface, routed)
		if r == nil {
			continue
		}
		r.Address = &net.UDPAddr{IP: from.IP, Port: discoveryPort}
		add(r)
	}
}

// parseOldReply decodes one protocol-1 discovery reply.
//
// Layout: bytes 0-1 magic EF FE, byte 2 status (2 idle, 3 busy),
// bytes 3-8 MAC, byte 9 software version, byte 10 device id.
func parseOldReply(buf []byte, iface ifaceAddr, routed bool) *DiscoveredRadio {
	if buf[0] != 0xEF || buf[1] != 0xFE {
		return nil
	}
	if buf[2] != 2 && buf[2] != 3 {
		return nil
	}

	r := &DiscoveredRadio{
		Protocol:        ProtocolP1,
		Status:          int(buf[2]),
		SoftwareVersion: int(buf[9]),
		Device:          int(buf[10]),
		UseRoutedProbe:  routed,
		InterfaceName:   iface.Name,
		InterfaceIP:     iface.IP,
		InterfaceMask:   iface.Mask,
		AdcCount:        1,
		FrequencyMin:    0.0,
		FrequencyMax:    61.44e6,
	}
	copy(r.MAC[:], buf[3:9])

	switch r.Device {
	case DeviceMetis:
		r.Name = "Metis"
		r.SupportedReceivers = 5
	case DeviceHermes:
		r.Name = "Hermes"
		r.SupportedReceivers = 5
	case DeviceGriffin:
		r.Name = "Griffin"
		r.SupportedReceivers = 2
	case DeviceAngelia:
		r.Name = "Angelia"
		r.SupportedReceivers = 7
		r.AdcCount = 2
	case DeviceOrion:
		r.Name = "Orion"
		r.SupportedReceivers = 7
		r.AdcCount = 2
	case DeviceOrion2:
		r.Name = "Orion2"
		r.SupportedReceivers = 7
		r.AdcCount = 2
	case DeviceStemlab:
		r.Name = "STEMlab"
		r.SupportedReceivers = 2
	case DeviceHermesLite:
		// The HermesLite V2 reports the same device id as the V1;
		// the V1 firmware line ended before software version 40,
		// so the version number is the only way to tell them
		// apart.
		r.SupportedReceivers = 2
		r.FrequencyMax = 38.4e6
		if r.SoftwareVersion >= 40 {
			r.Device = DeviceHermesLite2
			r.Name = "HermesLite V2"
			r.SupportedReceivers = 4
		} else {
			r.Name = "HermesLite V1"
		}
	default:
		r.Name = "unknown"
		r.SupportedReceivers = 2
	}
	return r
}
