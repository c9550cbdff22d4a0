package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Discovery front end: walks the up, non-loopback interfaces,
// probes for protocol-1 and protocol-2 radios via broadcast, sends
// directed probes to a configured target IP, and merges the
// replies. Soapy devices are enumerated separately through their
// device table.

type RadioProtocol uint8

const (
	ProtocolP1 RadioProtocol = iota
	ProtocolP2
	ProtocolSoapy
)

func (p RadioProtocol) String() string {
	switch p {
	case ProtocolP1:
		return "P1"
	case ProtocolP2:
		return "P2"
	case ProtocolSoapy:
		return "Soapy"
	}
	return "?"
}

// Protocol-1 device ids as reported in byte 10 of the reply.
const (
	DeviceMetis      = 0
	DeviceHermes     = 1
	DeviceGriffin    = 2
	DeviceAngelia    = 4
	DeviceOrion      = 5
	DeviceHermesLite = 6
	DeviceOrion2     = 10
	DeviceStemlab    = 100
	// Protocol-2 ids are 1000 + board id.
	NewDeviceAtlas      = 1000
	NewDeviceHermes     = 1001
	NewDeviceHermes2    = 1002
	NewDeviceAngelia    = 1003
	NewDeviceOrion      = 1004
	NewDeviceOrion2     = 1005
	NewDeviceHermesLite = 1006
	NewDeviceSaturn     = 1012
	// Synthetic id for the V2 HermesLite, distinguished by
	// software version, not by the device byte.
	DeviceHermesLite2 = 1036
)

const (
	discoveryPort    = 1024
	discoveryTimeout = 2 * time.Second
	tcpProbeTimeout  = 3 * time.Second
)

// DiscoveredRadio is one reply, deduplicated by MAC within each
// protocol (a radio answering both P1 and P2 is listed twice). Immutable
// after the user selects it.
type DiscoveredRadio struct {
	Protocol        RadioProtocol
	Device          int
	Name            string
	SoftwareVersion int
	MinorVersion    int
	BetaVersion     int
	Status          int
	MAC             [6]byte
	Address         *net.UDPAddr
	UseTCP          bool
	UseRoutedProbe  bool

	// Interface the reply arrived on, for the connectivity rule.
	InterfaceName string
	InterfaceIP   net.IP
	InterfaceMask net.IPMask

	SupportedReceivers int
	AdcCount           int
	FrequencyMin       float64
	FrequencyMax       float64
}

// Startable reports whether the radio can actually be reached for
// streaming: link-local on either side, a successful routed probe,
// or a shared subnet under the interface netmask.
func (r *DiscoveredRadio) Startable() bool {
	if r.Protocol == ProtocolSoapy {
		return true
	}
	if r.Address == nil {
		return false
	}
	if isLinkLocal(r.Address.IP) || isLinkLocal(r.InterfaceIP) {
		return true
	}
	if r.UseRoutedProbe {
		return true
	}
	if r.InterfaceIP == nil || r.InterfaceMask == nil {
		return false
	}
	net1 := r.InterfaceIP.Mask(r.InterfaceMask)
	net2 := r.Address.IP.Mask(r.InterfaceMask)
	return net1.Equal(net2)
}

func isLinkLocal(ip net.IP) bool {
	ip4 := ip.To4()
	return ip4 != nil && ip4[0] == 169 && ip4[1] == 254
}

// DiscoveryOptions selects what to probe.
type DiscoveryOptions struct {
	TargetIP   string // optional "ip" or "ip:port" for a directed probe
	TryTCP     bool   // attempt the TCP probe on the directed target
	EnableP1   bool
	EnableP2   bool
	SoapyTable []SoapyDeviceInfo // locally known Soapy devices
}

// DiscoverRadios runs one discovery pass and returns the merged
// enumeration, deduplicated by MAC and protocol.
func DiscoverRadios(opts DiscoveryOptions) []*DiscoveredRadio {
	var mu sync.Mutex
	var found []*DiscoveredRadio

	add := func(r *DiscoveredRadio) {
		mu.Lock()
		defer mu.Unlock()
		for _, have := range found {
			if have.MAC == r.MAC && have.Protocol == r.Protocol {
				return
			}
		}
		found = append(found, r)
		metricDiscoveryResponses.WithLabelValues(r.Protocol.String()).Inc()
		log.Printf("discovery: found %s device=%d version=%d at %v (%s) on %s",
			r.Name, r.Device, r.SoftwareVersion, r.Address, macString(r.MAC), r.InterfaceName)
	}

	var wg sync.WaitGroup

	// Directed probe first: if the user configured a fixed IP the
	// radio may be on a routed network where broadcast never
	// arrives.
	if opts.TargetIP != "" {
		target := opts.TargetIP
		if !strings.Contains(target, ":") {
			target = fmt.Sprintf("%s:%d", target, discoveryPort)
		}
		if opts.EnableP1 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				oldDiscoverDirected(target, opts.TryTCP, add)
			}()
		}
		if opts.EnableP2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				newDiscoverDirected(target, add)
			}()
		}
	}

	for _, iface := range eligibleInterfaces() {
		iface := iface
		if opts.EnableP1 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				oldDiscoverBroadcast(iface, add)
			}()
		}
		if opts.EnableP2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				newDiscoverBroadcast(iface, add)
			}()
		}
	}
	wg.Wait()

	for _, dev := range opts.SoapyTable {
		found = append(found, soapyRadioFromInfo(dev))
	}

	return found
}

// ifaceAddr is one usable IPv4 address of one usable interface.
type ifaceAddr struct {
	Name      string
	IP        net.IP
	Mask      net.IPMask
	Broadcast net.IP
}

func eligibleInterfaces() []ifaceAddr {
	var out []ifaceAddr
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Printf("discovery: cannot list interfaces: %v", err)
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			bcast := make(net.IP, 4)
			for i := 0; i < 4; i++ {
				bcast[i] = ip4[i] | ^ipnet.Mask[i]
			}
			out = append(out, ifaceAddr{
				Name:      iface.Name,
				IP:        ip4,
				Mask:      ipnet.Mask,
				Broadcast: bcast,
			})
		}
	}
	return out
}

// listenDiscoveryUDP binds an ephemeral UDP socket with
// SO_REUSEADDR and SO_BROADCAST set, so several discovery passes
// can overlap and the broadcast probes actually leave the box.
func listenDiscoveryUDP(ip net.IP) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
					sockErr = fmt.Errorf("failed to set SO_BROADCAST: %w", err)
					return
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	addr := "0.0.0.0:0"
	if ip != nil && !ip.IsUnspecified() {
		addr = net.JoinHostPort(ip.String(), "0")
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

func macString(mac [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
