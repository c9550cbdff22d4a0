package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Global debug flag
var DebugMode bool

const configPath = "hpsdr_remote.yaml"

func main() {
	showVersion := flag.Bool("V", false, "print version and firmware compatibility, then exit")
	testMenu := flag.Bool("TestMenu", false, "print the debug action test table")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}
	if *testMenu {
		printActionTest()
		return
	}

	platformInit()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	StartMetricsServer(cfg.Metrics.Listen)

	if cfg.Client.Enabled {
		runClient(cfg)
		return
	}
	runLocal(cfg)
}

// runLocal discovers a radio, starts the engines and optionally
// publishes the store to a remote client.
func runLocal(cfg *Config) {
	factory := NewBaselineDSP()

	found := DiscoverRadios(DiscoveryOptions{
		TargetIP: cfg.Discovery.TargetIP,
		TryTCP:   cfg.Discovery.TryTCP,
		EnableP1: cfg.Discovery.EnableP1,
		EnableP2: cfg.Discovery.EnableP2,
	})
	if len(found) == 0 {
		log.Fatalf("no radio found")
	}

	var selected *DiscoveredRadio
	for _, d := range found {
		if d.Startable() {
			selected = d
			break
		}
	}
	if selected == nil {
		log.Fatalf("found %d radio(s) but none is reachable for streaming", len(found))
	}
	log.Printf("using %s (%s) at %v", selected.Name, selected.Protocol, selected.Address)

	radio := NewRadio(selected, factory)

	propsPath := propsPathForRadio(cfg.StateDir, selected)
	if err := LoadRadioState(radio, propsPath); err != nil {
		log.Printf("state: %v (continuing with defaults)", err)
	}

	var audio *AudioBackend
	if cfg.Audio.Enabled {
		a, err := NewAudioBackend(cfg.Audio.EnableMic)
		if err != nil {
			log.Printf("%v (running without local audio)", err)
		} else {
			audio = a
			defer audio.Close()
		}
	}

	// wire engine by protocol, TX sinks connected to it
	switch selected.Protocol {
	case ProtocolP1:
		p := NewOldProtocol(radio)
		radio.AttachWire(p)
		radio.Tx.EmitIQ = func(i, q float64) { p.IQSamples(i, q, 0) }
		radio.Tx.EmitSidetone = func(s float64) { p.AudioSamples(s, s) }
		for _, rx := range radio.Receivers {
			rx.RadioAudio = p.AudioSamples
		}
	case ProtocolP2:
		p := NewNewProtocol(radio)
		radio.AttachWire(p)
		radio.Tx.EmitIQ = p.IQSamples
		radio.Tx.EmitSidetone = p.CWAudio
		for _, rx := range radio.Receivers {
			rx.RadioAudio = p.AudioSamples
		}
	case ProtocolSoapy:
		log.Fatalf("soapy devices need the SoapySDR bridge process")
	}

	for _, rx := range radio.Receivers {
		rx.LocalAudio = audio.WriteAudio
		rx.FeedRadioAudio = func() bool {
			if !radio.Mox {
				return true
			}
			return radio.Duplex && !radio.MuteRxWhileTransmitting
		}
	}
	if audio != nil {
		radio.Tx.LocalMicSample = audio.MicSample
	}

	if err := radio.Start(); err != nil {
		log.Fatalf("radio start: %v", err)
	}

	var server *RemoteServer
	if cfg.Server.Enabled {
		server = NewRemoteServer(radio, cfg.Server.Password)
		if err := server.Start(cfg.Server.Port); err != nil {
			log.Fatalf("%v", err)
		}
	}

	var publisher *MQTTPublisher
	if cfg.MQTT.Enabled {
		p, err := NewMQTTPublisher(radio, cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID, cfg.MQTT.Interval)
		if err != nil {
			log.Printf("%v (running without MQTT)", err)
		} else {
			publisher = p
			defer publisher.Close()
		}
	}

	// drain redraw requests; with no GUI attached they are only a
	// heartbeat for the log in debug mode
	go func() {
		for id := range radio.Redraw {
			if DebugMode {
				log.Printf("redraw rx=%d", id)
			}
		}
	}()

	waitForSignal()

	if server != nil {
		server.Stop()
	}
	radio.Stop()
	if err := SaveRadioState(radio, propsPath); err != nil {
		log.Printf("state save: %v", err)
	}
	log.Printf("shutdown complete")
}

// runClient connects to a remote server and mirrors its store.
func runClient(cfg *Config) {
	factory := NewBaselineDSP()

	// sparse store: the server snapshot fills in everything real
	d := &DiscoveredRadio{Protocol: ProtocolP1, Name: "remote"}
	d.SupportedReceivers = 2
	radio := NewRadio(d, factory)

	var audio *AudioBackend
	if cfg.Audio.Enabled {
		a, err := NewAudioBackend(cfg.Audio.EnableMic)
		if err != nil {
			log.Printf("%v (running without local audio)", err)
		} else {
			audio = a
			defer audio.Close()
		}
	}

	client, err := ConnectRemote(radio, cfg.Client.Host, cfg.Client.Port, cfg.Client.Password)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer client.Close()

	client.AudioSink = func(rx int, samples []int16) {
		if audio == nil {
			return
		}
		out := make([]float64, len(samples))
		for i, s := range samples {
			out[i] = i16ToSample(s)
		}
		audio.WriteAudio(out)
	}

	select {
	case <-client.Started:
		log.Printf("client: remote radio started")
	case <-time.After(30 * time.Second):
		log.Fatalf("client: no snapshot from server")
	}

	// ask for the active receiver's spectrum right away
	client.SendSpectrum(0, true)

	waitForSignal()
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Printf("received %v, shutting down", s)
}
