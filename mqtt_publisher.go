package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Optional MQTT status publisher: periodically publishes the
// operating state as JSON so dashboards and logging software can
// follow the radio without speaking the remote protocol.

type MQTTPublisher struct {
	client   mqtt.Client
	topic    string
	interval time.Duration
	radio    *Radio
	stop     chan struct{}
}

type mqttStatus struct {
	Radio     string  `json:"radio"`
	Frequency int64   `json:"frequency"`
	Mode      string  `json:"mode"`
	Band      string  `json:"band"`
	Mox       bool    `json:"mox"`
	Tune      bool    `json:"tune"`
	Drive     int     `json:"drive"`
	Swr       float64 `json:"swr"`
	Split     bool    `json:"split"`
}

func NewMQTTPublisher(radio *Radio, broker, topic, clientID string, intervalSec int) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}

	if intervalSec <= 0 {
		intervalSec = 10
	}
	p := &MQTTPublisher{
		client:   client,
		topic:    topic,
		interval: time.Duration(intervalSec) * time.Second,
		radio:    radio,
		stop:     make(chan struct{}),
	}
	go p.loop()
	log.Printf("mqtt: publishing to %s on %s every %ds", topic, broker, intervalSec)
	return p, nil
}

func (p *MQTTPublisher) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.publish()
		}
	}
}

func (p *MQTTPublisher) publish() {
	r := p.radio
	r.Lock()
	v := &r.VFO[VfoA]
	st := mqttStatus{
		Radio:     r.Name,
		Frequency: v.CarrierFrequency(),
		Mode:      ModeName(v.Mode),
		Band:      r.Bands[v.Band].Title,
		Mox:       r.Mox,
		Tune:      r.Tune,
		Drive:     r.Tx.Drive,
		Swr:       r.Tx.Swr,
		Split:     r.Split,
	}
	r.Unlock()

	payload, err := json.Marshal(st)
	if err != nil {
		return
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		log.Printf("mqtt: publish: %v", token.Error())
	}
}

func (p *MQTTPublisher) Close() {
	close(p.stop)
	p.client.Disconnect(250)
}
