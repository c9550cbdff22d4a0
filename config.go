package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Service configuration: the things decided at process start, as
// opposed to radio state which lives in the per-radio properties
// file.

type Config struct {
	Discovery DiscoveryConfig `yaml:"discovery"`
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
	Audio     AudioConfig     `yaml:"audio"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	StateDir  string          `yaml:"state_dir"`
}

type DiscoveryConfig struct {
	TargetIP string `yaml:"target_ip"` // directed probe target, empty for broadcast only
	TryTCP   bool   `yaml:"try_tcp"`
	EnableP1 bool   `yaml:"enable_p1"`
	EnableP2 bool   `yaml:"enable_p2"`
}

type ServerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type ClientConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type AudioConfig struct {
	Enabled   bool `yaml:"enabled"`
	EnableMic bool `yaml:"enable_mic"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9090", empty disables
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Interval int    `yaml:"interval"`
}

// LoadConfig reads the YAML file; a missing file yields defaults so
// the program runs with zero configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Discovery: DiscoveryConfig{EnableP1: true, EnableP2: true},
		Server:    ServerConfig{Port: DefaultServerPort},
		Client:    ClientConfig{Port: DefaultServerPort},
		Audio:     AudioConfig{Enabled: true},
		MQTT:      MQTTConfig{Topic: "hpsdr/status", ClientID: "hpsdr_remote", Interval: 10},
		StateDir:  ".",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Server.Enabled && len(cfg.Server.Password) < 5 {
		return nil, fmt.Errorf("config: server password must be at least 5 characters")
	}
	return cfg, nil
}
