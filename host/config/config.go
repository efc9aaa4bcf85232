// Package config loads rtcctl defaults from a YAML file.
package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	"vbatrtc/host/serial"
)

// FileName is the config file looked up in the home directory.
const FileName = ".rtcctl.yaml"

// Config holds rtcctl defaults. Command line flags override it.
type Config struct {
	Device  string        `yaml:"device"`
	Baud    int           `yaml:"baud"`
	Timeout time.Duration `yaml:"timeout"`

	// Sim runs against an in-process simulated board instead of Device.
	Sim bool `yaml:"sim"`

	MQTT MQTT `yaml:"mqtt"`
}

// MQTT configures the alarm bridge. An empty URL disables it.
type MQTT struct {
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Device:  "/dev/ttyACM0",
		Baud:    serial.DefaultBaud,
		Timeout: time.Second,
		MQTT: MQTT{
			ClientID: "rtcctl",
			Topic:    "rtc/alarm",
		},
	}
}

// DefaultPath returns ~/.rtcctl.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// Parse overlays YAML data on the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Annotatef(err, "invalid config")
	}
	if cfg.Baud <= 0 {
		return nil, errors.NotValidf("baud %d", cfg.Baud)
	}
	if cfg.Timeout <= 0 {
		return nil, errors.NotValidf("timeout %v", cfg.Timeout)
	}
	return cfg, nil
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", path)
	}
	return cfg, nil
}

// Serial returns the serial port settings.
func (c *Config) Serial() *serial.Config {
	sc := serial.DefaultConfig(c.Device)
	sc.Baud = c.Baud
	return sc
}
