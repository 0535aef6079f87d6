// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config reads the dtnclient configuration from TOML or YAML files,
// merged over defaults and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SocketEnv overrides the configured agent socket.
const SocketEnv = "DTN_AGENT_SOCKET"

// DefaultSocket is dtnd's default UNIX agent socket.
const DefaultSocket = "/var/run/dtnd.sock"

// Duration is a time.Duration written as a string, e.g., "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string for TOML and YAML.
func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config describes the whole configuration.
type Config struct {
	Agent    AgentConf   `toml:"agent" yaml:"agent"`
	Timeouts TimeoutConf `toml:"timeouts" yaml:"timeouts"`
	Bundle   BundleConf  `toml:"bundle" yaml:"bundle"`
	Logging  LogConf     `toml:"logging" yaml:"logging"`
	Rest     RestConf    `toml:"rest" yaml:"rest"`
	Archive  ArchiveConf `toml:"archive" yaml:"archive"`
	Metrics  MetricsConf `toml:"metrics" yaml:"metrics"`
}

// AgentConf describes the UNIX agent connection.
type AgentConf struct {
	Socket        string   `toml:"socket" yaml:"socket"`
	WaitForSocket Duration `toml:"wait-for-socket" yaml:"wait-for-socket"`
	MaxFrameSize  uint64   `toml:"max-frame-size" yaml:"max-frame-size"`

	// Endpoint is registered on connect, if set.
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
}

// TimeoutConf describes the timeouts of blocking operations.
type TimeoutConf struct {
	Connect Duration `toml:"connect" yaml:"connect"`
	Request Duration `toml:"request" yaml:"request"`
	Receive Duration `toml:"receive" yaml:"receive"`
}

// BundleConf describes defaults for sent Bundles.
type BundleConf struct {
	Lifetime Duration `toml:"lifetime" yaml:"lifetime"`
	HopLimit uint64   `toml:"hop-limit" yaml:"hop-limit"`
	CRC      string   `toml:"crc" yaml:"crc"`
	Flags    []string `toml:"flags" yaml:"flags"`
}

// LogConf describes the Logging-configuration block.
type LogConf struct {
	Level        string `toml:"level" yaml:"level"`
	ReportCaller bool   `toml:"report-caller" yaml:"report-caller"`
	Format       string `toml:"format" yaml:"format"`
}

// RestConf describes dtnd's REST agent.
type RestConf struct {
	URL     string   `toml:"url" yaml:"url"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// ArchiveConf describes the optional delivery archive.
type ArchiveConf struct {
	Dir       string   `toml:"dir" yaml:"dir"`
	Retention Duration `toml:"retention" yaml:"retention"`
}

// MetricsConf describes the Prometheus endpoint.
type MetricsConf struct {
	Listen string `toml:"listen" yaml:"listen"`
}

// Default configuration.
func Default() Config {
	return Config{
		Agent: AgentConf{
			Socket:       DefaultSocket,
			MaxFrameSize: 64 << 20,
		},
		Timeouts: TimeoutConf{
			Connect: Duration{5 * time.Second},
			Request: Duration{30 * time.Second},
		},
		Bundle: BundleConf{
			Lifetime: Duration{24 * time.Hour},
		},
		Logging: LogConf{
			Level:  "info",
			Format: "text",
		},
		Rest: RestConf{
			URL:     "http://localhost:8080/rest",
			Timeout: Duration{60 * time.Second},
		},
		Archive: ArchiveConf{
			Retention: Duration{24 * time.Hour},
		},
	}
}

// Load a configuration file, selecting the format by its extension. An empty
// filename only applies the environment to the defaults.
func Load(filename string) (conf Config, err error) {
	conf = Default()

	if filename != "" {
		switch ext := strings.ToLower(filepath.Ext(filename)); ext {
		case ".toml":
			err = decodeToml(filename, &conf)
		case ".yaml", ".yml":
			err = decodeYaml(filename, &conf)
		default:
			err = fmt.Errorf("unsupported configuration format %q", ext)
		}
		if err != nil {
			err = fmt.Errorf("loading %s failed: %w", filename, err)
			return
		}
	}

	conf.ApplyEnv()
	err = conf.Validate()
	return
}

func decodeToml(filename string, conf *Config) error {
	md, err := toml.DecodeFile(filename, conf)
	if err != nil {
		return err
	}

	for _, key := range md.Undecoded() {
		log.WithFields(log.Fields{
			"file": filename,
			"key":  key.String(),
		}).Warn("Unknown configuration key")
	}
	return nil
}

func decodeYaml(filename string, conf *Config) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	return dec.Decode(conf)
}

// ApplyEnv overrides the configuration from the environment.
func (conf *Config) ApplyEnv() {
	if socket, ok := os.LookupEnv(SocketEnv); ok && socket != "" {
		conf.Agent.Socket = socket
	}
}
