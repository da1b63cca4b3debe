// Package config loads the optional --config YAML file: an address book
// of default spoofed source addresses plus the ambient tunables
// (--rate, --metrics-addr). This is the "default root-server address
// tables" spec.md §1 calls "configuration data, not logic."
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration structure.
type File struct {
	SpoofedAddrs []string `yaml:"spoofed_addrs"`
	RateLimit    float64  `yaml:"rate_limit"`
	MetricsAddr  string   `yaml:"metrics_listen"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DefaultRootServers is the hard-coded list of 13 IANA root server IPv4
// addresses, used as the attack mode --spoofed-addrs default when
// neither the flag nor a config file supplies one.
var DefaultRootServers = []string{
	"198.41.0.4",
	"192.228.79.201",
	"192.33.4.12",
	"199.7.91.13",
	"192.203.230.10",
	"192.5.5.241",
	"192.112.36.4",
	"198.97.190.53",
	"192.36.148.17",
	"192.58.128.30",
	"193.0.14.129",
	"199.7.83.42",
	"202.12.27.33",
}
