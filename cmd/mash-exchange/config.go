package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mash-protocol/mash-exchange/pkg/node"
	"gopkg.in/yaml.v3"
)

// FileConfig describes the simulated device and the consumer groups.
type FileConfig struct {
	// DeviceID names the simulated device.
	DeviceID string `yaml:"device_id"`

	// Period is the download period. Overridden by -period.
	Period time.Duration `yaml:"period"`

	// EventLog is the path of the CBOR cycle event log. Overridden by -event-log.
	EventLog string `yaml:"event_log"`

	// Nodes are the attributes the device exposes.
	Nodes []NodeConfig `yaml:"nodes"`

	// Groups are the consumers. Each group becomes a Connection; a group
	// with a parent hangs off the parent group's Connection.
	Groups []GroupConfig `yaml:"groups"`
}

// NodeConfig describes one attribute of the simulated device.
type NodeConfig struct {
	Key       string `yaml:"key"`
	Endpoint  uint8  `yaml:"endpoint"`
	Feature   uint8  `yaml:"feature"`
	Attribute uint16 `yaml:"attribute"`

	// Access is r, w or rw. Defaults to r.
	Access string `yaml:"access"`

	// Value is the initial value.
	Value any `yaml:"value"`
}

// GroupConfig describes one consumer group.
type GroupConfig struct {
	Name     string   `yaml:"name"`
	Parent   string   `yaml:"parent"`
	Nodes    []string `yaml:"nodes"`
	Priority int      `yaml:"priority"`
}

// ConfigError describes a configuration loading error.
type ConfigError struct {
	File    string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// DefaultConfig returns the built-in demo configuration: a charger with a
// metering feature and a control feature, watched by a control loop and a
// display panel.
func DefaultConfig() *FileConfig {
	return &FileConfig{
		DeviceID: "evse-001",
		Period:   time.Second,
		Nodes: []NodeConfig{
			{Key: "evse/power", Endpoint: 1, Feature: 4, Attribute: 1, Access: "r", Value: 7400},
			{Key: "evse/energy", Endpoint: 1, Feature: 4, Attribute: 2, Access: "r", Value: 12500},
			{Key: "evse/limit", Endpoint: 1, Feature: 5, Attribute: 21, Access: "rw", Value: 11000},
			{Key: "evse/state", Endpoint: 1, Feature: 5, Attribute: 1, Access: "r", Value: "charging"},
		},
		Groups: []GroupConfig{
			{Name: "control", Nodes: []string{"evse/power", "evse/limit"}},
			{Name: "panel", Parent: "control", Nodes: []string{"evse/state", "evse/energy"}, Priority: 10},
		},
	}
}

// ParseConfig parses and validates a configuration from YAML bytes.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads and validates a configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.File = path
			return nil, ce
		}
		return nil, &ConfigError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

// Validate checks that node keys and addresses are unique, that groups
// reference known readable nodes and that parents are declared before
// their children.
func (c *FileConfig) Validate() error {
	if c.Period < 0 {
		return &ConfigError{Message: "period must not be negative"}
	}
	if len(c.Nodes) == 0 {
		return &ConfigError{Message: "at least one node is required"}
	}

	keys := make(map[string]bool, len(c.Nodes))
	readable := make(map[string]bool, len(c.Nodes))
	addrs := make(map[node.Address]string, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.Key == "" {
			return &ConfigError{Message: fmt.Sprintf("node %d: key is required", i)}
		}
		if keys[n.Key] {
			return &ConfigError{Message: fmt.Sprintf("node %q: duplicate key", n.Key)}
		}
		keys[n.Key] = true

		access, err := parseAccess(n.Access)
		if err != nil {
			return &ConfigError{Message: fmt.Sprintf("node %q", n.Key), Cause: err}
		}
		readable[n.Key] = access.CanRead()

		addr := n.address("")
		if other, dup := addrs[addr]; dup {
			return &ConfigError{Message: fmt.Sprintf("node %q: address %s already used by %q", n.Key, addr, other)}
		}
		addrs[addr] = n.Key
	}

	groups := make(map[string]bool, len(c.Groups))
	for i, g := range c.Groups {
		if g.Name == "" {
			return &ConfigError{Message: fmt.Sprintf("group %d: name is required", i)}
		}
		if groups[g.Name] {
			return &ConfigError{Message: fmt.Sprintf("group %q: duplicate name", g.Name)}
		}
		if g.Parent != "" && !groups[g.Parent] {
			return &ConfigError{Message: fmt.Sprintf("group %q: parent %q must be declared first", g.Name, g.Parent)}
		}
		for _, key := range g.Nodes {
			if !keys[key] {
				return &ConfigError{Message: fmt.Sprintf("group %q: unknown node %q", g.Name, key)}
			}
			if !readable[key] {
				return &ConfigError{Message: fmt.Sprintf("group %q: node %q is not readable", g.Name, key)}
			}
		}
		groups[g.Name] = true
	}
	return nil
}

// Points builds one attribute point per configured node, keyed by node key.
func (c *FileConfig) Points() map[string]*node.Point {
	points := make(map[string]*node.Point, len(c.Nodes))
	for _, n := range c.Nodes {
		access, _ := parseAccess(n.Access)
		points[n.Key] = node.NewAttributePoint(n.Key, n.address(c.DeviceID), access)
	}
	return points
}

func (n NodeConfig) address(deviceID string) node.Address {
	return node.Address{
		DeviceID:    deviceID,
		EndpointID:  n.Endpoint,
		FeatureID:   n.Feature,
		AttributeID: n.Attribute,
	}
}

func parseAccess(s string) (node.Access, error) {
	switch strings.ToLower(s) {
	case "", "r":
		return node.AccessRead, nil
	case "w":
		return node.AccessWrite, nil
	case "rw":
		return node.AccessReadWrite, nil
	default:
		return 0, fmt.Errorf("unknown access %q (use: r, w, rw)", s)
	}
}
