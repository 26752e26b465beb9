// Package config loads and validates netsweep configuration. Files are YAML;
// the CLI layers environment variables and flags on top through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
)

const (
	defaultAPIPort        = 8080
	defaultMaxRequestSize = 1024 * 1024
	maxPort               = 65535
)

// Config represents the complete netsweep configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine" json:"engine" mapstructure:"engine"`
	Scanning ScanningConfig `yaml:"scanning" json:"scanning" mapstructure:"scanning"`
	Database db.Config      `yaml:"database" json:"database" mapstructure:"database"`
	API      APIConfig      `yaml:"api" json:"api" mapstructure:"api"`
	Logging  logging.Config `yaml:"logging" json:"logging" mapstructure:"logging"`
}

// EngineConfig locates the scan engine and its optional DNS fallback.
type EngineConfig struct {
	// Path to the nmap binary; empty means look it up on PATH
	NmapPath string `yaml:"nmap_path" json:"nmap_path" mapstructure:"nmap_path"`

	// DNS server for PTR lookups of hosts nmap could not name; empty disables
	DNSServer string `yaml:"dns_server" json:"dns_server" mapstructure:"dns_server"`

	DNSTimeout time.Duration `yaml:"dns_timeout" json:"dns_timeout" mapstructure:"dns_timeout"`
}

// ScanningConfig holds scan phase settings.
type ScanningConfig struct {
	// Bound on host discovery; zero means unbounded
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout" json:"discovery_timeout" mapstructure:"discovery_timeout"`

	// Bound on each host's detailed scan
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout" mapstructure:"probe_timeout"`

	// TCP SYN and ACK discovery probe ports, comma separated
	DiscoverySYNPorts string `yaml:"discovery_syn_ports" json:"discovery_syn_ports" mapstructure:"discovery_syn_ports"`
	DiscoveryACKPorts string `yaml:"discovery_ack_ports" json:"discovery_ack_ports" mapstructure:"discovery_ack_ports"`

	// Ports for the detailed scan; empty uses nmap's default set
	ProbePorts string `yaml:"probe_ports" json:"probe_ports" mapstructure:"probe_ports"`

	// Maximum scans running at once; zero means unbounded
	MaxConcurrentScans int `yaml:"max_concurrent_scans" json:"max_concurrent_scans" mapstructure:"max_concurrent_scans"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Host string `yaml:"host" json:"host" mapstructure:"host"`
	Port int    `yaml:"port" json:"port" mapstructure:"port"`

	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout"`

	// Zero disables the write deadline, which scan streams need
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`

	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`

	EnableCORS  bool     `yaml:"enable_cors" json:"enable_cors" mapstructure:"enable_cors"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins" mapstructure:"cors_origins"`

	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size" mapstructure:"max_request_size"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			NmapPath:   "",
			DNSServer:  "",
			DNSTimeout: 2 * time.Second,
		},
		Scanning: ScanningConfig{
			DiscoveryTimeout:   0,
			ProbeTimeout:       scanning.DefaultProbeTimeout,
			DiscoverySYNPorts:  strings.Join(scanning.DefaultSYNDiscoveryPorts, ","),
			DiscoveryACKPorts:  strings.Join(scanning.DefaultACKDiscoveryPorts, ","),
			ProbePorts:         "",
			MaxConcurrentScans: 0,
		},
		Database: db.DefaultConfig(),
		API: APIConfig{
			Host:            "127.0.0.1",
			Port:            defaultAPIPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			EnableCORS:      true,
			CORSOrigins:     []string{"*"},
			MaxRequestSize:  defaultMaxRequestSize,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// YAML is a superset of JSON, so .json files parse the same way.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// SetDefaults registers every configuration key on v so environment
// variables can override keys absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("engine.nmap_path", d.Engine.NmapPath)
	v.SetDefault("engine.dns_server", d.Engine.DNSServer)
	v.SetDefault("engine.dns_timeout", d.Engine.DNSTimeout)

	v.SetDefault("scanning.discovery_timeout", d.Scanning.DiscoveryTimeout)
	v.SetDefault("scanning.probe_timeout", d.Scanning.ProbeTimeout)
	v.SetDefault("scanning.discovery_syn_ports", d.Scanning.DiscoverySYNPorts)
	v.SetDefault("scanning.discovery_ack_ports", d.Scanning.DiscoveryACKPorts)
	v.SetDefault("scanning.probe_ports", d.Scanning.ProbePorts)
	v.SetDefault("scanning.max_concurrent_scans", d.Scanning.MaxConcurrentScans)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.database", d.Database.Database)
	v.SetDefault("database.username", d.Database.Username)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.ssl_mode", d.Database.SSLMode)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", d.Database.ConnMaxIdleTime)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.read_timeout", d.API.ReadTimeout)
	v.SetDefault("api.write_timeout", d.API.WriteTimeout)
	v.SetDefault("api.idle_timeout", d.API.IdleTimeout)
	v.SetDefault("api.shutdown_timeout", d.API.ShutdownTimeout)
	v.SetDefault("api.enable_cors", d.API.EnableCORS)
	v.SetDefault("api.cors_origins", d.API.CORSOrigins)
	v.SetDefault("api.max_request_size", d.API.MaxRequestSize)

	v.SetDefault("logging.level", string(d.Logging.Level))
	v.SetDefault("logging.format", string(d.Logging.Format))
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.add_source", d.Logging.AddSource)
}

// FromViper decodes the merged view of v (defaults, config file,
// environment and bound flags) and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Engine.DNSTimeout < 0 {
		return errors.ErrConfigInvalid("engine.dns_timeout", c.Engine.DNSTimeout)
	}

	if c.Scanning.DiscoveryTimeout < 0 {
		return errors.ErrConfigInvalid("scanning.discovery_timeout", c.Scanning.DiscoveryTimeout)
	}
	if c.Scanning.ProbeTimeout <= 0 {
		return errors.ErrConfigInvalid("scanning.probe_timeout", c.Scanning.ProbeTimeout)
	}
	if c.Scanning.MaxConcurrentScans < 0 {
		return errors.ErrConfigInvalid("scanning.max_concurrent_scans", c.Scanning.MaxConcurrentScans)
	}
	for key, list := range map[string]string{
		"scanning.discovery_syn_ports": c.Scanning.DiscoverySYNPorts,
		"scanning.discovery_ack_ports": c.Scanning.DiscoveryACKPorts,
		"scanning.probe_ports":         c.Scanning.ProbePorts,
	} {
		if _, err := ParsePortList(list); err != nil {
			return errors.NewConfigFieldError(errors.CodeConfiguration, err.Error(), key, list)
		}
	}

	if c.API.Port <= 0 || c.API.Port > maxPort {
		return errors.ErrConfigInvalid("api.port", c.API.Port)
	}
	if c.API.Host == "" {
		return errors.ErrConfigInvalid("api.host", c.API.Host)
	}
	if c.API.ReadTimeout < 0 || c.API.WriteTimeout < 0 || c.API.IdleTimeout < 0 {
		return errors.ErrConfigInvalid("api timeouts", "negative duration")
	}
	if c.API.MaxRequestSize <= 0 {
		return errors.ErrConfigInvalid("api.max_request_size", c.API.MaxRequestSize)
	}

	switch c.Logging.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return errors.ErrConfigInvalid("logging.level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return errors.ErrConfigInvalid("logging.format", c.Logging.Format)
	}

	return nil
}

// GetAPIAddress returns the full API address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// NmapConfig returns the engine settings for the scan phases.
func (c *Config) NmapConfig() scanning.NmapConfig {
	syn, _ := ParsePortList(c.Scanning.DiscoverySYNPorts)
	ack, _ := ParsePortList(c.Scanning.DiscoveryACKPorts)
	probe, _ := ParsePortList(c.Scanning.ProbePorts)
	return scanning.NmapConfig{
		BinaryPath: c.Engine.NmapPath,
		SYNPorts:   syn,
		ACKPorts:   ack,
		ProbePorts: strings.Join(probe, ","),
	}
}

// OrchestratorConfig returns the per-phase time limits.
func (c *Config) OrchestratorConfig() scanning.OrchestratorConfig {
	return scanning.OrchestratorConfig{
		DiscoveryTimeout: c.Scanning.DiscoveryTimeout,
		ProbeTimeout:     c.Scanning.ProbeTimeout,
	}
}

// ParsePortList splits a comma-separated list of ports and port ranges
// ("22,80,8000-8100"). An empty list yields no ports.
func ParsePortList(list string) ([]string, error) {
	var ports []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(item, "-")
		first, err := parsePort(lo)
		if err != nil {
			return nil, err
		}
		if isRange {
			last, err := parsePort(hi)
			if err != nil {
				return nil, err
			}
			if last < first {
				return nil, fmt.Errorf("invalid port range %q", item)
			}
		}
		ports = append(ports, item)
	}
	return ports, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > maxPort {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}
