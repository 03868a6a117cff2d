package config

import (
	"errors"
	"net"
	"net/url"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"
)

var (
	ErrInvalidNetworkURL    = errors.New("url_network must be an absolute http(s) URL")
	ErrInvalidListenAddress = errors.New("listen address must be in host:port form")
	ErrInvalidDataDir       = errors.New("data directory must be set")
	ErrInvalidTimeout       = errors.New("timeouts must not be negative")
	ErrInvalidLogLevel      = errors.New("log level must be one of debug, info, warn, error")
	ErrDataDirNotResolvable = errors.New("cannot determine a writable data directory")
)

const (
	defaultDataDir           = "~/.zknet"
	defaultNetworkConfigFile = "client.toml"
)

// Config holds all application configuration
type Config struct {
	APIListenAddress          string        `mapstructure:"api_listen_address" json:"apiListenAddress"`
	URLNetwork                string        `mapstructure:"url_network" json:"urlNetwork"`
	WalletshieldListenAddress string        `mapstructure:"walletshield_listen_address" json:"walletshieldListenAddress"`
	DataDir                   string        `mapstructure:"data_dir" json:"dataDir"`
	DialTimeout               time.Duration `mapstructure:"dial_timeout" json:"dialTimeout"`
	HTTPTimeout               time.Duration `mapstructure:"http_timeout" json:"httpTimeout"`
	ProbeTimeout              time.Duration `mapstructure:"probe_timeout" json:"probeTimeout"`
	LogLevel                  string        `mapstructure:"log_level" json:"logLevel"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		APIListenAddress:          "127.0.0.1:7070",
		URLNetwork:                "https://test.net.zknet.io",
		WalletshieldListenAddress: ":7071",
		DataDir:                   defaultDataDir,
		DialTimeout:               10 * time.Second,
		HTTPTimeout:               0, // no whole-request limit, executables can be large
		ProbeTimeout:              5 * time.Second,
		LogLevel:                  "info",
	}
}

// SetDefaults registers the defaults with v so that env vars and config
// files can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("api_listen_address", d.APIListenAddress)
	v.SetDefault("url_network", d.URLNetwork)
	v.SetDefault("walletshield_listen_address", d.WalletshieldListenAddress)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("dial_timeout", d.DialTimeout)
	v.SetDefault("http_timeout", d.HTTPTimeout)
	v.SetDefault("probe_timeout", d.ProbeTimeout)
	v.SetDefault("log_level", d.LogLevel)
}

// Load decodes the configuration held by v, resolves the data directory and
// validates the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, xerrors.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.resolveDataDir(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolveDataDir() error {
	if c.DataDir == "" {
		return ErrInvalidDataDir
	}
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return xerrors.Errorf("%w: %s", ErrDataDirNotResolvable, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return xerrors.Errorf("%w: %s", ErrDataDirNotResolvable, err)
	}
	c.DataDir = abs
	return nil
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.URLNetwork)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidNetworkURL
	}
	if _, _, err := net.SplitHostPort(c.APIListenAddress); err != nil {
		return xerrors.Errorf("api_listen_address: %w", ErrInvalidListenAddress)
	}
	if _, _, err := net.SplitHostPort(c.WalletshieldListenAddress); err != nil {
		return xerrors.Errorf("walletshield_listen_address: %w", ErrInvalidListenAddress)
	}
	if c.DataDir == "" {
		return ErrInvalidDataDir
	}
	if c.DialTimeout < 0 || c.HTTPTimeout < 0 || c.ProbeTimeout < 0 {
		return ErrInvalidTimeout
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// NetworksDir is the parent of every per-network asset directory
func (c *Config) NetworksDir() string {
	return filepath.Join(c.DataDir, "networks")
}

// NetworkConfigFile is the asset name handed to the service via -config
func (c *Config) NetworkConfigFile() string {
	return defaultNetworkConfigFile
}
