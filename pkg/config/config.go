package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gemdqm/hvlumi"
	"github.com/gemdqm/hvlumi/pkg/bridge"
)

// Environment variables holding the bridge endpoints.
const (
	EnvDCSBridge = "DCS_BRIDGE"
	EnvOMSBridge = "OMS_BRIDGE"
	EnvWebhook   = "HVLUMI_WEBHOOK"
)

// StringList is a flag.Value collecting repeated or comma-separated values.
type StringList []string

func (s *StringList) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *StringList) Set(value string) error {
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*s = append(*s, v)
		}
	}
	return nil
}

// Config holds all settings of a run analysis.
type Config struct {
	RunNumber    int
	OutputFolder string

	Threshold             float64 // uA
	Granularity           int64   // ms
	SecondsPerLumisection float64
	UseOMSLumisection     bool
	Chambers              StringList

	Threads   uint
	BatchSize int

	DCSURL     string
	OMSURL     string
	WebhookURL string
	Timeout    time.Duration

	Plots      bool
	Quiet      bool
	HTTPServer bool
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	WorkerCount  int
	WebhookURL   string
	OutputFolder string
}

// DefaultConfig returns a configuration with the analysis defaults
func DefaultConfig() *Config {
	return &Config{
		Threshold:             hvlumi.DefaultThreshold,
		Granularity:           hvlumi.DefaultGranularity,
		SecondsPerLumisection: hvlumi.DefaultSecondsPerLumisection,
		Threads:               5,
		BatchSize:             40,
		Timeout:               bridge.DefaultTimeout,
		OutputFolder:          ".",
	}
}

// DefaultServerConfig returns server configuration with sensible defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         "8080",
		WorkerCount:  5,
		OutputFolder: ".",
	}
}

// LoadEnv reads .env style files and fills the bridge URLs left empty. Missing files
// are ignored when none were named explicitly.
func (c *Config) LoadEnv(files ...string) error {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if c.DCSURL == "" {
		c.DCSURL = os.Getenv(EnvDCSBridge)
	}
	if c.OMSURL == "" {
		c.OMSURL = os.Getenv(EnvOMSBridge)
	}
	if c.WebhookURL == "" {
		c.WebhookURL = os.Getenv(EnvWebhook)
	}
	return nil
}

// Validate checks the analysis parameters and bridge endpoints.
func (c *Config) Validate() error {
	var errs []error
	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be positive, got %v", c.Threshold))
	}
	if c.Granularity <= 0 {
		errs = append(errs, fmt.Errorf("granularity must be positive, got %d ms", c.Granularity))
	}
	if c.SecondsPerLumisection <= 0 {
		errs = append(errs, fmt.Errorf("seconds per lumisection must be positive, got %v", c.SecondsPerLumisection))
	}
	if c.DCSURL == "" {
		errs = append(errs, fmt.Errorf("DCS bridge URL not set (%s)", EnvDCSBridge))
	}
	if c.OMSURL == "" {
		errs = append(errs, fmt.Errorf("OMS bridge URL not set (%s)", EnvOMSBridge))
	}
	return errors.Join(errs...)
}
