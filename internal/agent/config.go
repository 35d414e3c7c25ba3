package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	NodeURL    string              `json:"node_url" yaml:"node_url"`
	FaucetURL  string              `json:"faucet_url" yaml:"faucet_url"`
	TimeoutSec int                 `json:"timeout_sec" yaml:"timeout_sec"`
	Settlement SettlementConfig    `json:"settlement" yaml:"settlement"`
	Observer   ObservabilityConfig `json:"observability" yaml:"observability"`
}

// SettlementConfig bounds the balance-confirmation poll that follows a
// faucet drip.
type SettlementConfig struct {
	InitialDelayMS int `json:"initial_delay_ms" yaml:"initial_delay_ms"`
	DeadlineSec    int `json:"deadline_sec" yaml:"deadline_sec"`
}

type ObservabilityConfig struct {
	OTLPEndpoint string  `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string  `json:"service_name" yaml:"service_name"`
	SampleRatio  float64 `json:"sample_ratio" yaml:"sample_ratio"`
}

func DefaultConfig() Config {
	return Config{
		NodeURL:    "http://localhost:9944",
		TimeoutSec: 10,
		Settlement: SettlementConfig{
			InitialDelayMS: 500,
			DeadlineSec:    10,
		},
		Observer: ObservabilityConfig{
			ServiceName: "node-agent",
			SampleRatio: 1,
		},
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse json config: %w", err)
		}
	default:
		var yamlErr error
		if yamlErr = yaml.Unmarshal(data, &cfg); yamlErr == nil {
			break
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.New("config format not recognized (expected yaml/json)")
		}
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

func normalizeConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.NodeURL) == "" {
		cfg.NodeURL = "http://localhost:9944"
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 10
	}
	if cfg.Settlement.InitialDelayMS <= 0 {
		cfg.Settlement.InitialDelayMS = 500
	}
	if cfg.Settlement.DeadlineSec <= 0 {
		cfg.Settlement.DeadlineSec = 10
	}
	if cfg.Observer.SampleRatio <= 0 || cfg.Observer.SampleRatio > 1 {
		cfg.Observer.SampleRatio = 1
	}
	if strings.TrimSpace(cfg.Observer.ServiceName) == "" {
		cfg.Observer.ServiceName = "node-agent"
	}
}

// InferFaucetURL guesses a faucet endpoint from the node URL when none was
// configured: local nodes use the conventional localhost port, and known
// public testnet hosts serve the faucet on the same host.
func InferFaucetURL(nodeURL string) string {
	parsed, err := url.Parse(nodeURL)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	switch {
	case host == "localhost" || host == "127.0.0.1":
		return "http://localhost:3000"
	case strings.HasPrefix(host, "51.79.26"):
		// The public testnet faucet lives on one host of the cluster.
		return "http://51.79.26.123:3000"
	default:
		return ""
	}
}
