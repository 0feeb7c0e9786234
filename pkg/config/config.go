package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hueshift/hueshift/pkg/types"
)

// Backend selection for the traffic layer.
const (
	BackendGateway    = "gateway"
	BackendKubernetes = "kubernetes"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// SlotConfig describes one slot's static placement.
type SlotConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// ProbeConfig holds the health check settings applied to rollouts that
// do not override them per request.
type ProbeConfig struct {
	Path              string   `yaml:"path,omitempty"`
	ReadinessTimeout  Duration `yaml:"readinessTimeout,omitempty"`
	Timeout           Duration `yaml:"timeout,omitempty"`
	Interval          Duration `yaml:"interval,omitempty"`
	MaxAttempts       int      `yaml:"maxAttempts,omitempty"`
	SuccessThreshold  int      `yaml:"successThreshold,omitempty"`
	InitialDelay      Duration `yaml:"initialDelay,omitempty"`
	ObservationWindow Duration `yaml:"observationWindow,omitempty"`
}

// KubernetesConfig configures the Kubernetes backend.
type KubernetesConfig struct {
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"`
}

// DNSConfig configures the optional slot discovery DNS server.
type DNSConfig struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
	Domain     string `yaml:"domain,omitempty"`
}

// Config is the server configuration loaded from YAML.
type Config struct {
	App         string                      `yaml:"app"`
	ListenAddr  string                      `yaml:"listenAddr,omitempty"`
	GatewayAddr string                      `yaml:"gatewayAddr,omitempty"`
	DataDir     string                      `yaml:"dataDir,omitempty"`
	Backend     string                      `yaml:"backend,omitempty"`
	LogLevel    string                      `yaml:"logLevel,omitempty"`
	LogJSON     bool                        `yaml:"logJSON,omitempty"`
	Replicas    int                         `yaml:"replicas,omitempty"`
	Slots       map[types.SlotID]SlotConfig `yaml:"slots"`
	Probe       ProbeConfig                 `yaml:"probe,omitempty"`
	Kubernetes  KubernetesConfig            `yaml:"kubernetes,omitempty"`
	DNS         DNSConfig                   `yaml:"dns,omitempty"`
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		ListenAddr:  ":7430",
		GatewayAddr: ":7431",
		DataDir:     "/var/lib/hueshift",
		Backend:     BackendGateway,
		LogLevel:    "info",
		Replicas:    1,
		Probe:       ProbeConfig{Path: "/health"},
	}
}

// Load reads and validates a YAML config file. Missing optional fields
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields no default can supply.
func (c *Config) Validate() error {
	if c.App == "" {
		return fmt.Errorf("config: app is required")
	}
	switch c.Backend {
	case BackendGateway:
	case BackendKubernetes:
		if c.Kubernetes.Namespace == "" {
			return fmt.Errorf("config: kubernetes.namespace is required for the kubernetes backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	// Both backends probe the slots directly
	for _, id := range []types.SlotID{types.SlotBlue, types.SlotGreen} {
		if c.Slots[id].Endpoint == "" {
			return fmt.Errorf("config: slots.%s.endpoint is required", id)
		}
	}
	if c.Replicas < 1 {
		return fmt.Errorf("config: replicas must be at least 1")
	}
	return nil
}

// Endpoints returns the slot endpoint map consumed by the registry.
func (c *Config) Endpoints() map[types.SlotID]string {
	out := make(map[types.SlotID]string, len(c.Slots))
	for id, s := range c.Slots {
		out[id] = s.Endpoint
	}
	return out
}

// RolloutParams converts the probe defaults into rollout parameters,
// normalized so zero values fall back to system defaults.
func (c *Config) RolloutParams() types.RolloutParams {
	p := types.RolloutParams{
		Replicas:          c.Replicas,
		ReadinessTimeout:  time.Duration(c.Probe.ReadinessTimeout),
		ProbeTimeout:      time.Duration(c.Probe.Timeout),
		ProbeInterval:     time.Duration(c.Probe.Interval),
		MaxAttempts:       c.Probe.MaxAttempts,
		SuccessThreshold:  c.Probe.SuccessThreshold,
		InitialDelay:      time.Duration(c.Probe.InitialDelay),
		ObservationWindow: time.Duration(c.Probe.ObservationWindow),
	}
	p.Normalize()
	return p
}
