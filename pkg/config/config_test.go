package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hueshift/hueshift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hueshift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_GatewayBackend(t *testing.T) {
	path := writeConfig(t, `
app: storefront
listenAddr: ":9090"
slots:
  blue:
    endpoint: 10.0.0.1:8080
  green:
    endpoint: 10.0.0.2:8080
probe:
  path: /healthz
  interval: 5s
  observationWindow: 2m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "storefront", cfg.App)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	// Unset fields keep their defaults
	assert.Equal(t, BackendGateway, cfg.Backend)
	assert.Equal(t, "/var/lib/hueshift", cfg.DataDir)
	assert.Equal(t, "/healthz", cfg.Probe.Path)

	endpoints := cfg.Endpoints()
	assert.Equal(t, "10.0.0.1:8080", endpoints[types.SlotBlue])
	assert.Equal(t, "10.0.0.2:8080", endpoints[types.SlotGreen])

	params := cfg.RolloutParams()
	assert.Equal(t, 5*time.Second, params.ProbeInterval)
	assert.Equal(t, 2*time.Minute, params.ObservationWindow)
	// Normalized fields are filled from system defaults
	assert.NotZero(t, params.ReadinessTimeout)
	assert.NotZero(t, params.MaxAttempts)
}

func TestLoad_KubernetesBackend(t *testing.T) {
	path := writeConfig(t, `
app: storefront
backend: kubernetes
kubernetes:
  namespace: prod
slots:
  blue:
    endpoint: storefront-blue.prod.svc:8080
  green:
    endpoint: storefront-green.prod.svc:8080
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendKubernetes, cfg.Backend)
	assert.Equal(t, "prod", cfg.Kubernetes.Namespace)
}

// The prober needs per-slot endpoints no matter which backend routes
// traffic; a missing endpoint must fail at load, not at rollout time.
func TestLoad_KubernetesRequiresEndpoints(t *testing.T) {
	path := writeConfig(t, `
app: storefront
backend: kubernetes
kubernetes:
  namespace: prod
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "slots.blue.endpoint")
}

func TestLoad_MissingApp(t *testing.T) {
	path := writeConfig(t, `
slots:
  blue:
    endpoint: 10.0.0.1:8080
  green:
    endpoint: 10.0.0.2:8080
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "app is required")
}

func TestLoad_GatewayRequiresEndpoints(t *testing.T) {
	path := writeConfig(t, `
app: storefront
slots:
  blue:
    endpoint: 10.0.0.1:8080
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "slots.green.endpoint")
}

func TestLoad_UnknownBackend(t *testing.T) {
	path := writeConfig(t, `
app: storefront
backend: carrier-pigeon
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
