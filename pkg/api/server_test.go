package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/hueshift/hueshift/pkg/deploy"
	"github.com/hueshift/hueshift/pkg/events"
	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/orchestrator"
	"github.com/hueshift/hueshift/pkg/prober"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/rollback"
	"github.com/hueshift/hueshift/pkg/route"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

type okApplier struct{}

func (okApplier) Apply(ctx context.Context, slot types.Slot, version string, params types.RolloutParams) error {
	return nil
}

func (okApplier) WaitReady(ctx context.Context, slot types.Slot, params types.RolloutParams) error {
	return nil
}

type okBackend struct{}

func (okBackend) SetTarget(ctx context.Context, app string, slot types.SlotID, endpoint string) error {
	return nil
}

type okChecker struct{}

func (okChecker) Check(ctx context.Context, endpoint string) prober.Result {
	return prober.Result{Healthy: true, Message: "HTTP 200 OK", CheckedAt: time.Now()}
}

func (okChecker) Type() prober.CheckType { return prober.CheckTypeHTTP }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithBroker(t, nil)
}

func newTestServerWithBroker(t *testing.T, broker *events.Broker) *httptest.Server {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg, err := registry.New("storefront", store, map[types.SlotID]string{
		types.SlotBlue:  "10.0.0.1:8080",
		types.SlotGreen: "10.0.0.2:8080",
	})
	require.NoError(t, err)

	deployer := deploy.NewDeployer(reg, okApplier{})
	prb := prober.New("storefront", okChecker{})
	switcher := route.NewSwitcher(reg, store, okBackend{})
	rb := rollback.NewController(reg, switcher, store)
	orch := orchestrator.New(reg, deployer, prb, switcher, rb, store)
	if broker != nil {
		orch = orch.WithBroker(broker)
	}

	defaults := types.RolloutParams{
		Replicas:          1,
		ReadinessTimeout:  100 * time.Millisecond,
		ProbeTimeout:      50 * time.Millisecond,
		ProbeInterval:     time.Millisecond,
		MaxAttempts:       3,
		SuccessThreshold:  1,
		ObservationWindow: 10 * time.Millisecond,
	}

	apiSrv := NewServer(orch, reg, store, defaults)
	if broker != nil {
		apiSrv = apiSrv.WithBroker(broker)
	}
	srv := httptest.NewServer(apiSrv.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postDeploy(t *testing.T, srv *httptest.Server, body DeployRequest) (*http.Response, DeployResponse) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/v1/deployments", "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var out DeployResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestDeployments_Commit(t *testing.T) {
	srv := newTestServer(t)

	resp, out := postDeploy(t, srv, DeployRequest{Version: "v2.0.0"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, out.Record)
	assert.Equal(t, types.OutcomeCommitted, out.Record.Outcome)
	assert.Equal(t, types.SlotGreen, out.Record.ToSlot)
	assert.NotEmpty(t, out.RequestID)

	// The registry view reflects the switch
	sresp, err := http.Get(srv.URL + "/v1/slots")
	require.NoError(t, err)
	defer sresp.Body.Close()

	var slots SlotsResponse
	require.NoError(t, json.NewDecoder(sresp.Body).Decode(&slots))
	assert.Equal(t, types.SlotGreen, slots.Active)
	assert.Len(t, slots.Slots, 2)
}

func TestDeployments_MissingVersion(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postDeploy(t, srv, DeployRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeployments_InvalidSlot(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postDeploy(t, srv, DeployRequest{Version: "v2.0.0", TargetSlot: "purple"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeployments_ActiveSlotConflict(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postDeploy(t, srv, DeployRequest{Version: "v2.0.0", TargetSlot: "blue"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeployments_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/deployments")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRollouts_History(t *testing.T) {
	srv := newTestServer(t)

	_, _ = postDeploy(t, srv, DeployRequest{Version: "v2.0.0"})

	resp, err := http.Get(srv.URL + "/v1/rollouts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out RolloutsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Rollouts, 1)
	assert.Equal(t, "v2.0.0", out.Rollouts[0].Version)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReady(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out.Checks["storage"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
