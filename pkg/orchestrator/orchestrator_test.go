package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/hueshift/hueshift/pkg/deploy"
	"github.com/hueshift/hueshift/pkg/log"
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

// fakeApplier is a workload layer that always succeeds unless told
// otherwise
type fakeApplier struct {
	applyErr error
	readyErr error
}

func (f *fakeApplier) Apply(ctx context.Context, slot types.Slot, version string, params types.RolloutParams) error {
	return f.applyErr
}

func (f *fakeApplier) WaitReady(ctx context.Context, slot types.Slot, params types.RolloutParams) error {
	return f.readyErr
}

// fakeBackend tracks the routed slot
type fakeBackend struct {
	mu     sync.Mutex
	target types.SlotID
	err    error
}

func (f *fakeBackend) SetTarget(ctx context.Context, app string, slot types.SlotID, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.target = slot
	return nil
}

func (f *fakeBackend) Target() types.SlotID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}

// flakyChecker scripts probe results: each call pops the next result,
// repeating the final one
type flakyChecker struct {
	mu     sync.Mutex
	script []bool
	calls  int
}

func (f *flakyChecker) Check(ctx context.Context, endpoint string) prober.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	healthy := f.script[min(f.calls, len(f.script)-1)]
	f.calls++
	msg := "HTTP 200 OK"
	if !healthy {
		msg = "HTTP 503 Service Unavailable"
	}
	return prober.Result{Healthy: healthy, Message: msg, CheckedAt: time.Now()}
}

func (f *flakyChecker) Type() prober.CheckType { return prober.CheckTypeHTTP }

type fixture struct {
	orch    *Orchestrator
	reg     *registry.Registry
	backend *fakeBackend
	store   storage.Store
	applier *fakeApplier
	checker *flakyChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg, err := registry.New("storefront", store, map[types.SlotID]string{
		types.SlotBlue:  "10.0.0.1:8080",
		types.SlotGreen: "10.0.0.2:8080",
	})
	require.NoError(t, err)

	applier := &fakeApplier{}
	checker := &flakyChecker{script: []bool{true}}
	backend := &fakeBackend{target: types.SlotBlue}

	deployer := deploy.NewDeployer(reg, applier)
	prb := prober.New("storefront", checker)
	switcher := route.NewSwitcher(reg, store, backend)
	rb := rollback.NewController(reg, switcher, store)

	return &fixture{
		orch:    New(reg, deployer, prb, switcher, rb, store),
		reg:     reg,
		backend: backend,
		store:   store,
		applier: applier,
		checker: checker,
	}
}

// waitForState polls until the orchestrator reports one of the given
// states or the timeout elapses. Safe to call off the test goroutine.
func waitForState(o *Orchestrator, timeout time.Duration, states ...types.RunState) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		s := o.State()
		for _, want := range states {
			if s == want {
				return true
			}
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func fastRequest(target types.SlotID, version string) *types.DeploymentRequest {
	return &types.DeploymentRequest{
		App:        "storefront",
		TargetSlot: target,
		Version:    version,
		Params: types.RolloutParams{
			Replicas:          1,
			ReadinessTimeout:  100 * time.Millisecond,
			ProbeTimeout:      50 * time.Millisecond,
			ProbeInterval:     time.Millisecond,
			MaxAttempts:       3,
			SuccessThreshold:  1,
			ObservationWindow: 10 * time.Millisecond,
		},
	}
}

// Full happy path: deploy v2 to standby green, probe healthy, switch,
// observe healthy, commit.
func TestRun_Commit(t *testing.T) {
	f := newFixture(t)

	record, err := f.orch.Run(context.Background(), fastRequest(types.SlotGreen, "v2.0.0"))

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, types.OutcomeCommitted, record.Outcome)
	assert.Equal(t, types.StateCommitted, record.State)
	assert.Equal(t, types.SlotBlue, record.FromSlot)
	assert.Equal(t, types.SlotGreen, record.ToSlot)

	// Registry and route agree: green is live
	assert.Equal(t, types.SlotGreen, f.reg.GetActive().ID)
	assert.Equal(t, types.SlotGreen, f.backend.Target())

	// The record is persisted
	latest, lerr := f.store.LatestRolloutRecord("storefront", types.OutcomeCommitted)
	require.NoError(t, lerr)
	assert.Equal(t, "v2.0.0", latest.Version)
}

// Post-switch regression: switch succeeds, observation reports
// unhealthy, traffic reverts to blue and green is disqualified.
func TestRun_PostSwitchRegressionRollsBack(t *testing.T) {
	f := newFixture(t)

	// Healthy through pre-switch probing, then sustained failure
	// during the observation window
	f.checker.script = []bool{true, false, false, false}

	record, err := f.orch.Run(context.Background(), fastRequest(types.SlotGreen, "v2.0.0"))

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrHealthCheckFailed)
	require.NotNil(t, record)
	assert.Equal(t, types.OutcomeRolledBack, record.Outcome)
	assert.Equal(t, types.StateRolledBack, record.State)

	assert.Equal(t, types.SlotBlue, f.reg.GetActive().ID)
	assert.Equal(t, types.SlotBlue, f.backend.Target())

	green, gerr := f.reg.GetSlot(types.SlotGreen)
	require.NoError(t, gerr)
	assert.Equal(t, types.HealthUnhealthy, green.Health)
}

// Deploying to the active slot is rejected immediately: no state
// mutation and no rollout record.
func TestRun_ActiveSlotRejected(t *testing.T) {
	f := newFixture(t)

	record, err := f.orch.Run(context.Background(), fastRequest(types.SlotBlue, "v2.0.0"))

	assert.ErrorIs(t, err, types.ErrActiveSlotProtected)
	assert.Nil(t, record)

	records, lerr := f.store.ListRolloutRecords("storefront")
	require.NoError(t, lerr)
	assert.Empty(t, records)
	assert.Equal(t, types.SlotBlue, f.reg.GetActive().ID)
}

// Pre-switch probe failure: terminal Failed, traffic never moved.
func TestRun_PreSwitchProbeFailure(t *testing.T) {
	f := newFixture(t)
	f.checker.script = []bool{false}

	record, err := f.orch.Run(context.Background(), fastRequest(types.SlotGreen, "v2.0.0"))

	assert.ErrorIs(t, err, types.ErrHealthCheckFailed)
	require.NotNil(t, record)
	assert.Equal(t, types.OutcomeFailed, record.Outcome)

	// No traffic impact, no rollback needed
	assert.Equal(t, types.SlotBlue, f.reg.GetActive().ID)
	assert.Equal(t, types.SlotBlue, f.backend.Target())
}

// Deploy failure: terminal Failed, standby marked unhealthy, active
// slot unaffected.
func TestRun_DeployFailure(t *testing.T) {
	f := newFixture(t)
	f.applier.applyErr = errors.New("image not found")

	record, err := f.orch.Run(context.Background(), fastRequest(types.SlotGreen, "v2.0.0"))

	assert.ErrorIs(t, err, types.ErrDeployFailed)
	require.NotNil(t, record)
	assert.Equal(t, types.OutcomeFailed, record.Outcome)

	green, gerr := f.reg.GetSlot(types.SlotGreen)
	require.NoError(t, gerr)
	assert.Equal(t, types.HealthUnhealthy, green.Health)
	assert.Equal(t, types.SlotBlue, f.reg.GetActive().ID)
}

// Two concurrent requests: the second is rejected with SlotBusy while
// the first proceeds unaffected.
func TestRun_ConcurrentRequestsSerialized(t *testing.T) {
	f := newFixture(t)

	// Slow the first run down enough for the second to collide
	req1 := fastRequest(types.SlotGreen, "v2.0.0")
	req1.Params.InitialDelay = 50 * time.Millisecond

	firstStarted := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		close(firstStarted)
		_, err := f.orch.Run(context.Background(), req1)
		firstDone <- err
	}()

	<-firstStarted
	// Wait until the first run has claimed the in-flight guard
	require.Eventually(t, func() bool {
		return f.orch.State() != types.StateIdle
	}, time.Second, time.Millisecond)

	_, err := f.orch.Run(context.Background(), fastRequest(types.SlotGreen, "v2.0.1"))
	assert.ErrorIs(t, err, types.ErrSlotBusy)

	require.NoError(t, <-firstDone)
	assert.Equal(t, types.SlotGreen, f.reg.GetActive().ID)
}

// Cancellation during probing abandons the attempt; the active slot
// is untouched.
func TestRun_CancelledBeforeSwitch(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := fastRequest(types.SlotGreen, "v2.0.0")
	req.Params.InitialDelay = 200 * time.Millisecond

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	record, err := f.orch.Run(ctx, req)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, record)
	assert.Equal(t, types.OutcomeFailed, record.Outcome)
	assert.Equal(t, types.SlotBlue, f.reg.GetActive().ID)
	assert.Equal(t, types.SlotBlue, f.backend.Target())
}

// Cancellation after switching starts is not honored: the run reaches
// a terminal state and the switch is protected by its own paths.
func TestRun_CancellationIgnoredDuringSwitch(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := fastRequest(types.SlotGreen, "v2.0.0")
	req.Params.ObservationWindow = 30 * time.Millisecond

	go func() {
		// Cancel once the machine is past pre-switch probing
		waitForState(f.orch, time.Second, types.StateSwitching, types.StatePostSwitchProbing)
		cancel()
	}()

	record, err := f.orch.Run(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, types.OutcomeCommitted, record.Outcome)
	assert.Equal(t, types.SlotGreen, f.reg.GetActive().ID)
}

// Rollback failure: terminal Failed, surfaced for manual intervention.
func TestRun_RollbackFailureIsFatal(t *testing.T) {
	f := newFixture(t)

	// Healthy pre-switch, regression post-switch, and the backend
	// refuses the revert
	f.checker.script = []bool{true, false, false, false}
	req := fastRequest(types.SlotGreen, "v2.0.0")
	// Slow the observation cadence so the backend fault lands before
	// the rollback fires
	req.Params.ProbeInterval = 20 * time.Millisecond
	req.Params.ObservationWindow = 200 * time.Millisecond
	go func() {
		waitForState(f.orch, time.Second, types.StatePostSwitchProbing)
		f.backend.mu.Lock()
		f.backend.err = errors.New("backend unreachable")
		f.backend.mu.Unlock()
	}()

	record, err := f.orch.Run(context.Background(), req)

	require.Error(t, err)
	require.NotNil(t, record)
	assert.Equal(t, types.OutcomeFailed, record.Outcome)
	assert.Contains(t, record.Reason, "rollback failed")
}

// Omitting the target slot defaults it to the current standby.
func TestRun_DefaultsToStandby(t *testing.T) {
	f := newFixture(t)

	req := fastRequest("", "v2.0.0")
	record, err := f.orch.Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, types.SlotGreen, record.ToSlot)
}
