package deploy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hueshift/hueshift/pkg/prober"
	"github.com/hueshift/hueshift/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	mu      sync.Mutex
	failFor int
	calls   int
}

func (c *countingChecker) Check(ctx context.Context, endpoint string) prober.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return prober.Result{Healthy: c.calls > c.failFor, CheckedAt: time.Now()}
}

func (c *countingChecker) Type() prober.CheckType { return prober.CheckTypeHTTP }

func TestExternalApplier_WaitReadyPollsUntilHealthy(t *testing.T) {
	applier := NewExternalApplier(&countingChecker{failFor: 2})
	applier.interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := applier.WaitReady(ctx, types.Slot{App: "storefront", ID: types.SlotGreen, Endpoint: "10.0.0.2:8080"}, types.RolloutParams{})
	assert.NoError(t, err)
}

func TestExternalApplier_WaitReadyHonorsDeadline(t *testing.T) {
	applier := NewExternalApplier(&countingChecker{failFor: 1 << 30})
	applier.interval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := applier.WaitReady(ctx, types.Slot{App: "storefront", ID: types.SlotGreen, Endpoint: "10.0.0.2:8080"}, types.RolloutParams{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExternalApplier_ApplyIsNoop(t *testing.T) {
	applier := NewExternalApplier(&countingChecker{})
	err := applier.Apply(context.Background(), types.Slot{App: "storefront", ID: types.SlotGreen}, "v2.0.0", types.RolloutParams{})
	assert.NoError(t, err)
}
