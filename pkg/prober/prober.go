package prober

import (
	"context"
	"time"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/metrics"
	"github.com/hueshift/hueshift/pkg/types"
)

// Config controls one probing pass against a candidate slot
type Config struct {
	// Timeout bounds each individual attempt
	Timeout time.Duration

	// Interval is the pause between attempts
	Interval time.Duration

	// MaxAttempts bounds the total number of attempts
	MaxAttempts int

	// SuccessThreshold is the number of consecutive passing attempts
	// required for a Healthy verdict (default: 1)
	SuccessThreshold int

	// InitialDelay is the grace period before the first attempt
	InitialDelay time.Duration

	// Window bounds post-switch observation (Observe only)
	Window time.Duration

	// FailureThreshold is the number of consecutive failing attempts
	// that ends observation with an Unhealthy verdict (Observe only,
	// default: 2)
	FailureThreshold int
}

// ConfigFromParams derives a probe config from rollout parameters
func ConfigFromParams(p types.RolloutParams) Config {
	return Config{
		Timeout:          p.ProbeTimeout,
		Interval:         p.ProbeInterval,
		MaxAttempts:      p.MaxAttempts,
		SuccessThreshold: p.SuccessThreshold,
		InitialDelay:     p.InitialDelay,
		Window:           p.ObservationWindow,
		FailureThreshold: 2,
	}
}

// Verdict is the aggregate outcome of a probing pass
type Verdict struct {
	Healthy  bool
	Attempts int
	Last     Result
}

// Reason returns the last attempt's message, the diagnostic carried
// into error reports and rollout records
func (v Verdict) Reason() string {
	return v.Last.Message
}

// Prober polls a slot endpoint until it reaches a verdict
type Prober struct {
	app     string
	checker Checker
}

// New creates a prober for the given application using the checker
// as its endpoint transport
func New(app string, checker Checker) *Prober {
	return &Prober{
		app:     app,
		checker: checker,
	}
}

// Probe runs a bounded probing pass against the slot. The verdict is
// Healthy once SuccessThreshold consecutive attempts pass; otherwise
// Unhealthy with the last failure reason after MaxAttempts. A context
// cancellation abandons the pass and returns ctx.Err().
func (p *Prober) Probe(ctx context.Context, slot types.Slot, cfg Config) (Verdict, error) {
	logger := log.WithComponent("prober")

	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 1
	}

	if cfg.InitialDelay > 0 {
		if err := sleep(ctx, cfg.InitialDelay); err != nil {
			return Verdict{}, err
		}
	}

	var verdict Verdict
	consecutive := 0

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result := p.check(ctx, slot, cfg.Timeout)
		verdict.Attempts = attempt
		verdict.Last = result

		if result.Healthy {
			consecutive++
			if consecutive >= cfg.SuccessThreshold {
				verdict.Healthy = true
				logger.Debug().
					Str("app", p.app).
					Str("slot", string(slot.ID)).
					Int("attempts", attempt).
					Msg("probe verdict healthy")
				return verdict, nil
			}
		} else {
			consecutive = 0
			logger.Debug().
				Str("app", p.app).
				Str("slot", string(slot.ID)).
				Int("attempt", attempt).
				Str("reason", result.Message).
				Msg("probe attempt failed")
		}

		if attempt < cfg.MaxAttempts {
			if err := sleep(ctx, cfg.Interval); err != nil {
				return Verdict{}, err
			}
		}
	}

	logger.Warn().
		Str("app", p.app).
		Str("slot", string(slot.ID)).
		Int("attempts", verdict.Attempts).
		Str("reason", verdict.Reason()).
		Msg("probe verdict unhealthy")

	return verdict, nil
}

// Observe watches the slot for the configured window after a traffic
// switch. The verdict is Healthy if the window elapses without
// FailureThreshold consecutive failures. The orchestrator passes a
// non-cancellable context here: a half-observed switch must still be
// resolved by its own failure path.
func (p *Prober) Observe(ctx context.Context, slot types.Slot, cfg Config) (Verdict, error) {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 2
	}

	deadline := time.Now().Add(cfg.Window)
	var verdict Verdict
	failures := 0

	for {
		result := p.check(ctx, slot, cfg.Timeout)
		verdict.Attempts++
		verdict.Last = result

		if result.Healthy {
			failures = 0
		} else {
			failures++
			if failures >= cfg.FailureThreshold {
				verdict.Healthy = false
				return verdict, nil
			}
		}

		if time.Now().After(deadline) {
			// The window must close on a passing streak
			verdict.Healthy = failures == 0
			return verdict, nil
		}

		if err := sleep(ctx, cfg.Interval); err != nil {
			return Verdict{}, err
		}
	}
}

// check runs one attempt with its own timeout and records metrics
func (p *Prober) check(ctx context.Context, slot types.Slot, timeout time.Duration) Result {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := p.checker.Check(attemptCtx, slot.Endpoint)

	outcome := "pass"
	if !result.Healthy {
		outcome = "fail"
	}
	metrics.ProbeAttemptsTotal.WithLabelValues(p.app, string(slot.ID), outcome).Inc()
	metrics.ProbeDuration.WithLabelValues(p.app, string(slot.ID)).Observe(result.Duration.Seconds())

	return result
}

// sleep waits for d or until ctx is cancelled
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
