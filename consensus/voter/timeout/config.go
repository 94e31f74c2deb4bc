package timeout

import (
	"fmt"
	"time"
)

// Config defines the skip-timeout policy for leader windows. The exact
// backoff curve is a policy knob, not a correctness requirement; only
// monotonicity and the cap matter for liveness.
type Config struct {
	// MinWindowTimeout is the timeout of a leader window while the
	// protocol makes progress, in milliseconds.
	MinWindowTimeout float64
	// MaxWindowTimeout caps the timeout under sustained asynchrony, in
	// milliseconds.
	MaxWindowTimeout float64
	// TimeoutAdjustmentFactor is the multiplicative factor applied for
	// every window failure beyond the happy-path allowance, and the
	// divisor applied on progress.
	TimeoutAdjustmentFactor float64
	// HappyPathMaxWindowFailures is the number of window failures
	// tolerated before timeouts start growing.
	HappyPathMaxWindowFailures uint64
}

// DefaultConfig returns the default skip-timeout policy.
func DefaultConfig() Config {
	cfg, err := NewConfig(3*time.Second, 60*time.Second, 1.5, 2)
	if err != nil {
		panic(fmt.Sprintf("invalid default timeout config: %s", err))
	}
	return cfg
}

// NewConfig validates the inputs and assembles a Config.
// Returns model-level configuration errors for invalid parameters.
func NewConfig(minTimeout time.Duration, maxTimeout time.Duration, adjustmentFactor float64, happyPathMaxWindowFailures uint64) (Config, error) {
	if minTimeout <= 0 {
		return Config{}, fmt.Errorf("minTimeout must be positive, got %s", minTimeout)
	}
	if maxTimeout < minTimeout {
		return Config{}, fmt.Errorf("maxTimeout (%s) must not be below minTimeout (%s)", maxTimeout, minTimeout)
	}
	if adjustmentFactor <= 1 {
		return Config{}, fmt.Errorf("adjustmentFactor must be strictly larger than 1, got %f", adjustmentFactor)
	}
	return Config{
		MinWindowTimeout:           float64(minTimeout.Milliseconds()),
		MaxWindowTimeout:           float64(maxTimeout.Milliseconds()),
		TimeoutAdjustmentFactor:    adjustmentFactor,
		HappyPathMaxWindowFailures: happyPathMaxWindowFailures,
	}, nil
}
