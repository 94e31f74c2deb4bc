package timeout

import (
	"math"
	"time"
)

// Controller implements a truncated exponential backoff for leader-window
// skip timeouts. While the protocol finalizes within the happy-path
// allowance the timeout stays at its minimum; every additional window
// failure multiplies the timeout by the adjustment factor, capped at the
// configured maximum. Progress divides it back down.
//
// The timeout value is determined by the number r of consecutive window
// failures beyond the happy-path allowance:
//
//	timeout = min(MaxWindowTimeout, MinWindowTimeout * factor^max(0, r - HappyPathMaxWindowFailures))
//
// Controller is not safe for concurrent use. It is owned by the voter's
// worker goroutine; only the channel returned by Channel may be consumed
// elsewhere.
type Controller struct {
	cfg            Config
	timer          *time.Timer
	timerInfo      *TimerInfo
	timeoutChannel chan time.Time

	// r tracks the number of recent window failures
	r uint64
}

// TimerInfo identifies the leader window a running timeout belongs to.
type TimerInfo struct {
	WindowStart uint64
	StartTime   time.Time
	Duration    time.Duration
}

// DefaultController returns a Controller with the default policy.
func DefaultController() *Controller {
	return NewController(DefaultConfig())
}

// NewController creates a Controller for the given policy. The timeout
// channel stays silent until StartTimeout is called.
func NewController(cfg Config) *Controller {
	tc := Controller{
		cfg:            cfg,
		timeoutChannel: make(chan time.Time, 1),
	}
	return &tc
}

// TimerInfo returns the timer of the current leader window, or nil if no
// timeout is running.
func (t *Controller) TimerInfo() *TimerInfo { return t.timerInfo }

// Channel returns the channel the timeout for the current window fires
// on. The channel is replaced on every StartTimeout, so callers must
// re-read it each loop iteration.
func (t *Controller) Channel() <-chan time.Time { return t.timeoutChannel }

// StartTimeout starts the skip timeout for the given leader window. Any
// previously running timeout is stopped and its pending fire discarded.
func (t *Controller) StartTimeout(windowStart uint64) *TimerInfo {
	if t.timer != nil {
		t.timer.Stop()
	}

	duration := t.windowDuration()

	// a fresh channel per timeout ensures a stale fire from the previous
	// window can never be observed for the current one
	startTime := time.Now().UTC()
	timeoutChannel := make(chan time.Time, 1)
	t.timer = time.AfterFunc(duration, func() {
		timeoutChannel <- time.Now().UTC()
	})
	t.timeoutChannel = timeoutChannel
	t.timerInfo = &TimerInfo{WindowStart: windowStart, StartTime: startTime, Duration: duration}

	return t.timerInfo
}

// Stop cancels the running timeout, if any. The current TimerInfo is
// retained for inspection.
func (t *Controller) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

// windowDuration returns the timeout for the current failure count.
func (t *Controller) windowDuration() time.Duration {
	timeout := t.cfg.MinWindowTimeout
	if t.r > t.cfg.HappyPathMaxWindowFailures {
		timeout *= math.Pow(t.cfg.TimeoutAdjustmentFactor, float64(t.r-t.cfg.HappyPathMaxWindowFailures))
	}
	timeout = math.Min(t.cfg.MaxWindowTimeout, timeout)
	return time.Duration(timeout) * time.Millisecond
}

// OnTimeout records that the current leader window failed, growing
// subsequent timeouts.
func (t *Controller) OnTimeout() {
	t.r++
}

// OnProgress records observed progress (a finalization), shrinking
// subsequent timeouts back towards the minimum.
func (t *Controller) OnProgress() {
	if t.r > 0 {
		t.r--
	}
}
