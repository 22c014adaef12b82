package health

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PollResult is the terminal state of a poll session.
type PollResult int

const (
	// Ready means the endpoint returned a ready outcome within the deadline.
	Ready PollResult = iota

	// TimedOut means the deadline expired (or the context was cancelled)
	// before a ready outcome was observed.
	TimedOut
)

// String returns a human-readable result name.
func (r PollResult) String() string {
	if r == Ready {
		return "ready"
	}
	return "timed_out"
}

// MarshalJSON emits the result name rather than the numeric value.
func (r PollResult) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// PollOutcome is the immutable record of one completed poll session.
type PollOutcome struct {
	// Service is the name of the polled service.
	Service string `json:"service"`

	// Attempts is the number of probe attempts made, always at least 1.
	Attempts int `json:"attempts"`

	// Elapsed is the wall time the session took.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Result is Ready or TimedOut.
	Result PollResult `json:"result"`
}

// Poller repeatedly probes an endpoint until it is ready or a deadline
// expires.
//
// # Description
//
// The schedule is a fixed interval, deliberately not exponential: against
// a slow-starting service a predictable once-per-interval cadence beats
// aggressive early retries that back off just as the service comes up.
//
// Guarantees:
//
//   - at least one probe attempt is made, even with an expired deadline
//   - cancellation takes effect mid-sleep, not at the next tick
//   - TimedOut is never reported before the deadline has actually passed
//     (or the caller cancelled), and the session never blocks past the
//     deadline plus one interval
//
// # Thread Safety
//
// Wait owns all per-session state except the injected timer, so a Poller
// without a custom timer is safe for concurrent use.
type Poller struct {
	probe    Prober
	interval time.Duration
	deadline time.Duration
	timer    backoff.Timer
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithTimer injects the timer driving the inter-attempt sleeps.
// Tests use this to substitute a fake clock for wall-time waits.
func WithTimer(t backoff.Timer) PollerOption {
	return func(p *Poller) { p.timer = t }
}

// NewPoller creates a Poller.
//
// # Inputs
//
//   - probe: The single-attempt readiness check
//   - interval: Fixed delay between attempts (default 1s if zero)
//   - deadline: Total session budget (default 20s if zero)
//   - opts: Optional configuration
func NewPoller(probe Prober, interval, deadline time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	p := &Poller{probe: probe, interval: interval, deadline: deadline}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls the endpoint until ready or the deadline expires.
//
// # Inputs
//
//   - ctx: External cancellation; an interrupt yields TimedOut promptly
//   - service: Service name recorded in the outcome
//   - endpoint: Readiness URL passed to the probe
//
// # Outputs
//
//   - PollOutcome: Always returned, never an error; TimedOut covers both
//     deadline expiry and external cancellation
func (p *Poller) Wait(ctx context.Context, service, endpoint string) PollOutcome {
	start := time.Now()
	attempts := 0
	result := TimedOut

	waitCtx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	timer := p.timer
	if timer == nil {
		timer = &wallTimer{}
	}
	defer timer.Stop()

	policy := backoff.NewConstantBackOff(p.interval)

loop:
	for {
		attempts++
		if p.probe.Probe(waitCtx, endpoint).Ready() {
			result = Ready
			break
		}
		if waitCtx.Err() != nil {
			break
		}

		timer.Start(policy.NextBackOff())
		select {
		case <-waitCtx.Done():
			// Deadline or external cancel fires mid-sleep.
			break loop
		case <-timer.C():
		}
	}

	return PollOutcome{
		Service:  service,
		Attempts: attempts,
		Elapsed:  time.Since(start),
		Result:   result,
	}
}

// wallTimer is the production backoff.Timer backed by time.Timer.
type wallTimer struct {
	t *time.Timer
}

func (w *wallTimer) Start(d time.Duration) {
	if w.t == nil {
		w.t = time.NewTimer(d)
		return
	}
	w.t.Reset(d)
}

func (w *wallTimer) Stop() {
	if w.t != nil {
		w.t.Stop()
	}
}

func (w *wallTimer) C() <-chan time.Time {
	if w.t == nil {
		return nil
	}
	return w.t.C
}

var _ backoff.Timer = (*wallTimer)(nil)
