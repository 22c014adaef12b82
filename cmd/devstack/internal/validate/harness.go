package validate

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unisonhq/unison-devstack/cmd/devstack/internal/diagnostics"
	"github.com/unisonhq/unison-devstack/pkg/logging"
)

// Check is one independent, named security or configuration assertion.
//
// # Description
//
// Checks are polymorphic over a single capability: Run produces exactly
// one Result. A check must not depend on execution order or on shared
// mutable state beyond the read-only Context (base URLs, a previously
// acquired auth token). ID must be unique and stable across runs.
type Check interface {
	// ID is the stable, unique identifier reported in results.
	ID() string

	// Description is a one-line human-readable summary of the property.
	Description() string

	// Severity determines whether a failure flips the run exit status.
	Severity() Severity

	// Run executes the assertion. Transport failures belong in the
	// returned Result, not in a panic; the harness still guards against
	// the latter.
	Run(ctx context.Context, rctx *Context) Result
}

// Harness executes an ordered collection of checks.
type Harness struct {
	logger      *logging.Logger
	tracer      diagnostics.Tracer
	parallelism int
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithHarnessLogger overrides the default logger.
func WithHarnessLogger(l *logging.Logger) HarnessOption {
	return func(h *Harness) { h.logger = l }
}

// WithTracer attaches a span tracer; each check runs inside its own span.
func WithTracer(t diagnostics.Tracer) HarnessOption {
	return func(h *Harness) { h.tracer = t }
}

// WithParallelism enables bounded concurrent execution. Values below 2
// keep the default strictly sequential order. Checks are independent by
// contract, and result ordering is preserved either way.
func WithParallelism(n int) HarnessOption {
	return func(h *Harness) { h.parallelism = n }
}

// NewHarness creates a Harness.
func NewHarness(opts ...HarnessOption) *Harness {
	h := &Harness{
		logger: logging.Default(),
		tracer: diagnostics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes every check and aggregates a report.
//
// # Description
//
// No short-circuiting: every check runs regardless of earlier failures,
// because a full picture of stack health is worth more than fail-fast. A
// check that panics or cannot complete is recorded as a Fail with the
// cause in the detail, never aborting the run. Results are reported in
// declaration order.
//
// # Inputs
//
//   - ctx: Cancellation propagates into in-flight checks
//   - checks: Checks in declaration order
//   - rctx: Shared read-only context
//
// # Outputs
//
//   - *Report: Always non-nil, one Result per check
func (h *Harness) Run(ctx context.Context, checks []Check, rctx *Context) *Report {
	report := &Report{
		Results:   make([]Result, len(checks)),
		StartedAt: time.Now(),
	}

	if h.parallelism > 1 {
		g, groupCtx := errgroup.WithContext(ctx)
		g.SetLimit(h.parallelism)
		for i, check := range checks {
			i, check := i, check
			g.Go(func() error {
				report.Results[i] = h.runOne(groupCtx, check, rctx)
				return nil
			})
		}
		// Workers never return errors; failures live in the results.
		_ = g.Wait()
	} else {
		for i, check := range checks {
			report.Results[i] = h.runOne(ctx, check, rctx)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	return report
}

// runOne executes a single check with panic recovery and span tracing.
func (h *Harness) runOne(ctx context.Context, check Check, rctx *Context) (result Result) {
	spanCtx, end := h.tracer.StartSpan(ctx, "check."+check.ID(), map[string]string{
		"check.severity": string(check.Severity()),
	})

	defer func() {
		if r := recover(); r != nil {
			result = Result{
				CheckID:   check.ID(),
				Status:    StatusFail,
				Severity:  check.Severity(),
				Detail:    fmt.Sprintf("check panicked: %v", r),
				Timestamp: time.Now(),
			}
		}
		var spanErr error
		if result.Status == StatusFail {
			spanErr = fmt.Errorf("%s: %s", result.CheckID, result.Detail)
		}
		end(spanErr)
		h.logger.Info("check completed",
			"check", result.CheckID,
			"status", string(result.Status),
			"severity", string(result.Severity))
	}()

	result = check.Run(spanCtx, rctx)

	// Normalize so a careless check cannot skew aggregation.
	result.CheckID = check.ID()
	result.Severity = check.Severity()
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	return result
}
