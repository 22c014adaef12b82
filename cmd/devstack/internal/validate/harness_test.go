package validate

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// stubCheck is a configurable Check for harness tests.
type stubCheck struct {
	id       string
	severity Severity
	run      func(ctx context.Context, rctx *Context) Result
}

func (s *stubCheck) ID() string          { return s.id }
func (s *stubCheck) Description() string { return "stub " + s.id }
func (s *stubCheck) Severity() Severity  { return s.severity }

func (s *stubCheck) Run(ctx context.Context, rctx *Context) Result {
	if s.run != nil {
		return s.run(ctx, rctx)
	}
	return Result{CheckID: s.id, Status: StatusPass, Detail: "ok"}
}

func passing(id string, sev Severity) *stubCheck {
	return &stubCheck{id: id, severity: sev}
}

func failing(id string, sev Severity) *stubCheck {
	return &stubCheck{id: id, severity: sev, run: func(ctx context.Context, rctx *Context) Result {
		return Result{CheckID: id, Status: StatusFail, Detail: "property does not hold"}
	}}
}

func TestHarnessRunsAllChecksInDeclarationOrder(t *testing.T) {
	var executed []string
	mk := func(id string) *stubCheck {
		return &stubCheck{id: id, severity: SeverityError, run: func(ctx context.Context, rctx *Context) Result {
			executed = append(executed, id)
			return Result{Status: StatusFail, Detail: "boom"}
		}}
	}

	checks := []Check{mk("one"), mk("two"), mk("three")}
	report := NewHarness().Run(context.Background(), checks, NewContext())

	// No short-circuit: everything ran despite failures.
	if len(executed) != 3 {
		t.Fatalf("executed %d checks, want 3", len(executed))
	}
	for i, want := range []string{"one", "two", "three"} {
		if report.Results[i].CheckID != want {
			t.Errorf("result[%d] = %s, want %s", i, report.Results[i].CheckID, want)
		}
	}
}

func TestHarnessWarningFailKeepsExitZero(t *testing.T) {
	checks := []Check{
		passing("auth-health", SeverityError),
		failing("rate-limit", SeverityWarning),
		passing("auth-required", SeverityError),
	}

	report := NewHarness().Run(context.Background(), checks, NewContext())
	if got := report.ExitStatus(); got != 0 {
		t.Errorf("ExitStatus = %d, want 0 for Warning-severity Fail", got)
	}
}

func TestHarnessErrorFailFlipsExitStatus(t *testing.T) {
	checks := []Check{
		passing("auth-health", SeverityError),
		failing("rate-limit", SeverityWarning),
		failing("auth-required", SeverityError),
	}

	report := NewHarness().Run(context.Background(), checks, NewContext())
	if got := report.ExitStatus(); got == 0 {
		t.Error("ExitStatus = 0, want nonzero for Error-severity Fail")
	}
}

func TestHarnessWarnStatusNeverFlipsExitStatus(t *testing.T) {
	warn := &stubCheck{id: "security-headers", severity: SeverityError,
		run: func(ctx context.Context, rctx *Context) Result {
			return Result{Status: StatusWarn, Detail: "header missing"}
		}}

	report := NewHarness().Run(context.Background(), []Check{warn}, NewContext())
	if got := report.ExitStatus(); got != 0 {
		t.Errorf("ExitStatus = %d, want 0 for Warn result", got)
	}
}

func TestHarnessRecordsPanicAsFail(t *testing.T) {
	boom := &stubCheck{id: "panicky", severity: SeverityError,
		run: func(ctx context.Context, rctx *Context) Result {
			panic("nil map write")
		}}

	report := NewHarness().Run(context.Background(), []Check{boom, passing("after", SeverityError)}, NewContext())

	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}
	first := report.Results[0]
	if first.Status != StatusFail {
		t.Errorf("status = %s, want fail", first.Status)
	}
	if !strings.Contains(first.Detail, "nil map write") {
		t.Errorf("detail %q should carry the panic cause", first.Detail)
	}
	if report.Results[1].Status != StatusPass {
		t.Error("panic aborted the run; later checks must still execute")
	}
	if report.ExitStatus() == 0 {
		t.Error("panicked Error-severity check should make exit nonzero")
	}
}

func TestHarnessNormalizesResultIdentity(t *testing.T) {
	sloppy := &stubCheck{id: "sloppy", severity: SeverityWarning,
		run: func(ctx context.Context, rctx *Context) Result {
			// Wrong ID, wrong severity, no timestamp.
			return Result{CheckID: "other", Severity: SeverityError, Status: StatusFail}
		}}

	report := NewHarness().Run(context.Background(), []Check{sloppy}, NewContext())
	res := report.Results[0]
	if res.CheckID != "sloppy" {
		t.Errorf("CheckID = %q, want %q", res.CheckID, "sloppy")
	}
	if res.Severity != SeverityWarning {
		t.Errorf("Severity = %q, want warning", res.Severity)
	}
	if res.Timestamp.IsZero() {
		t.Error("timestamp not filled in")
	}
	if report.ExitStatus() != 0 {
		t.Error("declared Warning severity must win over the result's claim")
	}
}

func TestHarnessParallelPreservesOrder(t *testing.T) {
	checks := make([]Check, 8)
	for i := range checks {
		id := string(rune('a' + i))
		checks[i] = &stubCheck{id: id, severity: SeverityError,
			run: func(ctx context.Context, rctx *Context) Result {
				time.Sleep(time.Millisecond)
				return Result{Status: StatusPass, Detail: "ok"}
			}}
	}

	report := NewHarness(WithParallelism(4)).Run(context.Background(), checks, NewContext())
	if len(report.Results) != len(checks) {
		t.Fatalf("got %d results, want %d", len(report.Results), len(checks))
	}
	for i, check := range checks {
		if report.Results[i].CheckID != check.ID() {
			t.Errorf("result[%d] = %s, want %s", i, report.Results[i].CheckID, check.ID())
		}
	}
}

func TestReportJSONRoundTrip(t *testing.T) {
	checks := []Check{
		passing("auth-health", SeverityError),
		failing("rate-limit", SeverityWarning),
		failing("auth-required", SeverityError),
	}
	report := NewHarness().Run(context.Background(), checks, NewContext())

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed Report
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(parsed.Results) != len(report.Results) {
		t.Fatalf("round trip lost results: %d vs %d", len(parsed.Results), len(report.Results))
	}
	for i := range report.Results {
		orig, got := report.Results[i], parsed.Results[i]
		if got.CheckID != orig.CheckID || got.Status != orig.Status || got.Detail != orig.Detail || got.Severity != orig.Severity {
			t.Errorf("result[%d] changed in round trip: %+v vs %+v", i, got, orig)
		}
	}
	if parsed.ExitStatus() != report.ExitStatus() {
		t.Errorf("ExitStatus changed in round trip: %d vs %d", parsed.ExitStatus(), report.ExitStatus())
	}
}

func TestReportCounts(t *testing.T) {
	report := &Report{Results: []Result{
		{Status: StatusPass}, {Status: StatusPass},
		{Status: StatusFail},
		{Status: StatusWarn},
	}}
	passed, failed, warned := report.Counts()
	if passed != 2 || failed != 1 || warned != 1 {
		t.Errorf("Counts = %d/%d/%d, want 2/1/1", passed, failed, warned)
	}
}
