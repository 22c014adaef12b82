// Copyright (C) 2025 Unison Systems (dev@unisonhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package validate runs security and configuration checks against a live
stack.

Each Check asserts one independent property (an endpoint requires auth,
the gateway carries a rate-limiting plugin, the JWT secret is not the
shipped default). The Harness executes every check regardless of earlier
failures and aggregates a deterministic exit status: nonzero only when an
Error-severity check failed. Warning-severity findings are surfaced in
the report but never fail the run.
*/
package validate

import (
	"time"
)

// Severity classifies how a check failure affects the run exit status.
type Severity string

const (
	// SeverityError failures make the harness exit status nonzero.
	SeverityError Severity = "error"

	// SeverityWarning failures are reported but never affect exit status.
	SeverityWarning Severity = "warning"
)

// Status is the outcome of one check execution.
type Status string

const (
	// StatusPass means the asserted property holds.
	StatusPass Status = "pass"

	// StatusFail means the property does not hold, or the check could
	// not complete (transport error, panic).
	StatusFail Status = "fail"

	// StatusWarn means a degraded but non-failing observation.
	StatusWarn Status = "warn"
)

// Result is the immutable record of one check execution.
// One Result is produced per check per harness run and never mutated
// after creation.
type Result struct {
	// CheckID identifies the check, stable across runs.
	CheckID string `json:"check_id"`

	// Status is pass, fail, or warn.
	Status Status `json:"status"`

	// Severity is copied from the check so a serialized report is
	// self-contained for exit-status computation.
	Severity Severity `json:"severity"`

	// Detail is a human-readable explanation, including the cause when
	// the check could not complete.
	Detail string `json:"detail"`

	// Timestamp records when the result was finalized.
	Timestamp time.Time `json:"timestamp"`
}

// Report aggregates the results of one harness run.
//
// Results appear in check declaration order, so two runs over the same
// check list diff cleanly.
type Report struct {
	// Results holds one entry per executed check, in declaration order.
	Results []Result `json:"results"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total wall time of the run.
	Duration time.Duration `json:"duration"`
}

// ExitStatus computes the process exit code for the report.
//
// Nonzero iff at least one Error-severity check failed. Warn results and
// Warning-severity failures never flip the status.
func (r *Report) ExitStatus() int {
	for _, res := range r.Results {
		if res.Severity == SeverityError && res.Status == StatusFail {
			return 1
		}
	}
	return 0
}

// Counts returns the number of pass, fail, and warn results.
func (r *Report) Counts() (passed, failed, warned int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPass:
			passed++
		case StatusFail:
			failed++
		case StatusWarn:
			warned++
		}
	}
	return passed, failed, warned
}
