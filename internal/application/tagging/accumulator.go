package tagging

import (
	"fmt"

	"github.com/relicta-tech/bitsmith/internal/domain/tag"
)

// Accumulator collects the warnings and per-component failures of one tag
// run. It is threaded through each stage and copied into the results; it is
// not safe for concurrent use.
type Accumulator struct {
	warnings []string
	failures []tag.Failure
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Warn records a user-facing warning.
func (a *Accumulator) Warn(format string, args ...any) {
	a.warnings = append(a.warnings, fmt.Sprintf(format, args...))
}

// AddWarnings records warnings produced elsewhere, such as by NormalizeFlags.
func (a *Accumulator) AddWarnings(warnings ...string) {
	a.warnings = append(a.warnings, warnings...)
}

// Fail records a component that was dropped from the run.
func (a *Accumulator) Fail(f tag.Failure) {
	a.failures = append(a.failures, f)
}

// Warnings returns the recorded warnings in order.
func (a *Accumulator) Warnings() []string {
	return append([]string(nil), a.warnings...)
}

// Failures returns the recorded failures in order.
func (a *Accumulator) Failures() []tag.Failure {
	return append([]tag.Failure(nil), a.failures...)
}

// apply copies the accumulated diagnostics into results.
func (a *Accumulator) apply(r *tag.Results) {
	r.Warnings = a.Warnings()
	r.Failures = a.Failures()
}
