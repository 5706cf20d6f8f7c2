// Package assertions post-processes case results against declarative
// expectations. Assertions mutate the case in place and are applied in
// declaration order, so a later assertion observes the effects of an
// earlier one.
package assertions

import (
	"fmt"
	"strings"

	"github.com/lakebench/lakebench/internal/results"
)

// Kind selects the assertion behavior.
type Kind string

const (
	KindExactResultHash       Kind = "exact_result_hash"
	KindSchemaHash            Kind = "schema_hash"
	KindExpectedErrorContains Kind = "expected_error_contains"
	KindVersionMonotonicity   Kind = "version_monotonicity"
)

// Assertion is one expectation attached to a case. Value holds the expected
// hash or the error substring; it is unused for version monotonicity.
type Assertion struct {
	Kind  Kind
	Value string
}

// Apply runs each assertion against the case in order.
func Apply(c *results.CaseResult, assertions []Assertion) {
	for _, a := range assertions {
		switch a.Kind {
		case KindExactResultHash:
			assertHash(c, a.Value, "result hash")
		case KindSchemaHash:
			assertHash(c, a.Value, "schema hash")
		case KindExpectedErrorContains:
			assertExpectedErrorContains(c, a.Value)
		case KindVersionMonotonicity:
			assertVersionMonotonicity(c)
		}
	}
}

// assertHash compares the first reported result hash to the expected value.
// Already-failed cases are left alone.
func assertHash(c *results.CaseResult, expected, label string) {
	if !c.Success {
		return
	}
	found := firstResultHash(c)
	if found == nil || *found != expected {
		failCase(c, fmt.Sprintf("%s mismatch: expected '%s', found '%s'",
			label, expected, hashOrNone(found)))
	}
}

func assertExpectedErrorContains(c *results.CaseResult, needle string) {
	if c.Failure == nil {
		failCase(c, fmt.Sprintf(
			"expected error assertion failed: expected case to fail with message containing '%s', but case succeeded",
			needle))
		return
	}
	if strings.Contains(c.Failure.Message, needle) {
		// The failure payload is kept for inspection; only the verdict
		// changes.
		c.Success = true
		c.Classification = results.ClassificationExpectedFailure
	}
}

func assertVersionMonotonicity(c *results.CaseResult) {
	if !c.Success {
		return
	}
	var previous *uint64
	for _, sample := range c.Samples {
		if sample.Metrics == nil || sample.Metrics.TableVersion == nil {
			continue
		}
		version := *sample.Metrics.TableVersion
		if previous != nil && version < *previous {
			failCase(c, fmt.Sprintf(
				"version monotonicity assertion failed: table version decreased from %d to %d",
				*previous, version))
			return
		}
		previous = &version
	}
}

func firstResultHash(c *results.CaseResult) *string {
	for _, sample := range c.Samples {
		if sample.Metrics != nil && sample.Metrics.ResultHash != nil {
			return sample.Metrics.ResultHash
		}
	}
	return nil
}

func hashOrNone(h *string) string {
	if h == nil {
		return "none"
	}
	return *h
}

func failCase(c *results.CaseResult, message string) {
	c.Success = false
	c.Failure = &results.CaseFailure{Message: message}
}
