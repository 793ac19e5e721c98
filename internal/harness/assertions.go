package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/govsync/internal/store"
	"github.com/roach88/govsync/internal/tracker"
)

// AssertionContext provides what state assertions read.
type AssertionContext struct {
	Ctx             context.Context
	Store           *store.Store
	Cache           *tracker.Cache
	TreasurerPolicy []byte
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		line := fmt.Sprintf("  [%d] %s slot=%d", i+1, event.Type, event.Slot)
		if event.Txs > 0 {
			line += fmt.Sprintf(" txs=%d", event.Txs)
		}
		if event.Error != "" {
			line += " error=" + event.Error
		}
		fmt.Fprintln(&buf, line)
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, empty when all hold.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertRowCount:
			err = assertRowCount(result, a)
		case AssertTip:
			err = assertTip(result, a, actx)
		case AssertThreads:
			err = assertThreads(result, a, actx)
		case AssertCacheConsistent:
			err = assertCacheConsistent(result, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertRowCount checks the final row count of a table.
func assertRowCount(result *Result, a Assertion) error {
	n, ok := result.State[a.Table]
	if !ok {
		return fmt.Errorf("unknown table %q", a.Table)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%s has %d rows", a.Table, a.Count),
			Actual:   fmt.Sprintf("%d rows", n),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTip checks the highest stored block.
func assertTip(result *Result, a Assertion, actx *AssertionContext) error {
	tip, err := actx.Store.Tip(actx.Ctx)
	if err != nil {
		return err
	}

	expected := fmt.Sprintf("tip at slot %d", a.Slot)
	if a.Empty {
		expected = "no stored blocks"
	}
	actual := "no stored blocks"
	if tip != nil {
		actual = fmt.Sprintf("tip at slot %d", tip.Slot)
	}
	if expected != actual {
		return &AssertionError{Type: AssertTip, Expected: expected, Actual: actual, Trace: result.Trace}
	}
	return nil
}

// assertThreads checks the number of tracked threads.
func assertThreads(result *Result, a Assertion, actx *AssertionContext) error {
	gov, treasury := actx.Cache.Len()
	if gov != a.Gov || treasury != a.Treasury {
		return &AssertionError{
			Type:     AssertThreads,
			Expected: fmt.Sprintf("%d governance, %d treasury threads", a.Gov, a.Treasury),
			Actual:   fmt.Sprintf("%d governance, %d treasury threads", gov, treasury),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertCacheConsistent checks the live cache against one loaded fresh
// from the store.
func assertCacheConsistent(result *Result, actx *AssertionContext) error {
	fresh, err := tracker.Load(actx.Ctx, actx.Store, actx.TreasurerPolicy)
	if err != nil {
		return err
	}
	if !fresh.Equal(actx.Cache) {
		gov, treasury := actx.Cache.Len()
		fgov, ftreasury := fresh.Len()
		return &AssertionError{
			Type:     AssertCacheConsistent,
			Expected: fmt.Sprintf("cache rebuilt from store (%d governance, %d treasury threads)", fgov, ftreasury),
			Actual:   fmt.Sprintf("live cache diverged (%d governance, %d treasury threads)", gov, treasury),
			Trace:    result.Trace,
		}
	}
	return nil
}
