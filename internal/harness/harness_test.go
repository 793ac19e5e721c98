package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/govsync/internal/testutil"
)

func TestRun_EmptyBlocks(t *testing.T) {
	scenario := &Scenario{
		Name: "empty",
		Events: []Step{
			{Forward: &ForwardStep{Slot: 20, Height: 1}},
			{Forward: &ForwardStep{Slot: 40, Height: 2}},
		},
		Assertions: []Assertion{
			{Type: AssertRowCount, Table: "blocks", Count: 2},
			{Type: AssertTip, Slot: 40},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "forward", result.Trace[0].Type)
	assert.Equal(t, uint64(20), result.Trace[0].Slot)
	assert.Equal(t, int64(2), result.State["blocks"])
}

func TestRun_GovernanceThread(t *testing.T) {
	d := testutil.NewDeployment()
	scenario, _, _ := govScenario(d)
	scenario.Assertions = []Assertion{
		{Type: AssertRowCount, Table: "gov_states", Count: 2},
		{Type: AssertRowCount, Table: "tally_states", Count: 1},
		{Type: AssertRowCount, Table: "tally_creations", Count: 1},
		{Type: AssertThreads, Gov: 1},
		{Type: AssertCacheConsistent},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RollbackRestoresThread(t *testing.T) {
	d := testutil.NewDeployment()
	scenario, _, _ := govScenario(d)
	scenario.Events = append(scenario.Events, Step{Rollback: &RollbackStep{Slot: 20}})
	scenario.Assertions = []Assertion{
		{Type: AssertRowCount, Table: "gov_states", Count: 1},
		{Type: AssertRowCount, Table: "tally_states", Count: 0},
		{Type: AssertTip, Slot: 20},
		{Type: AssertThreads, Gov: 1},
		{Type: AssertCacheConsistent},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, "rollback", result.Trace[2].Type)
}

func TestRun_RollbackToOrigin(t *testing.T) {
	d := testutil.NewDeployment()
	scenario, _, _ := govScenario(d)
	scenario.Events = append(scenario.Events, Step{Rollback: &RollbackStep{Origin: true}})
	scenario.Assertions = []Assertion{
		{Type: AssertTip, Empty: true},
		{Type: AssertRowCount, Table: "tx_outputs", Count: 0},
		{Type: AssertThreads},
		{Type: AssertCacheConsistent},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectedInvariantViolation(t *testing.T) {
	d := testutil.NewDeployment()
	dup := testutil.NewTx().
		Output(d.Addr(d.GovAddress), d.GovValue(), d.GovDatum(0)).
		Output(d.Addr(d.GovAddress), d.GovValue(), d.GovDatum(0)).
		Build()

	scenario := &Scenario{
		Name:     "duplicate_thread",
		Network:  "preprod",
		Policies: deploymentPolicies(d),
		Events: []Step{
			{Forward: &ForwardStep{Slot: 20, Height: 1}},
			func() Step {
				s := forward(40, 2, dup)
				s.ExpectError = "INVARIANT_VIOLATION"
				return s
			}(),
		},
		Assertions: []Assertion{
			{Type: AssertTip, Slot: 20},
			{Type: AssertRowCount, Table: "gov_states", Count: 0},
			{Type: AssertCacheConsistent},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "INVARIANT_VIOLATION", result.Trace[1].Error)
}

func TestRun_UnexpectedErrorHalts(t *testing.T) {
	scenario := &Scenario{
		Name: "undecodable",
		Events: []Step{
			{Forward: &ForwardStep{Slot: 20, Height: 1, Txs: []TxStep{{ID: hashOf(0x01), CBOR: "ff"}}}},
			{Forward: &ForwardStep{Slot: 40, Height: 2}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "events[0]")
	assert.Len(t, result.Trace, 1, "run stops at the failing event")
	assert.Equal(t, "DECODE_FAILURE", result.Trace[0].Error)
	assert.Equal(t, int64(0), result.State["blocks"])
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := &Scenario{
		Name: "no_error",
		Events: []Step{
			{Forward: &ForwardStep{Slot: 20, Height: 1}, ExpectError: "INVARIANT_VIOLATION"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error INVARIANT_VIOLATION, got success")
}

func TestRun_InvalidPolicies(t *testing.T) {
	scenario := &Scenario{
		Name:     "bad_policy",
		Policies: deploymentPolicies(testutil.NewDeployment()),
		Events:   []Step{{Forward: &ForwardStep{Slot: 20, Height: 1}}},
	}
	scenario.Policies.Licenses = "abcd"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario configuration")
}

func TestRun_Deterministic(t *testing.T) {
	d := testutil.NewDeployment()
	scenario, _, _ := govScenario(d)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Dump, second.Dump)
	assert.Equal(t, first.State, second.State)
	assert.Contains(t, first.Dump, "## gov_states")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "ERROR", ErrorCode(assert.AnError))
}
