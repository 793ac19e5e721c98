package harness

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/ogmios"
	"github.com/roach88/govsync/internal/testutil"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	tx := testutil.NewTx().Output(testutil.Hash28(0x01), testutil.Coins(5), nil).Build()
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
network: preprod
events:
  - forward:
      slot: 20
      height: 1
      txs:
        - cbor: `+hex.EncodeToString(tx.CBOR)+`
  - rollback:
      origin: true
assertions:
  - type: tip
    empty: true
  - type: row_count
    table: blocks
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Events, 2)
	require.NotNil(t, scenario.Events[0].Forward)
	assert.Equal(t, uint64(20), scenario.Events[0].Forward.Slot)
	require.NotNil(t, scenario.Events[1].Rollback)
	assert.True(t, scenario.Events[1].Rollback.Origin)
	assert.Len(t, scenario.Assertions, 2)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
events:
  - forward: {slot: 1, height: 1}
assertion:
  - type: tip
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "events:\n  - forward: {slot: 1, height: 1}\n",
			wantErr: "name is required",
		},
		{
			name:    "no events",
			content: "name: x\n",
			wantErr: "at least one event",
		},
		{
			name:    "forward and rollback",
			content: "name: x\nevents:\n  - forward: {slot: 1, height: 1}\n    rollback: {slot: 0}\n",
			wantErr: "exactly one of forward or rollback",
		},
		{
			name:    "bad block hash",
			content: "name: x\nevents:\n  - forward: {slot: 1, height: 1, hash: abc}\n",
			wantErr: "block hash",
		},
		{
			name:    "bad tx hex",
			content: "name: x\nevents:\n  - forward: {slot: 1, height: 1, txs: [{cbor: zz}]}\n",
			wantErr: "txs[0]",
		},
		{
			name:    "origin with slot",
			content: "name: x\nevents:\n  - rollback: {slot: 5, origin: true}\n",
			wantErr: "origin takes no slot",
		},
		{
			name:    "unknown table",
			content: "name: x\nevents:\n  - forward: {slot: 1, height: 1}\nassertions:\n  - {type: row_count, table: users}\n",
			wantErr: "unknown table",
		},
		{
			name:    "unknown assertion",
			content: "name: x\nevents:\n  - forward: {slot: 1, height: 1}\nassertions:\n  - {type: trace_order}\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "tip slot and empty",
			content: "name: x\nevents:\n  - forward: {slot: 1, height: 1}\nassertions:\n  - {type: tip, slot: 1, empty: true}\n",
			wantErr: "not both",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTxStep_DerivesID(t *testing.T) {
	tx := testutil.NewTx().Salt(7).Build()

	raw, err := txStep(tx).raw()
	require.NoError(t, err)
	assert.Equal(t, tx.ID, raw.ID)
	assert.Equal(t, tx.CBOR, raw.CBOR)
}

func TestTxStep_ExplicitID(t *testing.T) {
	tx := testutil.NewTx().Build()
	step := txStep(tx)
	step.ID = hashOf(0xab)

	raw, err := step.raw()
	require.NoError(t, err)
	assert.Equal(t, hashOf(0xab), raw.ID.String())
}

func TestSource_ReplaysEventsThenEOF(t *testing.T) {
	scenario := &Scenario{
		Name: "source",
		Events: []Step{
			{Forward: &ForwardStep{Slot: 20, Height: 1, Hash: hashOf(0x11)}},
			{Rollback: &RollbackStep{Slot: 10, Hash: hashOf(0x22)}},
			{Rollback: &RollbackStep{Origin: true}},
		},
	}
	src, err := NewSource(scenario)
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())
	ctx := context.Background()

	ev, err := src.Next(ctx)
	require.NoError(t, err)
	fwd, ok := ev.(ogmios.RollForward)
	require.True(t, ok)
	assert.Equal(t, hashOf(0x11), fwd.Block.Hash.String())
	assert.Equal(t, uint64(1), fwd.Block.Height)

	ev, err = src.Next(ctx)
	require.NoError(t, err)
	back := ev.(ogmios.RollBackward)
	require.NotNil(t, back.Point)
	assert.Equal(t, uint64(10), back.Point.Slot)

	ev, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, ev.(ogmios.RollBackward).Point)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSource_DerivedHashesDiffer(t *testing.T) {
	a, err := (&ForwardStep{Slot: 20, Height: 1}).event()
	require.NoError(t, err)
	b, err := (&ForwardStep{Slot: 40, Height: 2}).event()
	require.NoError(t, err)

	ha := a.(ogmios.RollForward).Block.Hash
	hb := b.(ogmios.RollForward).Block.Hash
	assert.NotEqual(t, ha, hb)
	assert.NotEqual(t, ledger.Hash32{}, ha)
}

func TestSource_CancelledContext(t *testing.T) {
	src, err := NewSource(&Scenario{Name: "x", Events: []Step{{Forward: &ForwardStep{Slot: 1}}}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
