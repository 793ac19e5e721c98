package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/govsync/internal/engine"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/projector"
	"github.com/roach88/govsync/internal/store"
	"github.com/roach88/govsync/internal/testutil"
)

// seedStore writes n empty blocks to a new database and returns its path
// and the block headers.
func seedStore(t *testing.T, n int) (string, []ledger.BlockHeader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "govsync.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	ing, err := engine.New(ctx, st, projector.Env{})
	require.NoError(t, err)

	chain := testutil.NewChain(100)
	var headers []ledger.BlockHeader
	for i := 0; i < n; i++ {
		blk := chain.Next()
		require.NoError(t, ing.HandleRollForward(ctx, blk))
		headers = append(headers, blk.BlockHeader)
	}
	return path, headers
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
