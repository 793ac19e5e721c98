package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policyHex = "a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "govsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeConfig(t, `
network: preprod
ogmios_url: wss://ogmios.example.org
database: /var/lib/govsync/preprod.db
policies:
  gov_state_nft: `+policyHex+`
  treasurer_nft: `+policyHex+`
pipeline_depth: 20
resume_depths: [0, 10]
reconnect_interval: 30s
metrics_addr: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Preprod, cfg.Network)
	assert.Equal(t, "wss://ogmios.example.org", cfg.OgmiosURL)
	assert.Equal(t, "/var/lib/govsync/preprod.db", cfg.Database)
	assert.Equal(t, 20, cfg.PipelineDepth)
	assert.Equal(t, []int{0, 10}, cfg.ResumeDepths)
	assert.Equal(t, 30*time.Second, cfg.ReconnectInterval)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Equal(t, byte(0), cfg.NetworkID())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_EmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, Mainnet, cfg.Network)
	assert.Equal(t, DefaultOgmiosURL, cfg.OgmiosURL)
	assert.Equal(t, DefaultPipelineDepth, cfg.PipelineDepth)
	assert.Equal(t, DefaultResumeDepths, cfg.ResumeDepths)
	assert.Equal(t, DefaultReconnectInterval, cfg.ReconnectInterval)
	assert.Equal(t, byte(1), cfg.NetworkID())
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	_, err := Parse([]byte("network: mainnet\nogmios: ws://x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown network", "network: sanchonet", "unknown network"},
		{"http url", "ogmios_url: http://localhost:1337", "not a websocket URL"},
		{"negative depth", "pipeline_depth: -1", "pipeline_depth"},
		{"negative resume depth", "resume_depths: [0, -5]", "negative depth"},
		{"bad start point", "start_point: {slot: 1, id: zz}", "start_point.id"},
		{"bad policy hex", "policies: {licenses: xyz}", "policies.licenses"},
		{"short policy", "policies: {gov_state_nft: abcd}", "28 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFallbackPoint(t *testing.T) {
	t.Run("mainnet default", func(t *testing.T) {
		p, err := Default().FallbackPoint()
		require.NoError(t, err)
		assert.Equal(t, uint64(72316796), p.Slot)
		assert.Equal(t, "c58a24ba8203e7629422a24d9dc68ce2ed495420bf40d9dab124373655161a20", p.Hash.String())
	})

	t.Run("preprod default", func(t *testing.T) {
		cfg, err := Parse([]byte("network: preprod"))
		require.NoError(t, err)
		p, err := cfg.FallbackPoint()
		require.NoError(t, err)
		assert.Equal(t, uint64(52616248), p.Slot)
		assert.True(t, strings.HasPrefix(p.Hash.String(), "94b3e8da"))
	})

	t.Run("explicit start point", func(t *testing.T) {
		id := strings.Repeat("11", 32)
		cfg, err := Parse([]byte("start_point: {slot: 42, id: " + id + "}"))
		require.NoError(t, err)
		p, err := cfg.FallbackPoint()
		require.NoError(t, err)
		assert.Equal(t, uint64(42), p.Slot)
		assert.Equal(t, id, p.Hash.String())
	})
}

func TestEnv(t *testing.T) {
	cfg, err := Parse([]byte("network: preview\npolicies:\n  vote_permission_nft: " + policyHex))
	require.NoError(t, err)

	env, err := cfg.Env(nil)
	require.NoError(t, err)
	assert.Len(t, env.Policies.VotePermissionNFT, 28)
	assert.Nil(t, env.Policies.GovStateNFT)
	assert.Nil(t, env.Policies.Licenses)
	assert.Nil(t, env.Policies.TreasurerNFT)
	assert.Equal(t, byte(0), env.NetworkID)
}
