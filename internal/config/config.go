package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/projector"
)

// Network names a Cardano network.
type Network string

const (
	Mainnet Network = "mainnet"
	Preprod Network = "preprod"
	Preview Network = "preview"
)

// Defaults applied when the file leaves a field unset.
const (
	DefaultOgmiosURL         = "ws://localhost:1337"
	DefaultDatabase          = "govsync.db"
	DefaultPipelineDepth     = 100
	DefaultReconnectInterval = 5 * time.Second
)

// DefaultResumeDepths are the depths below the stored tip offered as
// intersection candidates on (re)connect.
var DefaultResumeDepths = []int{0, 1, 5, 50, 1000}

// fallbackPoints is where sync starts on an empty store: a block shortly
// before the protocol was first deployed on each network.
var fallbackPoints = map[Network]Point{
	Mainnet: {Slot: 72316796, ID: "c58a24ba8203e7629422a24d9dc68ce2ed495420bf40d9dab124373655161a20"},
	Preprod: {Slot: 52616248, ID: "94b3e8daeec3babc929a1180854687b29ba797cd0173509ff1e90d41a6e7fb59"},
	Preview: {Slot: 52616248, ID: "94b3e8daeec3babc929a1180854687b29ba797cd0173509ff1e90d41a6e7fb59"},
}

// Point is a chain point as written in the config file.
type Point struct {
	Slot uint64 `yaml:"slot"`
	ID   string `yaml:"id"`
}

// Policies holds the hex policy ids of the protocol's minting scripts.
// An empty id disables the projector keyed on it.
type Policies struct {
	GovStateNFT       string `yaml:"gov_state_nft"`
	VotePermissionNFT string `yaml:"vote_permission_nft"`
	Licenses          string `yaml:"licenses"`
	TreasurerNFT      string `yaml:"treasurer_nft"`
}

// Config is the indexer configuration.
type Config struct {
	Network           Network       `yaml:"network"`
	OgmiosURL         string        `yaml:"ogmios_url"`
	Database          string        `yaml:"database"`
	StartPoint        *Point        `yaml:"start_point"`
	Policies          Policies      `yaml:"policies"`
	PipelineDepth     int           `yaml:"pipeline_depth"`
	ResumeDepths      []int         `yaml:"resume_depths"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	MetricsAddr       string        `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates the configuration at path.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var c Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = Mainnet
	}
	if c.OgmiosURL == "" {
		c.OgmiosURL = DefaultOgmiosURL
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.PipelineDepth == 0 {
		c.PipelineDepth = DefaultPipelineDepth
	}
	if c.ResumeDepths == nil {
		c.ResumeDepths = append([]int(nil), DefaultResumeDepths...)
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
}

// Validate checks field values after defaults are applied.
func (c *Config) Validate() error {
	if _, ok := fallbackPoints[c.Network]; !ok {
		return fmt.Errorf("network: unknown network %q (want mainnet, preprod or preview)", c.Network)
	}
	if !strings.HasPrefix(c.OgmiosURL, "ws://") && !strings.HasPrefix(c.OgmiosURL, "wss://") {
		return fmt.Errorf("ogmios_url: %q is not a websocket URL", c.OgmiosURL)
	}
	if c.PipelineDepth < 1 {
		return fmt.Errorf("pipeline_depth: must be at least 1, got %d", c.PipelineDepth)
	}
	for _, d := range c.ResumeDepths {
		if d < 0 {
			return fmt.Errorf("resume_depths: negative depth %d", d)
		}
	}
	if c.ReconnectInterval < 0 {
		return fmt.Errorf("reconnect_interval: must not be negative")
	}
	if c.StartPoint != nil {
		if _, err := ledger.ParseHash32(c.StartPoint.ID); err != nil {
			return fmt.Errorf("start_point.id: %w", err)
		}
	}
	if _, err := c.Policies.decode(); err != nil {
		return err
	}
	return nil
}

// NetworkID is the address network tag: 1 on mainnet, 0 elsewhere.
func (c *Config) NetworkID() byte {
	if c.Network == Mainnet {
		return 1
	}
	return 0
}

// FallbackPoint is the intersection offered when the store holds no
// blocks: start_point when set, else the network default.
func (c *Config) FallbackPoint() (ledger.Point, error) {
	p := fallbackPoints[c.Network]
	if c.StartPoint != nil {
		p = *c.StartPoint
	}
	hash, err := ledger.ParseHash32(p.ID)
	if err != nil {
		return ledger.Point{}, fmt.Errorf("start point: %w", err)
	}
	return ledger.Point{Slot: p.Slot, Hash: hash}, nil
}

// Env builds the projector environment.
func (c *Config) Env(logger *slog.Logger) (projector.Env, error) {
	policies, err := c.Policies.decode()
	if err != nil {
		return projector.Env{}, err
	}
	return projector.Env{Policies: policies, NetworkID: c.NetworkID(), Logger: logger}, nil
}

func (p Policies) decode() (projector.Policies, error) {
	var out projector.Policies
	fields := []struct {
		name string
		hex  string
		dst  *[]byte
	}{
		{"gov_state_nft", p.GovStateNFT, &out.GovStateNFT},
		{"vote_permission_nft", p.VotePermissionNFT, &out.VotePermissionNFT},
		{"licenses", p.Licenses, &out.Licenses},
		{"treasurer_nft", p.TreasurerNFT, &out.TreasurerNFT},
	}
	for _, f := range fields {
		if f.hex == "" {
			continue
		}
		b, err := hex.DecodeString(f.hex)
		if err != nil {
			return out, fmt.Errorf("policies.%s: %w", f.name, err)
		}
		if len(b) != 28 {
			return out, fmt.Errorf("policies.%s: policy id must be 28 bytes, got %d", f.name, len(b))
		}
		*f.dst = b
	}
	return out, nil
}
