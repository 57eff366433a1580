package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	StorageLevelDB = "leveldb"
	StorageMemory  = "memory"
)

type Config struct {
	DataDir        string    `toml:"DataDir"`
	Storage        string    `toml:"Storage"`
	ArchivePath    string    `toml:"ArchivePath"`
	RPCAddress     string    `toml:"RPCAddress"`
	MetricsAddress string    `toml:"MetricsAddress"`
	Env            string    `toml:"Env"`
	Log            Log       `toml:"Log"`
	Telemetry      Telemetry `toml:"Telemetry"`
	RPC            RPC       `toml:"RPC"`
	Bridge         Bridge    `toml:"Bridge"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh deployment. The
// limits follow the mainnet deployment of the wrapped token.
func Default() *Config {
	return &Config{
		DataDir:        "./wacg-data",
		Storage:        StorageLevelDB,
		RPCAddress:     ":8545",
		MetricsAddress: ":9100",
		Env:            "local",
		Log:            Log{Level: "info"},
		Telemetry:      Telemetry{Endpoint: "localhost:4318", Insecure: true},
		RPC: RPC{
			RateLimitPerSecond:     5,
			Burst:                  10,
			SignatureWindowSeconds: 300,
			ReadTimeoutSeconds:     10,
			WriteTimeoutSeconds:    10,
		},
		Bridge: Bridge{
			ChainID:      56,
			Network:      "bsc",
			OutboundMode: "operator",
			MinAmount:    "0.00000001 ACG",
			MaxIn:        "1000000 ACG",
			MaxOut:       "1000000 ACG",
			DailyCapIn:   "10000000 ACG",
			DailyCapOut:  "10000000 ACG",
		},
	}
}

// Normalise fills derived defaults and trims whitespace.
func (c *Config) Normalise() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.Storage == "" {
		c.Storage = StorageLevelDB
	}
	if strings.TrimSpace(c.ArchivePath) == "" && c.DataDir != "" {
		c.ArchivePath = filepath.Join(c.DataDir, "events.db")
	}
	if c.RPC.Burst <= 0 {
		c.RPC.Burst = 1
	}
}

// StatePath is the LevelDB directory holding controller state.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.Normalise()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
