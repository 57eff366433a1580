package config

import (
	"fmt"
	"strings"

	"wacgbridge/native/bridge"
)

// Validate checks the service settings. The Bridge section is only checked
// when converted with BridgeParams, since a running daemon reads its
// controller configuration from state.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DataDir required")
	}
	switch c.Storage {
	case StorageLevelDB, StorageMemory:
	default:
		return fmt.Errorf("Storage: unknown backend %q", c.Storage)
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress required")
	}
	if c.RPC.RateLimitPerSecond < 0 {
		return fmt.Errorf("RPC.RateLimitPerSecond must not be negative")
	}
	if c.RPC.SignatureWindowSeconds <= 0 {
		return fmt.Errorf("RPC.SignatureWindowSeconds must be positive")
	}
	if _, err := bridge.ParseOutboundMode(c.Bridge.OutboundMode); err != nil {
		return fmt.Errorf("Bridge.OutboundMode: %w", err)
	}
	return nil
}
