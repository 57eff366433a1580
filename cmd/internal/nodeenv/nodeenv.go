// Package nodeenv opens the storage shared by the bridge commands.
package nodeenv

import (
	"errors"
	"fmt"
	"os"

	"wacgbridge/config"
	"wacgbridge/core"
	"wacgbridge/native/bridge"
	"wacgbridge/storage"
)

// OpenDatabase opens the controller state store selected by cfg.
func OpenDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemDB(), nil
	case config.StorageLevelDB, "":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare data directory: %w", err)
		}
		db, err := storage.NewLevelDB(cfg.StatePath())
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// OpenNode opens the controller held in db. When the store is empty and
// initialise is set, the Bridge section of cfg is written first.
func OpenNode(cfg *config.Config, db storage.Database, initialise bool, opts ...core.Option) (*core.Node, error) {
	node, err := core.NewNode(db, opts...)
	if err == nil || !initialise || !errors.Is(err, bridge.ErrNotInitialised) {
		return node, err
	}
	params, err := cfg.BridgeParams()
	if err != nil {
		return nil, fmt.Errorf("bridge parameters: %w", err)
	}
	return core.InitNode(db, params, opts...)
}
