package common

import (
	"errors"
	"fmt"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module's state-changing entry points are halted.
type PauseView interface {
	Paused(module string) (bool, error)
}

// Guard returns ErrModulePaused when the module is paused. A nil view or an
// empty module name never blocks. A view that cannot be read blocks with the
// read error.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	paused, err := p.Paused(module)
	if err != nil {
		return fmt.Errorf("read pause flag for %s: %w", module, err)
	}
	if paused {
		return ErrModulePaused
	}
	return nil
}
