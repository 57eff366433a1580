package bridge

import (
	"errors"

	nativecommon "wacgbridge/native/common"
)

// pauseSwitch exposes the stored pause flag to the shared module guard.
type pauseSwitch struct {
	st *state
}

// Paused implements nativecommon.PauseView.
func (p pauseSwitch) Paused(module string) (bool, error) {
	if module != ModuleName {
		return false, nil
	}
	return p.st.paused()
}

// guard fails with OperationsPaused while the controller is paused.
func (p pauseSwitch) guard() error {
	err := nativecommon.Guard(p, ModuleName)
	if errors.Is(err, nativecommon.ErrModulePaused) {
		return newError(KindOperationsPaused, "controller is paused")
	}
	return err
}
