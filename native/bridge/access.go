package bridge

import "github.com/ethereum/go-ethereum/common"

// accessRegistry answers role checks against the configuration record loaded
// for the current call.
type accessRegistry struct {
	roles Roles
}

func (a accessRegistry) isAdministrator(caller common.Address) bool {
	return caller != (common.Address{}) && caller == a.roles.Administrator
}

func (a accessRegistry) isOperator(caller common.Address) bool {
	return caller != (common.Address{}) && caller == a.roles.Operator
}

func (a accessRegistry) isEmergencyRecovery(caller common.Address) bool {
	return caller != (common.Address{}) && caller == a.roles.EmergencyRecovery
}

func (a accessRegistry) requireAdministrator(caller common.Address) error {
	if !a.isAdministrator(caller) {
		return newError(KindUnauthorized, "caller is not the administrator").withAddress(caller)
	}
	return nil
}

func (a accessRegistry) requireOperator(caller common.Address) error {
	if !a.isOperator(caller) {
		return newError(KindUnauthorized, "caller is not the operator").withAddress(caller)
	}
	return nil
}

// requireOutbound applies the deployment's outbound mode to a burn of holder's
// balance submitted by caller.
func (a accessRegistry) requireOutbound(mode OutboundMode, caller, holder common.Address) error {
	switch mode {
	case OutboundModeSelf:
		if caller == holder && caller != (common.Address{}) {
			return nil
		}
		return newError(KindUnauthorized, "caller is not the holder").withAddress(caller)
	case OutboundModeEither:
		if a.isOperator(caller) || (caller == holder && caller != (common.Address{})) {
			return nil
		}
		return newError(KindUnauthorized, "caller is neither the operator nor the holder").withAddress(caller)
	default:
		return a.requireOperator(caller)
	}
}

// replacement validates a role change from current to next.
func (a accessRegistry) replacement(current, next common.Address, role string) error {
	if next == (common.Address{}) {
		return newError(KindInvalidAddress, "%s must not be the zero address", role).withAddress(next)
	}
	if next == current {
		return newError(KindInvalidAddress, "%s already holds the role", role).withAddress(next)
	}
	return nil
}
