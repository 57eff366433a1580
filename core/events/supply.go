package events

import (
	"math/big"
)

const (
	// SupplyReasonWrap identifies supply increases backed by an inbound proof.
	SupplyReasonWrap = "wrap"
	// SupplyReasonUnwrap identifies supply decreases released to the source ledger.
	SupplyReasonUnwrap = "unwrap"
	// SupplyReasonEmergency identifies operator issuance outside the limit policy.
	SupplyReasonEmergency = "emergency"
	// SupplyReasonAdminBurn identifies operator burns that release nothing.
	SupplyReasonAdminBurn = "admin_burn"
)

// TokenSupply is the supply snapshot carried by every event that changes the
// wrapped supply: the signed delta and the cumulative counters after it.
// Supply-changing events embed it, so a call still emits exactly one event.
type TokenSupply struct {
	Total        *big.Int
	Delta        *big.Int
	WrappedIn    *big.Int
	UnwrappedOut *big.Int
	Emergency    *big.Int
	AdminBurned  *big.Int
	Reason       string
}

// SupplyChange is implemented by events that moved the wrapped supply.
type SupplyChange interface {
	Event
	SupplySnapshot() TokenSupply
}

// SupplySnapshot returns the snapshot itself; embedding events inherit it.
func (s TokenSupply) SupplySnapshot() TokenSupply { return s }

// annotate adds the snapshot to attrs under supply-prefixed keys. Nil
// counters are omitted; the total always renders.
func (s TokenSupply) annotate(attrs map[string]string) {
	attrs["supplyTotal"] = formatAmount(s.Total)
	optional := []struct {
		key   string
		value *big.Int
	}{
		{"supplyDelta", s.Delta},
		{"wrappedIn", s.WrappedIn},
		{"unwrappedOut", s.UnwrappedOut},
		{"emergencyMinted", s.Emergency},
		{"adminBurned", s.AdminBurned},
	}
	for _, field := range optional {
		if field.value != nil {
			attrs[field.key] = field.value.String()
		}
	}
	if s.Reason != "" {
		attrs["supplyReason"] = s.Reason
	}
}
