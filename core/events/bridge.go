package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"wacgbridge/core/types"
)

const (
	// TypeBridgeMinted is emitted when an inbound deposit proof is settled.
	TypeBridgeMinted = "bridge.minted"
	// TypeBridgeBurned is emitted when an outbound withdrawal is accepted.
	TypeBridgeBurned = "bridge.burned"
	// TypeBridgeEmergencyMinted is emitted for operator issuance outside the limit policy.
	TypeBridgeEmergencyMinted = "bridge.emergency_minted"
	// TypeBridgeAdminBurned is emitted when the operator burns a holder's balance.
	TypeBridgeAdminBurned = "bridge.admin_burned"
	// TypeBridgeOperatorChanged is emitted when the custodian role moves.
	TypeBridgeOperatorChanged = "bridge.operator_changed"
	// TypeBridgeAdministratorChanged is emitted when the administrator role moves.
	TypeBridgeAdministratorChanged = "bridge.administrator_changed"
	// TypeBridgeEmergencyRecoveryChanged is emitted when the recovery address moves.
	TypeBridgeEmergencyRecoveryChanged = "bridge.emergency_recovery_changed"
	// TypeBridgeBoundsUpdated is emitted when per-operation bounds change.
	TypeBridgeBoundsUpdated = "bridge.bounds_updated"
	// TypeBridgeDailyCapsUpdated is emitted when the daily caps change.
	TypeBridgeDailyCapsUpdated = "bridge.daily_caps_updated"
	// TypeBridgePaused is emitted when the administrator pauses the controller.
	TypeBridgePaused = "bridge.paused"
	// TypeBridgeUnpaused is emitted when the administrator resumes the controller.
	TypeBridgeUnpaused = "bridge.unpaused"
	// TypeBridgeForeignDepositRecorded is emitted when foreign holdings are booked.
	TypeBridgeForeignDepositRecorded = "bridge.foreign_deposit_recorded"
	// TypeBridgeForeignAssetRecovered is emitted after a foreign asset sweep.
	TypeBridgeForeignAssetRecovered = "bridge.foreign_asset_recovered"
	// TypeTokenTransfer is emitted for wACG balance movements between holders.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an allowance is set.
	TypeTokenApproval = "token.approval"
)

// Minted records an inbound wrap settled against an external deposit proof.
type Minted struct {
	Recipient   common.Address
	Amount      *big.Int
	Proof       string
	Fingerprint common.Hash
	TokenSupply
}

func (Minted) EventType() string { return TypeBridgeMinted }

func (e Minted) Event() *types.Event {
	attrs := map[string]string{
		"recipient":   formatAddress(e.Recipient),
		"amount":      formatAmount(e.Amount),
		"proof":       strings.TrimSpace(e.Proof),
		"fingerprint": formatHash(e.Fingerprint),
	}
	e.annotate(attrs)
	return &types.Event{Type: TypeBridgeMinted, Attributes: attrs}
}

// Burned records an outbound unwrap towards a destination on the source ledger.
type Burned struct {
	Holder      common.Address
	Amount      *big.Int
	Destination string
	Fingerprint common.Hash
	TokenSupply
}

func (Burned) EventType() string { return TypeBridgeBurned }

func (e Burned) Event() *types.Event {
	attrs := map[string]string{
		"holder":      formatAddress(e.Holder),
		"amount":      formatAmount(e.Amount),
		"destination": strings.TrimSpace(e.Destination),
		"fingerprint": formatHash(e.Fingerprint),
	}
	e.annotate(attrs)
	return &types.Event{Type: TypeBridgeBurned, Attributes: attrs}
}

// EmergencyMinted records operator issuance that bypassed the limit policy.
type EmergencyMinted struct {
	Operator  common.Address
	Recipient common.Address
	Amount    *big.Int
	TokenSupply
}

func (EmergencyMinted) EventType() string { return TypeBridgeEmergencyMinted }

func (e EmergencyMinted) Event() *types.Event {
	attrs := map[string]string{
		"operator":  formatAddress(e.Operator),
		"recipient": formatAddress(e.Recipient),
		"amount":    formatAmount(e.Amount),
	}
	e.annotate(attrs)
	return &types.Event{Type: TypeBridgeEmergencyMinted, Attributes: attrs}
}

// AdminBurned records the operator destroying part of a holder's balance
// without releasing anything on the source ledger.
type AdminBurned struct {
	Operator common.Address
	Holder   common.Address
	Amount   *big.Int
	TokenSupply
}

func (AdminBurned) EventType() string { return TypeBridgeAdminBurned }

func (e AdminBurned) Event() *types.Event {
	attrs := map[string]string{
		"operator": formatAddress(e.Operator),
		"holder":   formatAddress(e.Holder),
		"amount":   formatAmount(e.Amount),
	}
	e.annotate(attrs)
	return &types.Event{Type: TypeBridgeAdminBurned, Attributes: attrs}
}

// RoleChanged records a privileged role moving from Old to New. Kind selects
// which of the three role events it renders as.
type RoleChanged struct {
	Kind string
	Old  common.Address
	New  common.Address
}

func (e RoleChanged) EventType() string { return e.Kind }

func (e RoleChanged) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"old": formatAddress(e.Old),
			"new": formatAddress(e.New),
		},
	}
}

// BoundsUpdated records new per-operation bounds.
type BoundsUpdated struct {
	Min    *big.Int
	MaxIn  *big.Int
	MaxOut *big.Int
}

func (BoundsUpdated) EventType() string { return TypeBridgeBoundsUpdated }

func (e BoundsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeBoundsUpdated,
		Attributes: map[string]string{
			"min":    formatAmount(e.Min),
			"maxIn":  formatAmount(e.MaxIn),
			"maxOut": formatAmount(e.MaxOut),
		},
	}
}

// DailyCapsUpdated records new per-account daily caps.
type DailyCapsUpdated struct {
	CapIn  *big.Int
	CapOut *big.Int
}

func (DailyCapsUpdated) EventType() string { return TypeBridgeDailyCapsUpdated }

func (e DailyCapsUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeDailyCapsUpdated,
		Attributes: map[string]string{
			"capIn":  formatAmount(e.CapIn),
			"capOut": formatAmount(e.CapOut),
		},
	}
}

// PauseChanged records the administrator flipping the pause switch.
type PauseChanged struct {
	Paused bool
	By     common.Address
}

func (e PauseChanged) EventType() string {
	if e.Paused {
		return TypeBridgePaused
	}
	return TypeBridgeUnpaused
}

func (e PauseChanged) Event() *types.Event {
	return &types.Event{
		Type:       e.EventType(),
		Attributes: map[string]string{"by": formatAddress(e.By)},
	}
}

// ForeignDepositRecorded records the relay booking a foreign asset transfer
// received by the controller. Held is the controller's holding afterwards.
type ForeignDepositRecorded struct {
	Asset  common.Address
	Amount *big.Int
	Ref    string
	Held   *big.Int
}

func (ForeignDepositRecorded) EventType() string { return TypeBridgeForeignDepositRecorded }

func (e ForeignDepositRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeForeignDepositRecorded,
		Attributes: map[string]string{
			"asset":  formatAddress(e.Asset),
			"amount": formatAmount(e.Amount),
			"ref":    strings.TrimSpace(e.Ref),
			"held":   formatAmount(e.Held),
		},
	}
}

// ForeignAssetRecovered records a sweep of a non-native asset held by the controller.
type ForeignAssetRecovered struct {
	Asset  common.Address
	To     common.Address
	Amount *big.Int
}

func (ForeignAssetRecovered) EventType() string { return TypeBridgeForeignAssetRecovered }

func (e ForeignAssetRecovered) Event() *types.Event {
	return &types.Event{
		Type: TypeBridgeForeignAssetRecovered,
		Attributes: map[string]string{
			"asset":  formatAddress(e.Asset),
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

// Transfer records a wACG movement between two holders.
type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTokenTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"from":   formatAddress(e.From),
			"to":     formatAddress(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

// Approval records an allowance granted by Owner to Spender.
type Approval struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (Approval) EventType() string { return TypeTokenApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"owner":   formatAddress(e.Owner),
			"spender": formatAddress(e.Spender),
			"amount":  formatAmount(e.Amount),
		},
	}
}
