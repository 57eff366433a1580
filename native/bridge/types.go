package bridge

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// ModuleName identifies the controller to the shared pause guard.
	ModuleName = "bridge"

	// TokenName, TokenSymbol, Decimals and Version describe the wrapped asset.
	TokenName   = "Wrapped ACG"
	TokenSymbol = "wACG"
	Decimals    = 8
	Version     = "1.0.0"
)

// Direction distinguishes the two supply-changing operation families.
type Direction uint8

const (
	// DirectionIn is a wrap: ACG locked on the source ledger, wACG credited here.
	DirectionIn Direction = iota + 1
	// DirectionOut is an unwrap: wACG debited here, ACG released on the source ledger.
	DirectionOut
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d names a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// ParseDirection accepts "in"/"wrap" and "out"/"unwrap".
func ParseDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "in", "wrap", "mint":
		return DirectionIn, nil
	case "out", "unwrap", "burn":
		return DirectionOut, nil
	default:
		return 0, fmt.Errorf("bridge: unknown direction %q", value)
	}
}

// OutboundMode selects who may submit an outbound operation for a holder.
type OutboundMode string

const (
	// OutboundModeOperator requires the operator to submit every unwrap.
	OutboundModeOperator OutboundMode = "operator"
	// OutboundModeSelf requires the holder to submit their own unwrap.
	OutboundModeSelf OutboundMode = "self"
	// OutboundModeEither accepts the operator or the holder.
	OutboundModeEither OutboundMode = "either"
)

// ParseOutboundMode normalises a configured mode; empty selects the operator mode.
func ParseOutboundMode(value string) (OutboundMode, error) {
	switch mode := OutboundMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return OutboundModeOperator, nil
	case OutboundModeOperator, OutboundModeSelf, OutboundModeEither:
		return mode, nil
	default:
		return "", fmt.Errorf("bridge: unknown outbound mode %q", value)
	}
}

// Limits holds the per-operation bounds and per-account daily caps.
type Limits struct {
	Min    *big.Int
	MaxIn  *big.Int
	MaxOut *big.Int
	CapIn  *big.Int
	CapOut *big.Int
}

// Clone returns a deep copy of the limits.
func (l Limits) Clone() Limits {
	return Limits{
		Min:    cloneAmount(l.Min),
		MaxIn:  cloneAmount(l.MaxIn),
		MaxOut: cloneAmount(l.MaxOut),
		CapIn:  cloneAmount(l.CapIn),
		CapOut: cloneAmount(l.CapOut),
	}
}

// MaxFor returns the per-operation ceiling for the direction.
func (l Limits) MaxFor(d Direction) *big.Int {
	if d == DirectionOut {
		return l.MaxOut
	}
	return l.MaxIn
}

// CapFor returns the per-account daily cap for the direction.
func (l Limits) CapFor(d Direction) *big.Int {
	if d == DirectionOut {
		return l.CapOut
	}
	return l.CapIn
}

// Validate rejects zero values and inconsistent orderings.
func (l Limits) Validate() error {
	if err := validateBounds(l.Min, l.MaxIn, l.MaxOut); err != nil {
		return err
	}
	return validateCaps(l.Min, l.CapIn, l.CapOut)
}

// Roles are the privileged addresses recognised by the access registry.
type Roles struct {
	Administrator     common.Address
	Operator          common.Address
	EmergencyRecovery common.Address
}

// Params is the construction-time configuration of a controller instance.
type Params struct {
	Roles
	// Controller is the address of the wrapped asset issued by this instance.
	Controller   common.Address
	ChainID      uint64
	OutboundMode OutboundMode
	Limits       Limits
}

// Validate checks the construction-time configuration. The emergency-recovery
// address is optional.
func (p Params) Validate() error {
	if p.Administrator == (common.Address{}) {
		return newError(KindInvalidAddress, "administrator address required").withAddress(p.Administrator)
	}
	if p.Operator == (common.Address{}) {
		return newError(KindInvalidAddress, "operator address required").withAddress(p.Operator)
	}
	if p.Controller == (common.Address{}) {
		return newError(KindInvalidAddress, "controller address required").withAddress(p.Controller)
	}
	if p.ChainID == 0 {
		return newError(KindInvalidAmount, "chain id must be non-zero")
	}
	if _, err := ParseOutboundMode(string(p.OutboundMode)); err != nil {
		return err
	}
	return p.Limits.Validate()
}

// Stats is the read-only summary exposed to relays and dashboards.
type Stats struct {
	TotalSupply          *big.Int
	TotalWrappedIn       *big.Int
	TotalUnwrappedOut    *big.Int
	TotalEmergencyMinted *big.Int
	TotalAdminBurned     *big.Int
	Operator             common.Address
	Paused               bool
	MinAmount            *big.Int
	MaxIn                *big.Int
	MaxOut               *big.Int
	DailyCapIn           *big.Int
	DailyCapOut          *big.Int
}

// Metadata describes the wrapped token.
type Metadata struct {
	Name     string
	Symbol   string
	Decimals uint8
	Version  string
}

// AuditReport reconciles the ledger against the supply counters.
type AuditReport struct {
	Holders      int
	BalanceSum   *big.Int
	TotalSupply  *big.Int
	WrappedIn    *big.Int
	UnwrappedOut *big.Int
	Emergency    *big.Int
	AdminBurned  *big.Int
}

// Balanced reports whether the balance sum matches total supply and the
// counters reconcile to it.
func (r AuditReport) Balanced() bool {
	if r.BalanceSum == nil || r.TotalSupply == nil {
		return false
	}
	if r.BalanceSum.Cmp(r.TotalSupply) != 0 {
		return false
	}
	expected := new(big.Int).Add(amountOrZero(r.WrappedIn), amountOrZero(r.Emergency))
	expected.Sub(expected, amountOrZero(r.UnwrappedOut))
	expected.Sub(expected, amountOrZero(r.AdminBurned))
	return expected.Cmp(r.TotalSupply) == 0
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
