package bridge

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Kind enumerates every rejection a caller can observe.
type Kind uint8

const (
	KindInvalidAddress Kind = iota + 1
	KindInvalidAmount
	KindInvalidExternalProof
	KindAmountBelowMinimum
	KindAmountExceedsMaximum
	KindDailyCapExceeded
	KindRequestAlreadyProcessed
	KindInsufficientBalance
	KindUnauthorized
	KindOperationsPaused
)

var kindNames = map[Kind]string{
	KindInvalidAddress:          "InvalidAddress",
	KindInvalidAmount:           "InvalidAmount",
	KindInvalidExternalProof:    "InvalidExternalProof",
	KindAmountBelowMinimum:      "AmountBelowMinimum",
	KindAmountExceedsMaximum:    "AmountExceedsMaximum",
	KindDailyCapExceeded:        "DailyCapExceeded",
	KindRequestAlreadyProcessed: "RequestAlreadyProcessed",
	KindInsufficientBalance:     "InsufficientBalance",
	KindUnauthorized:            "Unauthorized",
	KindOperationsPaused:        "OperationsPaused",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Tier groups error kinds by how callers and operators should react.
type Tier string

const (
	// TierValidation marks malformed input; the caller must fix the request.
	TierValidation Tier = "validation"
	// TierPolicy marks business-rule rejections; relays stop retrying the request.
	TierPolicy Tier = "policy"
	// TierAuthorization marks role failures; these are security relevant.
	TierAuthorization Tier = "authorization"
)

// Tier returns the handling tier of the kind.
func (k Kind) Tier() Tier {
	switch k {
	case KindInvalidAddress, KindInvalidAmount, KindInvalidExternalProof:
		return TierValidation
	case KindUnauthorized:
		return TierAuthorization
	default:
		return TierPolicy
	}
}

// Error is the typed rejection returned by every controller entry point. The
// optional fields carry the offending value where one exists.
type Error struct {
	Kind        Kind
	Message     string
	Address     *common.Address
	Amount      *big.Int
	Limit       *big.Int
	Fingerprint *common.Hash
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) withAddress(addr common.Address) *Error {
	e.Address = &addr
	return e
}

func (e *Error) withAmounts(amount, limit *big.Int) *Error {
	e.Amount = cloneAmount(amount)
	e.Limit = cloneAmount(limit)
	return e
}

func (e *Error) withFingerprint(fp common.Hash) *Error {
	e.Fingerprint = &fp
	return e
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("bridge: ")
	b.WriteString(e.Kind.String())
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrDailyCapExceeded)
// succeeds regardless of the carried values.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Kind == other.Kind
}

// Tier returns the handling tier of the error kind.
func (e *Error) Tier() Tier {
	if e == nil {
		return ""
	}
	return e.Kind.Tier()
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidAddress          = &Error{Kind: KindInvalidAddress}
	ErrInvalidAmount           = &Error{Kind: KindInvalidAmount}
	ErrInvalidExternalProof    = &Error{Kind: KindInvalidExternalProof}
	ErrAmountBelowMinimum      = &Error{Kind: KindAmountBelowMinimum}
	ErrAmountExceedsMaximum    = &Error{Kind: KindAmountExceedsMaximum}
	ErrDailyCapExceeded        = &Error{Kind: KindDailyCapExceeded}
	ErrRequestAlreadyProcessed = &Error{Kind: KindRequestAlreadyProcessed}
	ErrInsufficientBalance     = &Error{Kind: KindInsufficientBalance}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized}
	ErrOperationsPaused        = &Error{Kind: KindOperationsPaused}
)

var (
	// ErrReentrantCall is returned when a mutating entry point is invoked while
	// another call on the same engine is still in progress.
	ErrReentrantCall = errors.New("bridge: reentrant call rejected")
	// ErrNotInitialised indicates the storage holds no controller state.
	ErrNotInitialised = errors.New("bridge: controller state not initialised")
	// ErrAlreadyInitialised indicates construction was attempted over existing state.
	ErrAlreadyInitialised = errors.New("bridge: controller state already initialised")
	// ErrSchemaVersion indicates the stored state was written by an incompatible version.
	ErrSchemaVersion = errors.New("bridge: unsupported state schema version")
)

// KindOf extracts the error kind, returning zero for non-controller errors.
func KindOf(err error) Kind {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) && bridgeErr != nil {
		return bridgeErr.Kind
	}
	return 0
}

// TierOf extracts the handling tier, returning "" for non-controller errors.
func TierOf(err error) Tier {
	if kind := KindOf(err); kind != 0 {
		return kind.Tier()
	}
	return ""
}
