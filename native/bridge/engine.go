package bridge

import (
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"wacgbridge/core/events"
	nativecommon "wacgbridge/native/common"
	"wacgbridge/storage"
)

// MaxExternalRefLength bounds inbound proof identifiers and outbound
// destination identifiers, in bytes.
const MaxExternalRefLength = 256

// Engine is the bridge controller. Every state-changing entry point runs as
// one call: checks first, then a single storage batch, then events. The
// engine is single-writer and is not safe for concurrent use; core.Node
// serialises callers.
type Engine struct {
	db      storage.Database
	emitter events.Emitter
	nowFn   func() int64
	entered bool
}

// NewEngine writes the construction-time state described by params into db
// and returns an engine over it. It fails with ErrAlreadyInitialised when db
// already holds controller state.
func NewEngine(db storage.Database, params Params) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("bridge: database required")
	}
	mode, err := ParseOutboundMode(string(params.OutboundMode))
	if err != nil {
		return nil, err
	}
	params.OutboundMode = mode
	params.Limits = params.Limits.Clone()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	st := newState(db)
	if _, exists, err := st.schema(); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyInitialised
	}
	if err := st.put(schemaKey, SchemaVersion); err != nil {
		return nil, err
	}
	if err := st.putParams(params); err != nil {
		return nil, err
	}
	if err := st.putPaused(false); err != nil {
		return nil, err
	}
	zero := storedCounters{
		TotalSupply:  big.NewInt(0),
		WrappedIn:    big.NewInt(0),
		UnwrappedOut: big.NewInt(0),
		Emergency:    big.NewInt(0),
		AdminBurned:  big.NewInt(0),
	}
	if err := st.putCounters(zero); err != nil {
		return nil, err
	}
	if err := st.commit(); err != nil {
		return nil, err
	}
	return newEngine(db), nil
}

// OpenEngine returns an engine over previously initialised state.
func OpenEngine(db storage.Database) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("bridge: database required")
	}
	st := newState(db)
	version, exists, err := st.schema()
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotInitialised
	}
	if version != SchemaVersion {
		return nil, fmt.Errorf("%w: stored %d, supported %d", ErrSchemaVersion, version, SchemaVersion)
	}
	if _, err := st.params(); err != nil {
		return nil, err
	}
	return newEngine(db), nil
}

func newEngine(db storage.Database) *Engine {
	return &Engine{
		db:      db,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event sink. Passing nil discards events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests and for
// the execution environment to supply its own timestamp.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// call is the working set of one state-changing invocation.
type call struct {
	st      *state
	params  Params
	access  accessRegistry
	pause   *pauseSwitch
	now     int64
	pending []events.Event
}

func (c *call) limits() limitPolicy { return limitPolicy{st: c.st, limits: c.params.Limits} }
func (c *call) replay() replayGuard { return replayGuard{st: c.st} }
func (c *call) ledger() ledger      { return ledger{st: c.st} }

func (c *call) record(evt events.Event) {
	c.pending = append(c.pending, evt)
}

// supply snapshots the counters after a supply change of delta.
func supply(counters storedCounters, delta *big.Int, reason string) events.TokenSupply {
	return events.TokenSupply{
		Total:        counters.TotalSupply,
		Delta:        new(big.Int).Set(delta),
		WrappedIn:    counters.WrappedIn,
		UnwrappedOut: counters.UnwrappedOut,
		Emergency:    counters.Emergency,
		AdminBurned:  counters.AdminBurned,
		Reason:       reason,
	}
}

func (c *call) day() (uint64, error) {
	day, err := nativecommon.DayIndex(c.now)
	if err != nil {
		return 0, fmt.Errorf("bridge: %w", err)
	}
	return day, nil
}

// execute runs fn against a fresh call overlay. Nothing reaches storage unless
// fn succeeds; events are emitted after the commit, still inside the
// reentrancy guard.
func (e *Engine) execute(fn func(c *call) error) error {
	if e.entered {
		return ErrReentrantCall
	}
	e.entered = true
	defer func() { e.entered = false }()

	st := newState(e.db)
	params, err := st.params()
	if err != nil {
		return err
	}
	c := &call{
		st:     st,
		params: params,
		access: accessRegistry{roles: params.Roles},
		pause:  &pauseSwitch{st: st},
		now:    e.nowFn(),
	}
	if err := fn(c); err != nil {
		return err
	}
	if err := st.commit(); err != nil {
		return err
	}
	for _, evt := range c.pending {
		e.emitter.Emit(evt)
	}
	return nil
}

// Mint settles an inbound deposit: the operator credits amount to recipient
// against the external proof identifier. It returns the request fingerprint.
func (e *Engine) Mint(caller, recipient common.Address, amount *big.Int, proof string) (common.Hash, error) {
	var fp common.Hash
	err := e.execute(func(c *call) error {
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := c.access.requireOperator(caller); err != nil {
			return err
		}
		if err := requireAddress(recipient, "recipient"); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		if err := validateExternalRef(proof, "proof"); err != nil {
			return err
		}
		day, err := c.day()
		if err != nil {
			return err
		}
		if err := c.limits().checkAndReserve(recipient, DirectionIn, amount, day); err != nil {
			return err
		}
		fp = Fingerprint(recipient, amount, proof, c.params.ChainID)
		if err := c.replay().markIfNew(fp, DirectionIn, c.now); err != nil {
			return err
		}
		counters, err := c.ledger().credit(recipient, amount, reasonWrap)
		if err != nil {
			return err
		}
		c.record(events.Minted{
			Recipient:   recipient,
			Amount:      new(big.Int).Set(amount),
			Proof:       proof,
			Fingerprint: fp,
			TokenSupply: supply(counters, amount, events.SupplyReasonWrap),
		})
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return fp, nil
}

// Burn accepts an outbound withdrawal of amount from holder towards the
// destination identifier on the source ledger. Who may submit it depends on
// the configured outbound mode. It returns the request fingerprint.
func (e *Engine) Burn(caller, holder common.Address, amount *big.Int, destination string) (common.Hash, error) {
	var fp common.Hash
	err := e.execute(func(c *call) error {
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := c.access.requireOutbound(c.params.OutboundMode, caller, holder); err != nil {
			return err
		}
		if err := requireAddress(holder, "holder"); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		if err := validateExternalRef(destination, "destination"); err != nil {
			return err
		}
		day, err := c.day()
		if err != nil {
			return err
		}
		if err := c.limits().checkAndReserve(holder, DirectionOut, amount, day); err != nil {
			return err
		}
		fp = Fingerprint(holder, amount, destination, c.params.ChainID)
		if err := c.replay().markIfNew(fp, DirectionOut, c.now); err != nil {
			return err
		}
		counters, err := c.ledger().debit(holder, amount, reasonUnwrap)
		if err != nil {
			return err
		}
		c.record(events.Burned{
			Holder:      holder,
			Amount:      new(big.Int).Set(amount),
			Destination: destination,
			Fingerprint: fp,
			TokenSupply: supply(counters, new(big.Int).Neg(amount), events.SupplyReasonUnwrap),
		})
		return nil
	})
	if err != nil {
		return common.Hash{}, err
	}
	return fp, nil
}

// EmergencyMint issues amount to recipient outside the limit policy and
// without replay protection. Operator only; still refused while paused.
func (e *Engine) EmergencyMint(caller, recipient common.Address, amount *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := c.access.requireOperator(caller); err != nil {
			return err
		}
		if err := requireAddress(recipient, "recipient"); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		counters, err := c.ledger().credit(recipient, amount, reasonEmergency)
		if err != nil {
			return err
		}
		c.record(events.EmergencyMinted{
			Operator:    caller,
			Recipient:   recipient,
			Amount:      new(big.Int).Set(amount),
			TokenSupply: supply(counters, amount, events.SupplyReasonEmergency),
		})
		return nil
	})
}

// BurnFrom destroys amount of holder's balance without releasing anything on
// the source ledger. Operator only; it skips the limit policy and replay
// protection but is refused while paused.
func (e *Engine) BurnFrom(caller, holder common.Address, amount *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := c.access.requireOperator(caller); err != nil {
			return err
		}
		if err := requireAddress(holder, "holder"); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		counters, err := c.ledger().debit(holder, amount, reasonAdminBurn)
		if err != nil {
			return err
		}
		c.record(events.AdminBurned{
			Operator:    caller,
			Holder:      holder,
			Amount:      new(big.Int).Set(amount),
			TokenSupply: supply(counters, new(big.Int).Neg(amount), events.SupplyReasonAdminBurn),
		})
		return nil
	})
}

// Pause halts every supply- and transfer-affecting entry point. Pausing an
// already paused controller fails with OperationsPaused.
func (e *Engine) Pause(caller common.Address) error {
	return e.execute(func(c *call) error {
		if err := c.access.requireAdministrator(caller); err != nil {
			return err
		}
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := c.st.putPaused(true); err != nil {
			return err
		}
		c.record(events.PauseChanged{Paused: true, By: caller})
		return nil
	})
}

// Unpause resumes operations. Unpausing a running controller is a no-op.
func (e *Engine) Unpause(caller common.Address) error {
	return e.execute(func(c *call) error {
		if err := c.access.requireAdministrator(caller); err != nil {
			return err
		}
		paused, err := c.st.paused()
		if err != nil {
			return err
		}
		if !paused {
			return nil
		}
		if err := c.st.putPaused(false); err != nil {
			return err
		}
		c.record(events.PauseChanged{Paused: false, By: caller})
		return nil
	})
}

// SetOperator moves the mint/burn operator role.
func (e *Engine) SetOperator(caller, next common.Address) error {
	return e.changeRole(caller, next, "operator", events.TypeBridgeOperatorChanged, func(r *Roles) *common.Address { return &r.Operator })
}

// SetAdministrator moves the administrator role.
func (e *Engine) SetAdministrator(caller, next common.Address) error {
	return e.changeRole(caller, next, "administrator", events.TypeBridgeAdministratorChanged, func(r *Roles) *common.Address { return &r.Administrator })
}

// SetEmergencyRecovery moves the emergency-recovery address.
func (e *Engine) SetEmergencyRecovery(caller, next common.Address) error {
	return e.changeRole(caller, next, "emergency recovery", events.TypeBridgeEmergencyRecoveryChanged, func(r *Roles) *common.Address { return &r.EmergencyRecovery })
}

func (e *Engine) changeRole(caller, next common.Address, role, eventType string, slot func(*Roles) *common.Address) error {
	return e.execute(func(c *call) error {
		if err := c.access.requireAdministrator(caller); err != nil {
			return err
		}
		target := slot(&c.params.Roles)
		previous := *target
		if err := c.access.replacement(previous, next, role); err != nil {
			return err
		}
		*target = next
		if err := c.st.putParams(c.params); err != nil {
			return err
		}
		c.record(events.RoleChanged{Kind: eventType, Old: previous, New: next})
		return nil
	})
}

// UpdateBounds replaces the per-operation minimum and maxima.
func (e *Engine) UpdateBounds(caller common.Address, minimum, maxIn, maxOut *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.access.requireAdministrator(caller); err != nil {
			return err
		}
		if err := validateBounds(minimum, maxIn, maxOut); err != nil {
			return err
		}
		next := c.params.Limits.Clone()
		next.Min, next.MaxIn, next.MaxOut = cloneAmount(minimum), cloneAmount(maxIn), cloneAmount(maxOut)
		if err := next.Validate(); err != nil {
			return err
		}
		c.params.Limits = next
		if err := c.st.putParams(c.params); err != nil {
			return err
		}
		c.record(events.BoundsUpdated{Min: cloneAmount(minimum), MaxIn: cloneAmount(maxIn), MaxOut: cloneAmount(maxOut)})
		return nil
	})
}

// UpdateDailyCaps replaces the per-account daily caps.
func (e *Engine) UpdateDailyCaps(caller common.Address, capIn, capOut *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.access.requireAdministrator(caller); err != nil {
			return err
		}
		next := c.params.Limits.Clone()
		next.CapIn, next.CapOut = cloneAmount(capIn), cloneAmount(capOut)
		if err := validateCaps(next.Min, next.CapIn, next.CapOut); err != nil {
			return err
		}
		c.params.Limits = next
		if err := c.st.putParams(c.params); err != nil {
			return err
		}
		c.record(events.DailyCapsUpdated{CapIn: cloneAmount(capIn), CapOut: cloneAmount(capOut)})
		return nil
	})
}

// read runs fn against a read-only view of committed state.
func (e *Engine) read(fn func(st *state, params Params) error) error {
	st := newState(e.db)
	params, err := st.params()
	if err != nil {
		return err
	}
	return fn(st, params)
}

// Stats returns the supply counters and the active configuration.
func (e *Engine) Stats() (Stats, error) {
	var out Stats
	err := e.read(func(st *state, params Params) error {
		counters, err := st.counters()
		if err != nil {
			return err
		}
		paused, err := st.paused()
		if err != nil {
			return err
		}
		out = Stats{
			TotalSupply:          counters.TotalSupply,
			TotalWrappedIn:       counters.WrappedIn,
			TotalUnwrappedOut:    counters.UnwrappedOut,
			TotalEmergencyMinted: counters.Emergency,
			TotalAdminBurned:     counters.AdminBurned,
			Operator:             params.Operator,
			Paused:               paused,
			MinAmount:            params.Limits.Min,
			MaxIn:                params.Limits.MaxIn,
			MaxOut:               params.Limits.MaxOut,
			DailyCapIn:           params.Limits.CapIn,
			DailyCapOut:          params.Limits.CapOut,
		}
		return nil
	})
	return out, err
}

// DailyUsage returns the cumulative amount account moved in direction d
// during the given day index.
func (e *Engine) DailyUsage(account common.Address, d Direction, day uint64) (*big.Int, error) {
	if !d.Valid() {
		return nil, newError(KindInvalidAmount, "unknown direction %s", d)
	}
	var out *big.Int
	err := e.read(func(st *state, _ Params) error {
		used, err := st.usage(d, day, account)
		out = used
		return err
	})
	return out, err
}

// Today returns the day index the next call would be accounted under.
func (e *Engine) Today() (uint64, error) {
	return nativecommon.DayIndex(e.nowFn())
}

// IsProcessed reports whether the fingerprint has been consumed.
func (e *Engine) IsProcessed(fp common.Hash) (bool, error) {
	var out bool
	err := e.read(func(st *state, _ Params) error {
		seen, err := replayGuard{st: st}.isProcessed(fp)
		out = seen
		return err
	})
	return out, err
}

// BalanceOf returns the wrapped balance of addr.
func (e *Engine) BalanceOf(addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := e.read(func(st *state, _ Params) error {
		balance, err := ledger{st: st}.balanceOf(addr)
		out = balance
		return err
	})
	return out, err
}

// Allowance returns the amount spender may move on behalf of owner.
func (e *Engine) Allowance(owner, spender common.Address) (*big.Int, error) {
	var out *big.Int
	err := e.read(func(st *state, _ Params) error {
		allowance, err := ledger{st: st}.allowance(owner, spender)
		out = allowance
		return err
	})
	return out, err
}

// Params returns the active configuration record.
func (e *Engine) Params() (Params, error) {
	var out Params
	err := e.read(func(_ *state, params Params) error {
		out = params
		return nil
	})
	return out, err
}

// Roles returns the privileged addresses.
func (e *Engine) Roles() (Roles, error) {
	params, err := e.Params()
	return params.Roles, err
}

// Limits returns the active bounds and daily caps.
func (e *Engine) Limits() (Limits, error) {
	params, err := e.Params()
	return params.Limits, err
}

// Paused reports the pause flag.
func (e *Engine) Paused() (bool, error) {
	var out bool
	err := e.read(func(st *state, _ Params) error {
		paused, err := st.paused()
		out = paused
		return err
	})
	return out, err
}

// IsAdministrator reports whether addr holds the administrator role.
func (e *Engine) IsAdministrator(addr common.Address) (bool, error) {
	roles, err := e.Roles()
	return accessRegistry{roles: roles}.isAdministrator(addr), err
}

// IsOperator reports whether addr holds the operator role.
func (e *Engine) IsOperator(addr common.Address) (bool, error) {
	roles, err := e.Roles()
	return accessRegistry{roles: roles}.isOperator(addr), err
}

// IsEmergencyRecovery reports whether addr is the emergency-recovery address.
func (e *Engine) IsEmergencyRecovery(addr common.Address) (bool, error) {
	roles, err := e.Roles()
	return accessRegistry{roles: roles}.isEmergencyRecovery(addr), err
}

// Metadata describes the wrapped token.
func (e *Engine) Metadata() Metadata {
	return Metadata{Name: TokenName, Symbol: TokenSymbol, Decimals: Decimals, Version: Version}
}

// Audit walks every balance and reconciles the sum against the counters.
func (e *Engine) Audit() (AuditReport, error) {
	report := AuditReport{BalanceSum: big.NewInt(0)}
	st := newState(e.db)
	counters, err := st.counters()
	if err != nil {
		return AuditReport{}, err
	}
	report.TotalSupply = counters.TotalSupply
	report.WrappedIn = counters.WrappedIn
	report.UnwrappedOut = counters.UnwrappedOut
	report.Emergency = counters.Emergency
	report.AdminBurned = counters.AdminBurned
	var decodeErr error
	err = e.db.Iterate(balancePrefix, func(key, value []byte) bool {
		balance, err := decodeAmount(value)
		if err != nil {
			decodeErr = fmt.Errorf("bridge audit: %s: %w", key, err)
			return false
		}
		if balance.Sign() > 0 {
			report.Holders++
			report.BalanceSum.Add(report.BalanceSum, balance)
		}
		return true
	})
	if err != nil {
		return AuditReport{}, err
	}
	if decodeErr != nil {
		return AuditReport{}, decodeErr
	}
	return report, nil
}

func requireAddress(addr common.Address, what string) error {
	if addr == (common.Address{}) {
		return newError(KindInvalidAddress, "%s must not be the zero address", what).withAddress(addr)
	}
	return nil
}

func requireAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return newError(KindInvalidAmount, "amount must be positive").withAmounts(amount, nil)
	}
	if !fitsUint256(amount) {
		return newError(KindInvalidAmount, "amount exceeds uint256").withAmounts(amount, nil)
	}
	return nil
}

// validateExternalRef checks a proof or destination identifier. It must be
// non-empty valid UTF-8 without control characters or surrounding
// whitespace, at most MaxExternalRefLength bytes.
func validateExternalRef(ref, what string) error {
	if ref == "" {
		return newError(KindInvalidExternalProof, "%s required", what)
	}
	if len(ref) > MaxExternalRefLength {
		return newError(KindInvalidExternalProof, "%s longer than %d bytes", what, MaxExternalRefLength)
	}
	if !utf8.ValidString(ref) {
		return newError(KindInvalidExternalProof, "%s is not valid UTF-8", what)
	}
	if strings.TrimSpace(ref) != ref {
		return newError(KindInvalidExternalProof, "%s has surrounding whitespace", what)
	}
	for _, r := range ref {
		if unicode.IsControl(r) {
			return newError(KindInvalidExternalProof, "%s contains control characters", what)
		}
	}
	return nil
}
