package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"wacgbridge/core/events"
	"wacgbridge/native/bridge"
	"wacgbridge/observability"
	"wacgbridge/observability/logging"
	bridgeotel "wacgbridge/observability/otel"
	"wacgbridge/storage"
)

// Node is the execution environment of the bridge controller. It runs one
// call at a time to completion, supplies a monotonic timestamp and fans the
// events of each committed call out to subscribers once the call has
// released the node. Fan-out follows commit order. Subscribers may read
// from the node but must not issue calls from inside Emit.
type Node struct {
	mu      sync.Mutex
	tickets uint64 // calls committed; guarded by mu

	// Each call fans out once every call with a lower ticket has.
	fanoutMu   sync.Mutex
	fanout     *sync.Cond
	dispatched uint64

	engine   *bridge.Engine
	log      *slog.Logger
	metrics  *observability.BridgeMetrics
	emitters events.MultiEmitter
	clock    func() time.Time
	lastTS   int64
	pending  []events.Event
}

// Option customises a Node.
type Option func(*Node)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(n *Node) {
		if log != nil {
			n.log = log
		}
	}
}

// WithEmitters subscribes emitters to committed events, in order.
func WithEmitters(emitters ...events.Emitter) Option {
	return func(n *Node) {
		n.emitters = append(n.emitters, emitters...)
	}
}

// WithClock overrides the wall clock. Values that move backwards are clamped
// to the last observed timestamp.
func WithClock(clock func() time.Time) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithMetrics sets the metrics registry; nil disables call metrics.
func WithMetrics(m *observability.BridgeMetrics) Option {
	return func(n *Node) { n.metrics = m }
}

// NewNode opens the controller state held in db.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	engine, err := bridge.OpenEngine(db)
	if err != nil {
		return nil, fmt.Errorf("open bridge state: %w", err)
	}
	return newNode(engine, opts...), nil
}

// InitNode writes the construction-time state for params into db and opens
// it.
func InitNode(db storage.Database, params bridge.Params, opts ...Option) (*Node, error) {
	engine, err := bridge.NewEngine(db, params)
	if err != nil {
		return nil, err
	}
	return newNode(engine, opts...), nil
}

func newNode(engine *bridge.Engine, opts ...Option) *Node {
	n := &Node{
		engine: engine,
		log:    slog.Default(),
		clock:  time.Now,
	}
	n.fanout = sync.NewCond(&n.fanoutMu)
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.With(slog.String("component", "bridge"))
	// Events are buffered while the call holds the node and dispatched after.
	engine.SetEmitter(events.EmitterFunc(func(evt events.Event) {
		n.pending = append(n.pending, evt)
	}))
	engine.SetNowFunc(func() int64 { return n.lastTS })
	return n
}

// tick advances the node clock. Callers hold n.mu.
func (n *Node) tick() {
	now := n.clock().Unix()
	if now < n.lastTS {
		now = n.lastTS
	}
	n.lastTS = now
}

func (n *Node) run(ctx context.Context, op string, caller common.Address, details map[string]string, fn func(*bridge.Engine) error) error {
	_, span := bridgeotel.Tracer().Start(ctx, "bridge."+op)
	defer span.End()
	span.SetAttributes(attribute.String("bridge.caller", caller.Hex()))

	start := time.Now()
	n.mu.Lock()
	n.tick()
	err := fn(n.engine)
	dispatch := n.pending
	n.pending = nil
	ticket := n.tickets
	n.tickets++
	n.mu.Unlock()

	n.fanoutMu.Lock()
	for n.dispatched != ticket {
		n.fanout.Wait()
	}
	for _, evt := range dispatch {
		n.emitters.Emit(evt)
	}
	n.dispatched++
	n.fanout.Broadcast()
	n.fanoutMu.Unlock()
	n.observe(ctx, op, caller, details, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, bridge.KindOf(err).String())
	}
	return err
}

func (n *Node) observe(ctx context.Context, op string, caller common.Address, details map[string]string, err error, elapsed time.Duration) {
	kind := bridge.KindOf(err)
	tier := bridge.TierOf(err)
	if n.metrics != nil {
		var kindLabel, tierLabel string
		if err != nil {
			kindLabel, tierLabel = "internal", "internal"
			if kind != 0 {
				kindLabel, tierLabel = kind.String(), string(tier)
			}
		}
		n.metrics.ObserveCall(op, elapsed, kindLabel, tierLabel)
	}

	attrs := []any{slog.String("operation", op), slog.String("caller", caller.Hex())}
	for k, v := range details {
		attrs = append(attrs, logging.MaskField(k, v))
	}
	switch {
	case err == nil:
		n.log.InfoContext(ctx, "bridge call committed", attrs...)
	case tier == bridge.TierAuthorization:
		logging.Audit(ctx, n.log, logging.AuditEvent{
			Operation: op,
			Actor:     caller.Hex(),
			Result:    "denied",
			Details:   map[string]string{"kind": kind.String(), "error": err.Error()},
		})
	case kind != 0:
		attrs = append(attrs, slog.String("kind", kind.String()), slog.String("tier", string(tier)), slog.Any("error", err))
		n.log.InfoContext(ctx, "bridge call rejected", attrs...)
	default:
		attrs = append(attrs, slog.Any("error", err))
		n.log.ErrorContext(ctx, "bridge call failed", attrs...)
	}
}

// Mint settles an inbound deposit.
func (n *Node) Mint(ctx context.Context, caller, recipient common.Address, amount *big.Int, proof string) (common.Hash, error) {
	var fp common.Hash
	err := n.run(ctx, "mint", caller, map[string]string{"recipient": recipient.Hex(), "proof": proof}, func(e *bridge.Engine) error {
		var err error
		fp, err = e.Mint(caller, recipient, amount, proof)
		return err
	})
	return fp, err
}

// Burn accepts an outbound withdrawal.
func (n *Node) Burn(ctx context.Context, caller, holder common.Address, amount *big.Int, destination string) (common.Hash, error) {
	var fp common.Hash
	err := n.run(ctx, "burn", caller, map[string]string{"holder": holder.Hex(), "destination": destination}, func(e *bridge.Engine) error {
		var err error
		fp, err = e.Burn(caller, holder, amount, destination)
		return err
	})
	return fp, err
}

// EmergencyMint issues outside the limit policy.
func (n *Node) EmergencyMint(ctx context.Context, caller, recipient common.Address, amount *big.Int) error {
	return n.run(ctx, "emergency_mint", caller, map[string]string{"recipient": recipient.Hex()}, func(e *bridge.Engine) error {
		return e.EmergencyMint(caller, recipient, amount)
	})
}

// BurnFrom destroys part of a holder's balance outside the limit policy.
func (n *Node) BurnFrom(ctx context.Context, caller, holder common.Address, amount *big.Int) error {
	return n.run(ctx, "burn_from", caller, map[string]string{"holder": holder.Hex()}, func(e *bridge.Engine) error {
		return e.BurnFrom(caller, holder, amount)
	})
}

func (n *Node) Pause(ctx context.Context, caller common.Address) error {
	return n.run(ctx, "pause", caller, nil, func(e *bridge.Engine) error { return e.Pause(caller) })
}

func (n *Node) Unpause(ctx context.Context, caller common.Address) error {
	return n.run(ctx, "unpause", caller, nil, func(e *bridge.Engine) error { return e.Unpause(caller) })
}

func (n *Node) SetOperator(ctx context.Context, caller, next common.Address) error {
	return n.run(ctx, "set_operator", caller, nil, func(e *bridge.Engine) error { return e.SetOperator(caller, next) })
}

func (n *Node) SetAdministrator(ctx context.Context, caller, next common.Address) error {
	return n.run(ctx, "set_administrator", caller, nil, func(e *bridge.Engine) error { return e.SetAdministrator(caller, next) })
}

func (n *Node) SetEmergencyRecovery(ctx context.Context, caller, next common.Address) error {
	return n.run(ctx, "set_emergency_recovery", caller, nil, func(e *bridge.Engine) error { return e.SetEmergencyRecovery(caller, next) })
}

func (n *Node) UpdateBounds(ctx context.Context, caller common.Address, minimum, maxIn, maxOut *big.Int) error {
	return n.run(ctx, "update_bounds", caller, nil, func(e *bridge.Engine) error { return e.UpdateBounds(caller, minimum, maxIn, maxOut) })
}

func (n *Node) UpdateDailyCaps(ctx context.Context, caller common.Address, capIn, capOut *big.Int) error {
	return n.run(ctx, "update_daily_caps", caller, nil, func(e *bridge.Engine) error { return e.UpdateDailyCaps(caller, capIn, capOut) })
}

func (n *Node) RecoverForeignAsset(ctx context.Context, caller, asset, to common.Address, amount *big.Int) error {
	return n.run(ctx, "recover_foreign_asset", caller, map[string]string{"asset": asset.Hex()}, func(e *bridge.Engine) error {
		return e.RecoverForeignAsset(caller, asset, to, amount)
	})
}

func (n *Node) RecordForeignDeposit(ctx context.Context, caller, asset common.Address, amount *big.Int, ref string) error {
	return n.run(ctx, "record_foreign_deposit", caller, map[string]string{"asset": asset.Hex(), "ref": ref}, func(e *bridge.Engine) error {
		return e.RecordForeignDeposit(caller, asset, amount, ref)
	})
}

func (n *Node) Transfer(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	return n.run(ctx, "transfer", caller, nil, func(e *bridge.Engine) error { return e.Transfer(caller, to, amount) })
}

func (n *Node) Approve(ctx context.Context, caller, spender common.Address, amount *big.Int) error {
	return n.run(ctx, "approve", caller, nil, func(e *bridge.Engine) error { return e.Approve(caller, spender, amount) })
}

func (n *Node) TransferFrom(ctx context.Context, caller, from, to common.Address, amount *big.Int) error {
	return n.run(ctx, "transfer_from", caller, nil, func(e *bridge.Engine) error { return e.TransferFrom(caller, from, to, amount) })
}

// view runs a read against committed state without interleaving a call.
func (n *Node) view(fn func(*bridge.Engine) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fn(n.engine)
}

func (n *Node) Stats() (stats bridge.Stats, err error) {
	err = n.view(func(e *bridge.Engine) error { stats, err = e.Stats(); return err })
	return stats, err
}

func (n *Node) BalanceOf(addr common.Address) (balance *big.Int, err error) {
	err = n.view(func(e *bridge.Engine) error { balance, err = e.BalanceOf(addr); return err })
	return balance, err
}

func (n *Node) Allowance(owner, spender common.Address) (allowance *big.Int, err error) {
	err = n.view(func(e *bridge.Engine) error { allowance, err = e.Allowance(owner, spender); return err })
	return allowance, err
}

func (n *Node) DailyUsage(account common.Address, d bridge.Direction, day uint64) (used *big.Int, err error) {
	err = n.view(func(e *bridge.Engine) error { used, err = e.DailyUsage(account, d, day); return err })
	return used, err
}

func (n *Node) IsProcessed(fp common.Hash) (seen bool, err error) {
	err = n.view(func(e *bridge.Engine) error { seen, err = e.IsProcessed(fp); return err })
	return seen, err
}

func (n *Node) ForeignHolding(asset common.Address) (held *big.Int, err error) {
	err = n.view(func(e *bridge.Engine) error { held, err = e.ForeignHolding(asset); return err })
	return held, err
}

func (n *Node) Params() (params bridge.Params, err error) {
	err = n.view(func(e *bridge.Engine) error { params, err = e.Params(); return err })
	return params, err
}

func (n *Node) Audit() (report bridge.AuditReport, err error) {
	err = n.view(func(e *bridge.Engine) error { report, err = e.Audit(); return err })
	return report, err
}

// Today returns the day index of the node clock.
func (n *Node) Today() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tick()
	return n.engine.Today()
}

func (n *Node) Metadata() bridge.Metadata {
	return n.engine.Metadata()
}
