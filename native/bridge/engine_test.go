package bridge

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"wacgbridge/core/events"
	"wacgbridge/storage"
)

var (
	adminAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	operatorAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	recoveryAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	controllerAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	foreignAsset   = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	user1          = common.HexToAddress("0x0000000000000000000000000000000000000001")
	user2          = common.HexToAddress("0x0000000000000000000000000000000000000002")
	stranger       = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

const testChainID = 97

func amt(v int64) *big.Int { return big.NewInt(v) }

func testParams() Params {
	return Params{
		Roles: Roles{
			Administrator:     adminAddr,
			Operator:          operatorAddr,
			EmergencyRecovery: recoveryAddr,
		},
		Controller: controllerAddr,
		ChainID:    testChainID,
		Limits: Limits{
			Min:    amt(1),
			MaxIn:  amt(100_000_000_000),
			MaxOut: amt(100_000_000_000),
			CapIn:  amt(1_000_000_000_000),
			CapOut: amt(1_000_000_000_000),
		},
	}
}

type fixture struct {
	engine *Engine
	db     *storage.MemDB
	log    *events.Log
	now    int64
}

func newFixture(t *testing.T, params Params) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	engine, err := NewEngine(db, params)
	require.NoError(t, err)
	f := &fixture{engine: engine, db: db, log: events.NewLog(), now: 1_700_000_000}
	engine.SetEmitter(f.log)
	engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *fixture) snapshot(t *testing.T) map[string]string {
	t.Helper()
	out := make(map[string]string)
	require.NoError(t, f.db.Iterate(nil, func(key, value []byte) bool {
		out[string(key)] = string(value)
		return true
	}))
	return out
}

func (f *fixture) balance(t *testing.T, addr common.Address) *big.Int {
	t.Helper()
	balance, err := f.engine.BalanceOf(addr)
	require.NoError(t, err)
	return balance
}

func (f *fixture) requireConserved(t *testing.T) {
	t.Helper()
	report, err := f.engine.Audit()
	require.NoError(t, err)
	require.Zero(t, report.BalanceSum.Cmp(report.TotalSupply), "balances %s supply %s", report.BalanceSum, report.TotalSupply)
	require.True(t, report.Balanced())
}

func TestConcreteScenario(t *testing.T) {
	f := newFixture(t, testParams())

	_, err := f.engine.Mint(operatorAddr, user1, amt(10_000_000_000), "proof-1")
	require.NoError(t, err)
	require.Equal(t, "10000000000", f.balance(t, user1).String())
	stats, err := f.engine.Stats()
	require.NoError(t, err)
	require.Equal(t, "10000000000", stats.TotalSupply.String())

	_, err = f.engine.Mint(operatorAddr, user1, amt(10_000_000_000), "proof-1")
	require.ErrorIs(t, err, ErrRequestAlreadyProcessed)

	_, err = f.engine.Burn(operatorAddr, user1, amt(5_000_000_000), "dest-1")
	require.NoError(t, err)
	require.Equal(t, "5000000000", f.balance(t, user1).String())
	stats, err = f.engine.Stats()
	require.NoError(t, err)
	require.Equal(t, "5000000000", stats.TotalSupply.String())
	require.Equal(t, "10000000000", stats.TotalWrappedIn.String())
	require.Equal(t, "5000000000", stats.TotalUnwrappedOut.String())
	require.Equal(t, operatorAddr, stats.Operator)
	require.False(t, stats.Paused)
	f.requireConserved(t)
}

func TestMintEmitsEvents(t *testing.T) {
	f := newFixture(t, testParams())

	fp, err := f.engine.Mint(operatorAddr, user1, amt(250), "proof-7")
	require.NoError(t, err)
	require.Equal(t, Fingerprint(user1, amt(250), "proof-7", testChainID), fp)

	minted := f.log.OfType(events.TypeBridgeMinted)
	require.Len(t, minted, 1)
	evt := minted[0].(events.Minted)
	require.Equal(t, user1, evt.Recipient)
	require.Equal(t, "250", evt.Amount.String())
	require.Equal(t, "proof-7", evt.Proof)
	require.Equal(t, fp, evt.Fingerprint)
	require.Equal(t, events.SupplyReasonWrap, evt.Reason)
	require.Equal(t, "250", evt.Total.String())
	require.Equal(t, "250", evt.Delta.String())

	// One event per call; the supply snapshot rides on the domain event.
	require.Equal(t, 1, f.log.Len())

	seen, err := f.engine.IsProcessed(fp)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, testParams())

	fp, err := f.engine.Mint(operatorAddr, user1, amt(1_000), "proof-1")
	require.NoError(t, err)
	emitted := f.log.Len()

	_, err = f.engine.Mint(operatorAddr, user1, amt(1_000), "proof-1")
	require.ErrorIs(t, err, ErrRequestAlreadyProcessed)
	var bridgeErr *Error
	require.True(t, errors.As(err, &bridgeErr))
	require.NotNil(t, bridgeErr.Fingerprint)
	require.Equal(t, fp, *bridgeErr.Fingerprint)
	require.Equal(t, TierPolicy, bridgeErr.Tier())

	require.Equal(t, "1000", f.balance(t, user1).String())
	require.Equal(t, emitted, f.log.Len())

	// A different amount under the same proof is a distinct request.
	_, err = f.engine.Mint(operatorAddr, user1, amt(1_001), "proof-1")
	require.NoError(t, err)
}

func TestInboundAndOutboundShareFingerprints(t *testing.T) {
	f := newFixture(t, testParams())

	_, err := f.engine.Mint(operatorAddr, user1, amt(500), "ref-1")
	require.NoError(t, err)
	_, err = f.engine.Burn(operatorAddr, user1, amt(500), "ref-1")
	require.ErrorIs(t, err, ErrRequestAlreadyProcessed)
}

func TestRejectedCallsLeaveNoTrace(t *testing.T) {
	params := testParams()
	params.Limits.Min = amt(10)
	params.Limits.MaxIn = amt(1_000)
	params.Limits.MaxOut = amt(1_000)
	params.Limits.CapIn = amt(1_500)
	params.Limits.CapOut = amt(1_500)

	cases := []struct {
		name string
		call func(e *Engine) error
		want error
	}{
		{
			name: "replayed inbound",
			call: func(e *Engine) error {
				_, err := e.Mint(operatorAddr, user1, amt(1_000), "proof-1")
				return err
			},
			want: ErrRequestAlreadyProcessed,
		},
		{
			name: "below minimum",
			call: func(e *Engine) error {
				_, err := e.Mint(operatorAddr, user1, amt(9), "proof-2")
				return err
			},
			want: ErrAmountBelowMinimum,
		},
		{
			name: "above maximum",
			call: func(e *Engine) error {
				_, err := e.Mint(operatorAddr, user1, amt(1_001), "proof-3")
				return err
			},
			want: ErrAmountExceedsMaximum,
		},
		{
			name: "daily cap",
			call: func(e *Engine) error {
				_, err := e.Mint(operatorAddr, user1, amt(501), "proof-4")
				return err
			},
			want: ErrDailyCapExceeded,
		},
		{
			name: "wrong operator",
			call: func(e *Engine) error {
				_, err := e.Mint(stranger, user1, amt(100), "proof-5")
				return err
			},
			want: ErrUnauthorized,
		},
		{
			name: "empty proof",
			call: func(e *Engine) error {
				_, err := e.Mint(operatorAddr, user1, amt(100), "")
				return err
			},
			want: ErrInvalidExternalProof,
		},
		{
			name: "zero recipient",
			call: func(e *Engine) error {
				_, err := e.Mint(operatorAddr, common.Address{}, amt(100), "proof-6")
				return err
			},
			want: ErrInvalidAddress,
		},
		{
			name: "burn beyond balance after reserving quota",
			call: func(e *Engine) error {
				_, err := e.Burn(operatorAddr, user2, amt(100), "dest-1")
				return err
			},
			want: ErrInsufficientBalance,
		},
		{
			name: "transfer beyond balance",
			call: func(e *Engine) error {
				return e.Transfer(user1, user2, amt(5_000))
			},
			want: ErrInsufficientBalance,
		},
		{
			name: "transferFrom without allowance",
			call: func(e *Engine) error {
				return e.TransferFrom(user2, user1, user2, amt(10))
			},
			want: ErrInsufficientBalance,
		},
		{
			name: "bounds with min above max",
			call: func(e *Engine) error {
				return e.UpdateBounds(adminAddr, amt(2_000), amt(1_000), amt(1_000))
			},
			want: ErrInvalidAmount,
		},
		{
			name: "admin burn beyond balance",
			call: func(e *Engine) error {
				return e.BurnFrom(operatorAddr, user1, amt(1_001))
			},
			want: ErrInsufficientBalance,
		},
		{
			name: "recover more than held",
			call: func(e *Engine) error {
				return e.RecoverForeignAsset(adminAddr, foreignAsset, user1, amt(1))
			},
			want: ErrInsufficientBalance,
		},
		{
			name: "recover own asset",
			call: func(e *Engine) error {
				return e.RecoverForeignAsset(adminAddr, controllerAddr, user1, amt(1))
			},
			want: ErrInvalidAddress,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, params)
			_, err := f.engine.Mint(operatorAddr, user1, amt(1_000), "proof-1")
			require.NoError(t, err)

			before := f.snapshot(t)
			emitted := f.log.Len()

			err = tc.call(f.engine)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, before, f.snapshot(t))
			require.Equal(t, emitted, f.log.Len())
		})
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	f := newFixture(t, testParams())

	steps := []func() error{
		func() error { _, err := f.engine.Mint(operatorAddr, user1, amt(7_000), "p-1"); return err },
		func() error { _, err := f.engine.Mint(operatorAddr, user2, amt(3_000), "p-2"); return err },
		func() error { return f.engine.Transfer(user1, user2, amt(1_500)) },
		func() error { _, err := f.engine.Burn(operatorAddr, user2, amt(4_000), "d-1"); return err },
		func() error { return f.engine.EmergencyMint(operatorAddr, user1, amt(900)) },
		func() error { return f.engine.Approve(user1, user2, amt(2_000)) },
		func() error { return f.engine.TransferFrom(user2, user1, stranger, amt(2_000)) },
		func() error { _, err := f.engine.Burn(operatorAddr, stranger, amt(1_700), "d-2"); return err },
		func() error { return f.engine.BurnFrom(operatorAddr, stranger, amt(300)) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		f.requireConserved(t)
	}

	stats, err := f.engine.Stats()
	require.NoError(t, err)
	require.Equal(t, "10000", stats.TotalWrappedIn.String())
	require.Equal(t, "5700", stats.TotalUnwrappedOut.String())
	require.Equal(t, "900", stats.TotalEmergencyMinted.String())
	require.Equal(t, "300", stats.TotalAdminBurned.String())
	require.Equal(t, "4900", stats.TotalSupply.String())
	require.Equal(t, "4400", f.balance(t, user1).String())
	require.Equal(t, "500", f.balance(t, user2).String())
	require.Equal(t, "0", f.balance(t, stranger).String())

	report, err := f.engine.Audit()
	require.NoError(t, err)
	require.Equal(t, 2, report.Holders)
}

func TestDailyCapWindow(t *testing.T) {
	params := testParams()
	params.Limits = Limits{Min: amt(1), MaxIn: amt(1_000), MaxOut: amt(1_000), CapIn: amt(1_000), CapOut: amt(1_000)}
	f := newFixture(t, params)

	_, err := f.engine.Mint(operatorAddr, user1, amt(500), "half-1")
	require.NoError(t, err)
	_, err = f.engine.Mint(operatorAddr, user1, amt(500), "half-2")
	require.NoError(t, err)

	_, err = f.engine.Mint(operatorAddr, user1, amt(1), "extra")
	require.ErrorIs(t, err, ErrDailyCapExceeded)
	var bridgeErr *Error
	require.True(t, errors.As(err, &bridgeErr))
	require.Equal(t, "1001", bridgeErr.Amount.String())
	require.Equal(t, "1000", bridgeErr.Limit.String())

	// Caps are per account.
	_, err = f.engine.Mint(operatorAddr, user2, amt(500), "other-1")
	require.NoError(t, err)

	today, err := f.engine.Today()
	require.NoError(t, err)
	used, err := f.engine.DailyUsage(user1, DirectionIn, today)
	require.NoError(t, err)
	require.Equal(t, "1000", used.String())

	f.now += 86_400
	_, err = f.engine.Mint(operatorAddr, user1, amt(500), "half-3")
	require.NoError(t, err)
	used, err = f.engine.DailyUsage(user1, DirectionIn, today+1)
	require.NoError(t, err)
	require.Equal(t, "500", used.String())

	// Outbound usage is tracked separately from inbound.
	_, err = f.engine.Burn(operatorAddr, user1, amt(1_000), "out-1")
	require.NoError(t, err)
	_, err = f.engine.Burn(operatorAddr, user1, amt(1), "out-2")
	require.ErrorIs(t, err, ErrDailyCapExceeded)
}

func TestBoundEnforcement(t *testing.T) {
	params := testParams()
	params.Limits.Min = amt(100)
	params.Limits.MaxIn = amt(1_000)
	params.Limits.MaxOut = amt(800)
	f := newFixture(t, params)

	_, err := f.engine.Mint(operatorAddr, user1, amt(99), "b-1")
	require.ErrorIs(t, err, ErrAmountBelowMinimum)
	_, err = f.engine.Mint(operatorAddr, user1, amt(1_001), "b-2")
	require.ErrorIs(t, err, ErrAmountExceedsMaximum)
	_, err = f.engine.Mint(operatorAddr, user1, amt(100), "b-3")
	require.NoError(t, err)
	_, err = f.engine.Mint(operatorAddr, user1, amt(1_000), "b-4")
	require.NoError(t, err)

	_, err = f.engine.Burn(operatorAddr, user1, amt(801), "o-1")
	require.ErrorIs(t, err, ErrAmountExceedsMaximum)
	_, err = f.engine.Burn(operatorAddr, user1, amt(800), "o-2")
	require.NoError(t, err)

	_, err = f.engine.Mint(operatorAddr, user1, amt(0), "b-5")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPauseGating(t *testing.T) {
	f := newFixture(t, testParams())
	_, err := f.engine.Mint(operatorAddr, user1, amt(5_000), "pre-1")
	require.NoError(t, err)
	require.NoError(t, f.engine.Approve(user1, user2, amt(1_000)))

	require.NoError(t, f.engine.Pause(adminAddr))
	paused, err := f.engine.Paused()
	require.NoError(t, err)
	require.True(t, paused)
	require.Len(t, f.log.OfType(events.TypeBridgePaused), 1)

	_, err = f.engine.Mint(operatorAddr, user1, amt(100), "p-1")
	require.ErrorIs(t, err, ErrOperationsPaused)
	_, err = f.engine.Burn(operatorAddr, user1, amt(100), "d-1")
	require.ErrorIs(t, err, ErrOperationsPaused)
	require.ErrorIs(t, f.engine.EmergencyMint(operatorAddr, user1, amt(100)), ErrOperationsPaused)
	require.ErrorIs(t, f.engine.BurnFrom(operatorAddr, user1, amt(100)), ErrOperationsPaused)
	require.ErrorIs(t, f.engine.Transfer(user1, user2, amt(100)), ErrOperationsPaused)
	require.ErrorIs(t, f.engine.Approve(user1, user2, amt(100)), ErrOperationsPaused)
	require.ErrorIs(t, f.engine.TransferFrom(user2, user1, user2, amt(100)), ErrOperationsPaused)
	require.ErrorIs(t, f.engine.Pause(adminAddr), ErrOperationsPaused)

	// Administration stays available while paused.
	require.NoError(t, f.engine.UpdateDailyCaps(adminAddr, amt(2_000_000_000_000), amt(2_000_000_000_000)))

	require.NoError(t, f.engine.Unpause(adminAddr))
	require.Len(t, f.log.OfType(events.TypeBridgeUnpaused), 1)
	require.NoError(t, f.engine.Unpause(adminAddr))
	require.Len(t, f.log.OfType(events.TypeBridgeUnpaused), 1)

	_, err = f.engine.Mint(operatorAddr, user1, amt(100), "p-1")
	require.NoError(t, err)
	_, err = f.engine.Burn(operatorAddr, user1, amt(100), "d-1")
	require.NoError(t, err)
	require.NoError(t, f.engine.Transfer(user1, user2, amt(100)))
	require.NoError(t, f.engine.TransferFrom(user2, user1, user2, amt(100)))
}

func TestRoleGating(t *testing.T) {
	f := newFixture(t, testParams())
	_, err := f.engine.Mint(operatorAddr, user1, amt(1_000), "seed")
	require.NoError(t, err)

	_, err = f.engine.Mint(stranger, user1, amt(100), "r-1")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.engine.Mint(adminAddr, user1, amt(100), "r-2")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.engine.Burn(user1, user1, amt(100), "r-3")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, f.engine.EmergencyMint(stranger, user1, amt(1)), ErrUnauthorized)
	require.ErrorIs(t, f.engine.BurnFrom(adminAddr, user1, amt(1)), ErrUnauthorized)
	require.ErrorIs(t, f.engine.BurnFrom(user1, user1, amt(1)), ErrUnauthorized)
	require.ErrorIs(t, f.engine.RecordForeignDeposit(adminAddr, foreignAsset, amt(1), "tx-1"), ErrUnauthorized)

	adminOnly := map[string]func(common.Address) error{
		"setOperator":          func(c common.Address) error { return f.engine.SetOperator(c, user2) },
		"setAdministrator":     func(c common.Address) error { return f.engine.SetAdministrator(c, user2) },
		"setEmergencyRecovery": func(c common.Address) error { return f.engine.SetEmergencyRecovery(c, user2) },
		"updateBounds":         func(c common.Address) error { return f.engine.UpdateBounds(c, amt(2), amt(10), amt(10)) },
		"updateDailyCaps":      func(c common.Address) error { return f.engine.UpdateDailyCaps(c, amt(20), amt(20)) },
		"pause":                func(c common.Address) error { return f.engine.Pause(c) },
		"unpause":              func(c common.Address) error { return f.engine.Unpause(c) },
		"recover":              func(c common.Address) error { return f.engine.RecoverForeignAsset(c, foreignAsset, user2, amt(1)) },
	}
	for name, call := range adminOnly {
		for _, caller := range []common.Address{operatorAddr, stranger, {}} {
			err := call(caller)
			require.ErrorIs(t, err, ErrUnauthorized, "%s by %s", name, caller.Hex())
			var bridgeErr *Error
			require.True(t, errors.As(err, &bridgeErr))
			require.Equal(t, TierAuthorization, bridgeErr.Tier())
			require.NotNil(t, bridgeErr.Address)
			require.Equal(t, caller, *bridgeErr.Address)
		}
	}
}

func TestRoleChanges(t *testing.T) {
	f := newFixture(t, testParams())

	require.ErrorIs(t, f.engine.SetOperator(adminAddr, common.Address{}), ErrInvalidAddress)
	require.ErrorIs(t, f.engine.SetOperator(adminAddr, operatorAddr), ErrInvalidAddress)

	require.NoError(t, f.engine.SetOperator(adminAddr, user2))
	changed := f.log.OfType(events.TypeBridgeOperatorChanged)
	require.Len(t, changed, 1)
	require.Equal(t, operatorAddr, changed[0].(events.RoleChanged).Old)
	require.Equal(t, user2, changed[0].(events.RoleChanged).New)

	_, err := f.engine.Mint(operatorAddr, user1, amt(100), "x-1")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.engine.Mint(user2, user1, amt(100), "x-1")
	require.NoError(t, err)

	isOperator, err := f.engine.IsOperator(user2)
	require.NoError(t, err)
	require.True(t, isOperator)

	require.NoError(t, f.engine.SetEmergencyRecovery(adminAddr, stranger))
	isRecovery, err := f.engine.IsEmergencyRecovery(stranger)
	require.NoError(t, err)
	require.True(t, isRecovery)

	require.NoError(t, f.engine.SetAdministrator(adminAddr, stranger))
	require.ErrorIs(t, f.engine.Pause(adminAddr), ErrUnauthorized)
	require.NoError(t, f.engine.Pause(stranger))
	isAdmin, err := f.engine.IsAdministrator(adminAddr)
	require.NoError(t, err)
	require.False(t, isAdmin)
}

func TestOutboundModes(t *testing.T) {
	t.Run("self", func(t *testing.T) {
		params := testParams()
		params.OutboundMode = OutboundModeSelf
		f := newFixture(t, params)
		_, err := f.engine.Mint(operatorAddr, user1, amt(1_000), "seed")
		require.NoError(t, err)

		_, err = f.engine.Burn(operatorAddr, user1, amt(100), "d-1")
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = f.engine.Burn(user2, user1, amt(100), "d-1")
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = f.engine.Burn(user1, user1, amt(100), "d-1")
		require.NoError(t, err)
	})
	t.Run("either", func(t *testing.T) {
		params := testParams()
		params.OutboundMode = OutboundModeEither
		f := newFixture(t, params)
		_, err := f.engine.Mint(operatorAddr, user1, amt(1_000), "seed")
		require.NoError(t, err)

		_, err = f.engine.Burn(user2, user1, amt(100), "d-1")
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = f.engine.Burn(user1, user1, amt(100), "d-1")
		require.NoError(t, err)
		_, err = f.engine.Burn(operatorAddr, user1, amt(100), "d-2")
		require.NoError(t, err)
	})
}

func TestEmergencyMintBypassesPolicy(t *testing.T) {
	params := testParams()
	params.Limits = Limits{Min: amt(10), MaxIn: amt(100), MaxOut: amt(100), CapIn: amt(100), CapOut: amt(100)}
	f := newFixture(t, params)

	require.NoError(t, f.engine.EmergencyMint(operatorAddr, user1, amt(5_000)))
	require.NoError(t, f.engine.EmergencyMint(operatorAddr, user1, amt(5_000)))
	require.Equal(t, "10000", f.balance(t, user1).String())

	require.ErrorIs(t, f.engine.EmergencyMint(operatorAddr, common.Address{}, amt(1)), ErrInvalidAddress)
	require.ErrorIs(t, f.engine.EmergencyMint(operatorAddr, user1, amt(0)), ErrInvalidAmount)

	stats, err := f.engine.Stats()
	require.NoError(t, err)
	require.Equal(t, "10000", stats.TotalEmergencyMinted.String())
	require.Equal(t, "0", stats.TotalWrappedIn.String())
	require.Len(t, f.log.OfType(events.TypeBridgeEmergencyMinted), 2)
	f.requireConserved(t)
}

func TestAdminBurnReducesSupply(t *testing.T) {
	params := testParams()
	params.Limits = Limits{Min: amt(10), MaxIn: amt(1_000), MaxOut: amt(100), CapIn: amt(1_000), CapOut: amt(100)}
	f := newFixture(t, params)
	_, err := f.engine.Mint(operatorAddr, user1, amt(1_000), "seed")
	require.NoError(t, err)

	// Outside the outbound bounds and caps, and repeatable.
	require.NoError(t, f.engine.BurnFrom(operatorAddr, user1, amt(400)))
	require.NoError(t, f.engine.BurnFrom(operatorAddr, user1, amt(400)))
	require.NoError(t, f.engine.BurnFrom(operatorAddr, user1, amt(5)))
	require.Equal(t, "195", f.balance(t, user1).String())

	stats, err := f.engine.Stats()
	require.NoError(t, err)
	require.Equal(t, "195", stats.TotalSupply.String())
	require.Equal(t, "805", stats.TotalAdminBurned.String())
	require.Equal(t, "0", stats.TotalUnwrappedOut.String())
	today, err := f.engine.Today()
	require.NoError(t, err)
	used, err := f.engine.DailyUsage(user1, DirectionOut, today)
	require.NoError(t, err)
	require.Equal(t, "0", used.String())

	burned := f.log.OfType(events.TypeBridgeAdminBurned)
	require.Len(t, burned, 3)
	last := burned[2].(events.AdminBurned)
	require.Equal(t, operatorAddr, last.Operator)
	require.Equal(t, events.SupplyReasonAdminBurn, last.Reason)
	require.Equal(t, "-5", last.Delta.String())
	require.Equal(t, "805", last.AdminBurned.String())

	require.ErrorIs(t, f.engine.BurnFrom(operatorAddr, common.Address{}, amt(1)), ErrInvalidAddress)
	require.ErrorIs(t, f.engine.BurnFrom(operatorAddr, user1, amt(0)), ErrInvalidAmount)
	f.requireConserved(t)
}

func TestAuditFlagsUnaccountedAdminBurn(t *testing.T) {
	report := AuditReport{
		BalanceSum:   amt(700),
		TotalSupply:  amt(700),
		WrappedIn:    amt(1_000),
		UnwrappedOut: amt(200),
		AdminBurned:  amt(100),
	}
	require.True(t, report.Balanced())
	report.AdminBurned = nil
	require.False(t, report.Balanced())
}

func TestCountersWithoutAdminBurnDecode(t *testing.T) {
	db := storage.NewMemDB()
	_, err := NewEngine(db, testParams())
	require.NoError(t, err)
	legacy := struct {
		TotalSupply  *big.Int
		WrappedIn    *big.Int
		UnwrappedOut *big.Int
		Emergency    *big.Int
	}{amt(5), amt(5), amt(0), amt(0)}
	encoded, err := rlp.EncodeToBytes(legacy)
	require.NoError(t, err)
	require.NoError(t, db.Put(countersKey, encoded))

	engine, err := OpenEngine(db)
	require.NoError(t, err)
	stats, err := engine.Stats()
	require.NoError(t, err)
	require.Equal(t, "5", stats.TotalSupply.String())
	require.Equal(t, "0", stats.TotalAdminBurned.String())
}

func TestRecoverForeignAsset(t *testing.T) {
	f := newFixture(t, testParams())
	require.NoError(t, f.engine.RecordForeignDeposit(operatorAddr, foreignAsset, amt(1_000), "0xfeed:0"))
	require.ErrorIs(t, f.engine.RecordForeignDeposit(operatorAddr, foreignAsset, amt(1_000), "0xfeed:0"), ErrRequestAlreadyProcessed)
	require.ErrorIs(t, f.engine.RecordForeignDeposit(operatorAddr, controllerAddr, amt(1), "0xfeed:1"), ErrInvalidAddress)

	require.ErrorIs(t, f.engine.RecoverForeignAsset(adminAddr, controllerAddr, user1, amt(1)), ErrInvalidAddress)
	require.ErrorIs(t, f.engine.RecoverForeignAsset(adminAddr, common.Address{}, user1, amt(1)), ErrInvalidAddress)
	require.ErrorIs(t, f.engine.RecoverForeignAsset(adminAddr, foreignAsset, user1, amt(1_001)), ErrInsufficientBalance)

	require.NoError(t, f.engine.RecoverForeignAsset(adminAddr, foreignAsset, user2, amt(400)))
	held, err := f.engine.ForeignHolding(foreignAsset)
	require.NoError(t, err)
	require.Equal(t, "600", held.String())

	// A zero recipient falls back to the emergency-recovery address, even while paused.
	require.NoError(t, f.engine.Pause(adminAddr))
	require.NoError(t, f.engine.RecordForeignDeposit(operatorAddr, foreignAsset, amt(50), "0xfeed:2"))
	require.NoError(t, f.engine.RecoverForeignAsset(adminAddr, foreignAsset, common.Address{}, amt(100)))
	held, err = f.engine.ForeignHolding(foreignAsset)
	require.NoError(t, err)
	require.Equal(t, "550", held.String())

	recovered := f.log.OfType(events.TypeBridgeForeignAssetRecovered)
	require.Len(t, recovered, 2)
	require.Equal(t, user2, recovered[0].(events.ForeignAssetRecovered).To)
	require.Equal(t, "400", recovered[0].(events.ForeignAssetRecovered).Amount.String())
	require.Equal(t, recoveryAddr, recovered[1].(events.ForeignAssetRecovered).To)
	deposits := f.log.OfType(events.TypeBridgeForeignDepositRecorded)
	require.Len(t, deposits, 2)
	require.Equal(t, "1050", deposits[1].(events.ForeignDepositRecorded).Held.String())

	// Foreign holdings never touch the wrapped supply.
	stats, err := f.engine.Stats()
	require.NoError(t, err)
	require.Equal(t, "0", stats.TotalSupply.String())
	f.requireConserved(t)
}

func TestForeignHoldingsSurviveReopen(t *testing.T) {
	f := newFixture(t, testParams())
	require.NoError(t, f.engine.RecordForeignDeposit(operatorAddr, foreignAsset, amt(75), "0xbeef:0"))

	reopened, err := OpenEngine(f.db)
	require.NoError(t, err)
	held, err := reopened.ForeignHolding(foreignAsset)
	require.NoError(t, err)
	require.Equal(t, "75", held.String())
	require.NoError(t, reopened.RecoverForeignAsset(adminAddr, foreignAsset, user1, amt(75)))
	require.ErrorIs(t, reopened.RecordForeignDeposit(operatorAddr, foreignAsset, amt(75), "0xbeef:0"), ErrRequestAlreadyProcessed)
}

func TestRecoverWithoutRecoveryAddress(t *testing.T) {
	params := testParams()
	params.EmergencyRecovery = common.Address{}
	f := newFixture(t, params)
	require.NoError(t, f.engine.RecordForeignDeposit(operatorAddr, foreignAsset, amt(10), "0xabc:0"))

	require.ErrorIs(t, f.engine.RecoverForeignAsset(adminAddr, foreignAsset, common.Address{}, amt(1)), ErrInvalidAddress)
}

func TestReentrantCallRejected(t *testing.T) {
	f := newFixture(t, testParams())

	var nested error
	calls := 0
	f.engine.SetEmitter(events.EmitterFunc(func(evt events.Event) {
		if evt.EventType() != events.TypeBridgeMinted {
			return
		}
		calls++
		_, nested = f.engine.Mint(operatorAddr, user1, amt(1), "nested")
	}))

	_, err := f.engine.Mint(operatorAddr, user1, amt(100), "outer")
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.ErrorIs(t, nested, ErrReentrantCall)
	require.Equal(t, "100", f.balance(t, user1).String())

	// The guard is released once the outer call returns.
	f.engine.SetEmitter(nil)
	_, err = f.engine.Mint(operatorAddr, user1, amt(1), "nested")
	require.NoError(t, err)
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	f := newFixture(t, testParams())
	_, err := f.engine.Mint(operatorAddr, user1, amt(1_000), "seed")
	require.NoError(t, err)

	require.NoError(t, f.engine.Approve(user1, user2, amt(300)))
	require.NoError(t, f.engine.TransferFrom(user2, user1, stranger, amt(200)))
	allowance, err := f.engine.Allowance(user1, user2)
	require.NoError(t, err)
	require.Equal(t, "100", allowance.String())

	require.ErrorIs(t, f.engine.TransferFrom(user2, user1, stranger, amt(101)), ErrInsufficientBalance)
	require.NoError(t, f.engine.Approve(user1, user2, amt(0)))
	require.ErrorIs(t, f.engine.TransferFrom(user2, user1, stranger, amt(1)), ErrInsufficientBalance)

	require.Equal(t, "800", f.balance(t, user1).String())
	require.Equal(t, "200", f.balance(t, stranger).String())
	require.Len(t, f.log.OfType(events.TypeTokenApproval), 2)
	require.Len(t, f.log.OfType(events.TypeTokenTransfer), 1)
}

func TestUpdateBoundsAndCaps(t *testing.T) {
	f := newFixture(t, testParams())

	require.ErrorIs(t, f.engine.UpdateBounds(adminAddr, amt(0), amt(10), amt(10)), ErrInvalidAmount)
	require.ErrorIs(t, f.engine.UpdateBounds(adminAddr, amt(1), nil, amt(10)), ErrInvalidAmount)
	require.ErrorIs(t, f.engine.UpdateBounds(adminAddr, amt(11), amt(10), amt(20)), ErrInvalidAmount)
	require.ErrorIs(t, f.engine.UpdateDailyCaps(adminAddr, amt(0), amt(10)), ErrInvalidAmount)

	require.NoError(t, f.engine.UpdateBounds(adminAddr, amt(5), amt(50), amt(40)))
	require.NoError(t, f.engine.UpdateDailyCaps(adminAddr, amt(60), amt(45)))
	require.ErrorIs(t, f.engine.UpdateDailyCaps(adminAddr, amt(4), amt(45)), ErrInvalidAmount)

	limits, err := f.engine.Limits()
	require.NoError(t, err)
	require.Equal(t, "5", limits.Min.String())
	require.Equal(t, "50", limits.MaxIn.String())
	require.Equal(t, "40", limits.MaxOut.String())
	require.Equal(t, "60", limits.CapIn.String())
	require.Equal(t, "45", limits.CapOut.String())

	require.Len(t, f.log.OfType(events.TypeBridgeBoundsUpdated), 1)
	require.Len(t, f.log.OfType(events.TypeBridgeDailyCapsUpdated), 1)

	_, err = f.engine.Mint(operatorAddr, user1, amt(51), "after-1")
	require.ErrorIs(t, err, ErrAmountExceedsMaximum)
	_, err = f.engine.Mint(operatorAddr, user1, amt(50), "after-2")
	require.NoError(t, err)
	_, err = f.engine.Mint(operatorAddr, user1, amt(11), "after-3")
	require.ErrorIs(t, err, ErrDailyCapExceeded)
}

func TestNewEngineValidatesParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"zero administrator", func(p *Params) { p.Administrator = common.Address{} }, ErrInvalidAddress},
		{"zero operator", func(p *Params) { p.Operator = common.Address{} }, ErrInvalidAddress},
		{"zero controller", func(p *Params) { p.Controller = common.Address{} }, ErrInvalidAddress},
		{"zero chain", func(p *Params) { p.ChainID = 0 }, ErrInvalidAmount},
		{"zero minimum", func(p *Params) { p.Limits.Min = amt(0) }, ErrInvalidAmount},
		{"missing cap", func(p *Params) { p.Limits.CapOut = nil }, ErrInvalidAmount},
		{"min above max", func(p *Params) { p.Limits.Min = amt(200_000_000_000) }, ErrInvalidAmount},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			params := testParams()
			tc.mutate(&params)
			_, err := NewEngine(storage.NewMemDB(), params)
			require.ErrorIs(t, err, tc.want)
		})
	}

	params := testParams()
	params.OutboundMode = "sideways"
	_, err := NewEngine(storage.NewMemDB(), params)
	require.Error(t, err)
}

func TestOpenEngine(t *testing.T) {
	db := storage.NewMemDB()
	_, err := OpenEngine(db)
	require.ErrorIs(t, err, ErrNotInitialised)

	engine, err := NewEngine(db, testParams())
	require.NoError(t, err)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	_, err = engine.Mint(operatorAddr, user1, amt(42), "persisted")
	require.NoError(t, err)

	_, err = NewEngine(db, testParams())
	require.ErrorIs(t, err, ErrAlreadyInitialised)

	reopened, err := OpenEngine(db)
	require.NoError(t, err)
	balance, err := reopened.BalanceOf(user1)
	require.NoError(t, err)
	require.Equal(t, "42", balance.String())
	params, err := reopened.Params()
	require.NoError(t, err)
	require.Equal(t, OutboundModeOperator, params.OutboundMode)

	encoded, err := rlp.EncodeToBytes(SchemaVersion + 1)
	require.NoError(t, err)
	require.NoError(t, db.Put(schemaKey, encoded))
	_, err = OpenEngine(db)
	require.ErrorIs(t, err, ErrSchemaVersion)
}

func TestEngineOnLevelDB(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	engine, err := NewEngine(db, testParams())
	require.NoError(t, err)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	fp, err := engine.Mint(operatorAddr, user1, amt(10_000_000_000), "proof-1")
	require.NoError(t, err)
	db.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()
	engine, err = OpenEngine(db)
	require.NoError(t, err)
	seen, err := engine.IsProcessed(fp)
	require.NoError(t, err)
	require.True(t, seen)
	report, err := engine.Audit()
	require.NoError(t, err)
	require.True(t, report.Balanced())
	require.Equal(t, 1, report.Holders)
}

func TestExternalRefValidation(t *testing.T) {
	long := make([]byte, MaxExternalRefLength+1)
	for i := range long {
		long[i] = 'a'
	}
	cases := map[string]bool{
		"proof-1":                  true,
		"0xabc:17":                 true,
		"":                         false,
		" proof":                   false,
		"proof\n":                  false,
		"pro\x00of":                false,
		string(long):               false,
		string(long[:len(long)-1]): true,
		"\xff\xfe":                 false,
	}
	for ref, ok := range cases {
		err := validateExternalRef(ref, "proof")
		if ok {
			require.NoError(t, err, "%q", ref)
			continue
		}
		require.ErrorIs(t, err, ErrInvalidExternalProof, "%q", ref)
	}
}
