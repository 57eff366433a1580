package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"wacgbridge/core/events"
)

// foreignDepositID keys a booked foreign deposit by asset and transfer
// reference so a relay retry cannot book it twice.
func foreignDepositID(asset common.Address, ref string) common.Hash {
	return crypto.Keccak256Hash(asset.Bytes(), []byte(ref))
}

// RecordForeignDeposit books amount of a foreign asset received by the
// controller address, identified by the transfer reference ref. Operator
// only. It stays available while paused so holdings can be booked before a
// recovery.
func (e *Engine) RecordForeignDeposit(caller, asset common.Address, amount *big.Int, ref string) error {
	return e.execute(func(c *call) error {
		if err := c.access.requireOperator(caller); err != nil {
			return err
		}
		if err := requireForeignAsset(asset, c.params.Controller); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		if err := validateExternalRef(ref, "deposit reference"); err != nil {
			return err
		}
		id := foreignDepositID(asset, ref)
		seen, err := c.st.depositRecorded(id)
		if err != nil {
			return err
		}
		if seen {
			return newError(KindRequestAlreadyProcessed, "deposit %s already booked", ref).withFingerprint(id)
		}
		held, err := c.st.foreign(asset)
		if err != nil {
			return err
		}
		held.Add(held, amount)
		if !fitsUint256(held) {
			return newError(KindInvalidAmount, "holding would exceed uint256").withAddress(asset).withAmounts(amount, nil)
		}
		if err := c.st.putForeign(asset, held); err != nil {
			return err
		}
		if err := c.st.putDeposit(id, c.now); err != nil {
			return err
		}
		c.record(events.ForeignDepositRecorded{Asset: asset, Amount: new(big.Int).Set(amount), Ref: ref, Held: new(big.Int).Set(held)})
		return nil
	})
}

// RecoverForeignAsset sends amount of a foreign asset held by the controller
// to to. The controller's own asset can never be recovered, so user balances
// stay out of reach of the administrator. A zero to falls back to the
// emergency-recovery address. Recovery stays available while paused.
func (e *Engine) RecoverForeignAsset(caller, asset, to common.Address, amount *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.access.requireAdministrator(caller); err != nil {
			return err
		}
		if err := requireForeignAsset(asset, c.params.Controller); err != nil {
			return err
		}
		if to == (common.Address{}) {
			to = c.params.EmergencyRecovery
		}
		if err := requireAddress(to, "recovery recipient"); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		held, err := c.st.foreign(asset)
		if err != nil {
			return err
		}
		if held.Cmp(amount) < 0 {
			return newError(KindInsufficientBalance, "controller holds %s of %s", held, asset.Hex()).
				withAddress(asset).withAmounts(amount, held)
		}
		if err := c.st.putForeign(asset, new(big.Int).Sub(held, amount)); err != nil {
			return err
		}
		c.record(events.ForeignAssetRecovered{Asset: asset, To: to, Amount: new(big.Int).Set(amount)})
		return nil
	})
}

// ForeignHolding returns the booked amount of asset held by the controller.
func (e *Engine) ForeignHolding(asset common.Address) (*big.Int, error) {
	var out *big.Int
	err := e.read(func(st *state, _ Params) error {
		held, err := st.foreign(asset)
		out = held
		return err
	})
	return out, err
}

func requireForeignAsset(asset, controller common.Address) error {
	if err := requireAddress(asset, "asset"); err != nil {
		return err
	}
	if asset == controller {
		return newError(KindInvalidAddress, "wrapped asset is not a foreign holding").withAddress(asset)
	}
	return nil
}
