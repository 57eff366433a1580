package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"wacgbridge/core/events"
)

// Transfer moves amount of the caller's balance to to.
func (e *Engine) Transfer(caller, to common.Address, amount *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := requireAddress(caller, "sender"); err != nil {
			return err
		}
		if err := requireAddress(to, "recipient"); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		if err := c.ledger().move(caller, to, amount); err != nil {
			return err
		}
		c.record(events.Transfer{From: caller, To: to, Amount: new(big.Int).Set(amount)})
		return nil
	})
}

// Approve sets the amount spender may move on behalf of the caller. A zero
// amount revokes the allowance.
func (e *Engine) Approve(caller, spender common.Address, amount *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := requireAddress(caller, "owner"); err != nil {
			return err
		}
		if err := requireAddress(spender, "spender"); err != nil {
			return err
		}
		if amount == nil || amount.Sign() < 0 || !fitsUint256(amount) {
			return newError(KindInvalidAmount, "allowance must be within uint256").withAmounts(amount, nil)
		}
		if err := c.ledger().approve(caller, spender, amount); err != nil {
			return err
		}
		c.record(events.Approval{Owner: caller, Spender: spender, Amount: new(big.Int).Set(amount)})
		return nil
	})
}

// TransferFrom moves amount from from to to, consuming the allowance from
// granted to the caller.
func (e *Engine) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	return e.execute(func(c *call) error {
		if err := c.pause.guard(); err != nil {
			return err
		}
		if err := requireAddress(from, "owner"); err != nil {
			return err
		}
		if err := requireAddress(to, "recipient"); err != nil {
			return err
		}
		if err := requireAmount(amount); err != nil {
			return err
		}
		l := c.ledger()
		if err := l.spendAllowance(from, caller, amount); err != nil {
			return err
		}
		if err := l.move(from, to, amount); err != nil {
			return err
		}
		c.record(events.Transfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
		return nil
	})
}
