package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// supplyReason selects which cumulative counter a supply change feeds.
type supplyReason uint8

const (
	reasonWrap supplyReason = iota + 1
	reasonUnwrap
	reasonEmergency
	reasonAdminBurn
)

// ledger is the only component that moves value. Every method stages its
// writes in the call state; a failing method stages nothing.
type ledger struct {
	st *state
}

func (l ledger) balanceOf(addr common.Address) (*big.Int, error) {
	return l.st.balance(addr)
}

// credit mints amount to account and advances the counter for reason.
func (l ledger) credit(account common.Address, amount *big.Int, reason supplyReason) (storedCounters, error) {
	counters, err := l.st.counters()
	if err != nil {
		return storedCounters{}, err
	}
	balance, err := l.st.balance(account)
	if err != nil {
		return storedCounters{}, err
	}
	nextSupply := new(big.Int).Add(counters.TotalSupply, amount)
	if !fitsUint256(nextSupply) {
		return storedCounters{}, newError(KindInvalidAmount, "total supply would exceed uint256").withAmounts(amount, nil)
	}
	counters.TotalSupply = nextSupply
	switch reason {
	case reasonEmergency:
		counters.Emergency.Add(counters.Emergency, amount)
	default:
		counters.WrappedIn.Add(counters.WrappedIn, amount)
	}
	if err := l.st.putBalance(account, new(big.Int).Add(balance, amount)); err != nil {
		return storedCounters{}, err
	}
	if err := l.st.putCounters(counters); err != nil {
		return storedCounters{}, err
	}
	return counters, nil
}

// debit burns amount from account and advances the counter for reason.
func (l ledger) debit(account common.Address, amount *big.Int, reason supplyReason) (storedCounters, error) {
	balance, err := l.st.balance(account)
	if err != nil {
		return storedCounters{}, err
	}
	if balance.Cmp(amount) < 0 {
		return storedCounters{}, newError(KindInsufficientBalance, "balance %s below %s", balance, amount).
			withAddress(account).withAmounts(amount, balance)
	}
	counters, err := l.st.counters()
	if err != nil {
		return storedCounters{}, err
	}
	if counters.TotalSupply.Cmp(amount) < 0 {
		return storedCounters{}, newError(KindInsufficientBalance, "total supply %s below %s", counters.TotalSupply, amount).
			withAmounts(amount, counters.TotalSupply)
	}
	counters.TotalSupply.Sub(counters.TotalSupply, amount)
	switch reason {
	case reasonAdminBurn:
		counters.AdminBurned.Add(counters.AdminBurned, amount)
	default:
		counters.UnwrappedOut.Add(counters.UnwrappedOut, amount)
	}
	if err := l.st.putBalance(account, new(big.Int).Sub(balance, amount)); err != nil {
		return storedCounters{}, err
	}
	if err := l.st.putCounters(counters); err != nil {
		return storedCounters{}, err
	}
	return counters, nil
}

// move shifts amount between two holders without touching supply.
func (l ledger) move(from, to common.Address, amount *big.Int) error {
	fromBalance, err := l.st.balance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return newError(KindInsufficientBalance, "balance %s below %s", fromBalance, amount).
			withAddress(from).withAmounts(amount, fromBalance)
	}
	if from == to {
		return nil
	}
	toBalance, err := l.st.balance(to)
	if err != nil {
		return err
	}
	if err := l.st.putBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.st.putBalance(to, new(big.Int).Add(toBalance, amount))
}

func (l ledger) allowance(owner, spender common.Address) (*big.Int, error) {
	return l.st.allowance(owner, spender)
}

func (l ledger) approve(owner, spender common.Address, amount *big.Int) error {
	return l.st.putAllowance(owner, spender, new(big.Int).Set(amount))
}

// spendAllowance consumes amount of the allowance owner granted to spender.
func (l ledger) spendAllowance(owner, spender common.Address, amount *big.Int) error {
	current, err := l.st.allowance(owner, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return newError(KindInsufficientBalance, "allowance %s below %s", current, amount).
			withAddress(spender).withAmounts(amount, current)
	}
	return l.st.putAllowance(owner, spender, new(big.Int).Sub(current, amount))
}
