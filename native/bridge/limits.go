package bridge

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "wacgbridge/native/common"
)

// limitPolicy enforces per-operation bounds and per-account daily caps. The
// usage increment of checkAndReserve is staged in the call state and only
// persists if the whole call commits.
type limitPolicy struct {
	st     *state
	limits Limits
}

func (p limitPolicy) checkBounds(d Direction, amount *big.Int) error {
	if p.limits.Min != nil && amount.Cmp(p.limits.Min) < 0 {
		return newError(KindAmountBelowMinimum, "amount %s below minimum %s", amount, p.limits.Min).
			withAmounts(amount, p.limits.Min)
	}
	if ceiling := p.limits.MaxFor(d); ceiling != nil && amount.Cmp(ceiling) > 0 {
		return newError(KindAmountExceedsMaximum, "amount %s exceeds %s maximum %s", amount, d, ceiling).
			withAmounts(amount, ceiling)
	}
	return nil
}

func (p limitPolicy) checkAndReserve(account common.Address, d Direction, amount *big.Int, day uint64) error {
	if err := p.checkBounds(d, amount); err != nil {
		return err
	}
	used, err := p.st.usage(d, day, account)
	if err != nil {
		return err
	}
	capAmount := p.limits.CapFor(d)
	next, err := nativecommon.CheckDailyQuota(capAmount, day, nativecommon.DailyQuota{Day: day, Used: used}, amount)
	if errors.Is(err, nativecommon.ErrQuotaCapExceeded) {
		projected := new(big.Int).Add(used, amount)
		return newError(KindDailyCapExceeded, "daily %s cap %s exceeded", d, capAmount).
			withAddress(account).withAmounts(projected, capAmount)
	}
	if err != nil {
		return newError(KindInvalidAmount, "%v", err).withAmounts(amount, nil)
	}
	return p.st.putUsage(d, day, account, next.Used)
}

func validateBounds(minimum, maxIn, maxOut *big.Int) error {
	for _, v := range []*big.Int{minimum, maxIn, maxOut} {
		if v == nil || v.Sign() <= 0 {
			return newError(KindInvalidAmount, "bounds must be non-zero")
		}
		if !fitsUint256(v) {
			return newError(KindInvalidAmount, "bound exceeds uint256").withAmounts(v, nil)
		}
	}
	if minimum.Cmp(maxIn) > 0 {
		return newError(KindInvalidAmount, "minimum %s above inbound maximum %s", minimum, maxIn).withAmounts(minimum, maxIn)
	}
	if minimum.Cmp(maxOut) > 0 {
		return newError(KindInvalidAmount, "minimum %s above outbound maximum %s", minimum, maxOut).withAmounts(minimum, maxOut)
	}
	return nil
}

func validateCaps(minimum, capIn, capOut *big.Int) error {
	for _, v := range []*big.Int{capIn, capOut} {
		if v == nil || v.Sign() <= 0 {
			return newError(KindInvalidAmount, "daily caps must be non-zero")
		}
		if !fitsUint256(v) {
			return newError(KindInvalidAmount, "daily cap exceeds uint256").withAmounts(v, nil)
		}
		if minimum != nil && v.Cmp(minimum) < 0 {
			return newError(KindInvalidAmount, "daily cap %s below minimum %s", v, minimum).withAmounts(v, minimum)
		}
	}
	return nil
}
