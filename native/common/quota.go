package common

import (
	"errors"
	"math/big"
)

// SecondsPerDay is the width of one quota window.
const SecondsPerDay int64 = 86400

var (
	ErrQuotaCapExceeded      = errors.New("quota daily cap exceeded")
	ErrQuotaNegativeAmount   = errors.New("quota amount must not be negative")
	ErrQuotaInvalidTimestamp = errors.New("quota timestamp must not be negative")
)

// DayIndex maps a unix timestamp onto its quota window. A new index starts
// from zero usage without any explicit reset.
func DayIndex(timestamp int64) (uint64, error) {
	if timestamp < 0 {
		return 0, ErrQuotaInvalidTimestamp
	}
	return uint64(timestamp / SecondsPerDay), nil
}

// DailyQuota tracks cumulative usage for one account and operation kind
// within a single day window.
type DailyQuota struct {
	Day  uint64
	Used *big.Int
}

// CheckDailyQuota verifies whether add fits under capAmount given the usage
// recorded in prev. Usage recorded for an earlier day is discarded. The returned
// DailyQuota reflects the updated counter when the cap is not exceeded; on
// failure prev is returned untouched. A nil or zero cap disables the check.
func CheckDailyQuota(capAmount *big.Int, day uint64, prev DailyQuota, add *big.Int) (DailyQuota, error) {
	if add == nil || add.Sign() < 0 {
		return prev, ErrQuotaNegativeAmount
	}
	used := big.NewInt(0)
	if prev.Day == day && prev.Used != nil {
		used.Set(prev.Used)
	}
	next := DailyQuota{Day: day, Used: used.Add(used, add)}
	if capAmount != nil && capAmount.Sign() > 0 && next.Used.Cmp(capAmount) > 0 {
		return prev, ErrQuotaCapExceeded
	}
	return next, nil
}
