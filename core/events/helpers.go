package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func formatAddress(addr common.Address) string {
	return addr.Hex()
}

func formatHash(hash common.Hash) string {
	return hash.Hex()
}
