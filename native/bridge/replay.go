package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// FingerprintVersion names the derivation implemented by Fingerprint. The
// derivation is part of the external contract with relays: changing it
// requires a new version and a state migration, never an in-place edit.
const FingerprintVersion = 1

// Fingerprint derives the request identifier of a bridge operation:
//
//	keccak256(account[20] || uint256be(amount) || utf8(ref) || uint256be(chainID))
//
// which is the packed encoding used by the deployed contract. ref is the
// inbound proof identifier or the outbound destination.
func Fingerprint(account common.Address, amount *big.Int, ref string, chainID uint64) common.Hash {
	var amountWord [32]byte
	if amount != nil {
		if v, overflow := uint256.FromBig(amount); !overflow {
			amountWord = v.Bytes32()
		}
	}
	chainWord := uint256.NewInt(chainID).Bytes32()
	return ethcrypto.Keccak256Hash(account.Bytes(), amountWord[:], []byte(ref), chainWord[:])
}

// replayGuard is the write-once set of consumed fingerprints.
type replayGuard struct {
	st *state
}

func (g replayGuard) isProcessed(fp common.Hash) (bool, error) {
	return g.st.processed(fp)
}

// markIfNew stages fp as processed, failing if it already is.
func (g replayGuard) markIfNew(fp common.Hash, d Direction, now int64) error {
	seen, err := g.st.processed(fp)
	if err != nil {
		return err
	}
	if seen {
		return newError(KindRequestAlreadyProcessed, "request %s already processed", fp.Hex()).withFingerprint(fp)
	}
	var at uint64
	if now > 0 {
		at = uint64(now)
	}
	return g.st.putProcessed(fp, storedProcessed{Direction: uint8(d), ProcessedAt: at})
}
