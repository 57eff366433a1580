package bridge

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
)

// SchemaVersion is bumped whenever the stored layout or the fingerprint
// derivation changes; opening state written under another version fails.
const SchemaVersion uint64 = 1

var (
	schemaKey       = []byte("bridge/meta/schema")
	configKey       = []byte("bridge/config")
	pausedKey       = []byte("bridge/paused")
	countersKey     = []byte("bridge/counters")
	balancePrefix   = []byte("bridge/balance/")
	allowancePrefix = []byte("bridge/allowance/")
	usagePrefix     = []byte("bridge/usage/")
	processedPrefix = []byte("bridge/processed/")
	foreignPrefix   = []byte("bridge/foreign/held/")
	depositPrefix   = []byte("bridge/foreign/deposit/")
)

func balanceKey(addr common.Address) []byte {
	return appendHex(balancePrefix, addr.Bytes())
}

func allowanceKey(owner, spender common.Address) []byte {
	key := appendHex(allowancePrefix, owner.Bytes())
	key = append(key, '/')
	return appendHex(key, spender.Bytes())
}

// usageKey orders entries by direction, day and account so a single day can
// be scanned with a prefix.
func usageKey(d Direction, day uint64, account common.Address) []byte {
	key := make([]byte, 0, len(usagePrefix)+2+16+1+40)
	key = append(key, usagePrefix...)
	key = append(key, d.String()...)
	key = append(key, '/')
	var dayBuf [8]byte
	binary.BigEndian.PutUint64(dayBuf[:], day)
	key = appendHex(key, dayBuf[:])
	key = append(key, '/')
	return appendHex(key, account.Bytes())
}

func processedKey(fp common.Hash) []byte {
	return appendHex(processedPrefix, fp.Bytes())
}

func appendHex(prefix []byte, raw []byte) []byte {
	buf := make([]byte, len(prefix), len(prefix)+hex.EncodedLen(len(raw)))
	copy(buf, prefix)
	encoded := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(encoded, raw)
	return append(buf, encoded...)
}

func foreignKey(asset common.Address) []byte {
	return appendHex(foreignPrefix, asset.Bytes())
}

func depositKey(id common.Hash) []byte {
	return appendHex(depositPrefix, id.Bytes())
}
