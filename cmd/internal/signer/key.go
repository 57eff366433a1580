// Package signer loads the keys role holders use to sign RPC requests.
package signer

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// LoadKey reads a private key from path. Encrypted keystore files (JSON) are
// decrypted with the passphrase from pass; anything else must be a hex
// encoded secp256k1 key.
func LoadKey(path string, pass func() (string, error)) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	trimmed := bytes.TrimSpace(raw)
	if json.Valid(trimmed) && bytes.HasPrefix(trimmed, []byte("{")) {
		if pass == nil {
			return nil, fmt.Errorf("keystore %s needs a passphrase", path)
		}
		passphrase, err := pass()
		if err != nil {
			return nil, err
		}
		key, err := keystore.DecryptKey(trimmed, passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(string(trimmed), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse hex key: %w", err)
	}
	return key, nil
}
