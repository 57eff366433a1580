package rpc

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	errMissingSignature = errors.New("signature required")
	errStaleRequest     = errors.New("request timestamp outside the accepted window")
	errReplayedRequest  = errors.New("signature already used")
	errSeenStore        = errors.New("seen-signature store unavailable")
)

// SigningPayload is the message a caller signs for method: the method name, a
// newline, then the exact bytes of the first parameter.
func SigningPayload(method string, params []byte) []byte {
	msg := make([]byte, 0, len(method)+1+len(params))
	msg = append(msg, method...)
	msg = append(msg, '\n')
	return append(msg, params...)
}

// Sign produces the personal_sign signature over the payload of method.
func Sign(key *ecdsa.PrivateKey, method string, params []byte) (string, error) {
	sig, err := ethcrypto.Sign(accounts.TextHash(SigningPayload(method, params)), key)
	if err != nil {
		return "", err
	}
	sig[ethcrypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// recoverSigner returns the address that produced signature over the payload.
// Both 0/1 and 27/28 recovery ids are accepted.
func recoverSigner(method string, params []byte, signature string) (common.Address, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(raw) != ethcrypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", ethcrypto.SignatureLength)
	}
	if raw[ethcrypto.RecoveryIDOffset] >= 27 {
		raw[ethcrypto.RecoveryIDOffset] -= 27
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash(SigningPayload(method, params)), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover pubkey: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// verifier authenticates signed requests and remembers accepted signatures
// until they can no longer pass the freshness check.
type verifier struct {
	window time.Duration
	now    func() time.Time
	seen   SeenStore
}

func newVerifier(window time.Duration, now func() time.Time, seen SeenStore) *verifier {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	if seen == nil {
		seen = NewMemorySeen()
	}
	return &verifier{window: window, now: now, seen: seen}
}

// verify checks params[0] against the signature in params[1]. It returns the
// signer and the id under which the request is remembered once admitted.
func (v *verifier) verify(method string, params []json.RawMessage) (common.Address, common.Hash, error) {
	if len(params) < 2 {
		return common.Address{}, common.Hash{}, errMissingSignature
	}
	var signature string
	if err := json.Unmarshal(params[1], &signature); err != nil || strings.TrimSpace(signature) == "" {
		return common.Address{}, common.Hash{}, errMissingSignature
	}
	var env Envelope
	if err := json.Unmarshal(params[0], &env); err != nil {
		return common.Address{}, common.Hash{}, fmt.Errorf("decode envelope: %w", err)
	}
	now := v.now()
	issued := time.Unix(env.Timestamp, 0)
	if issued.Before(now.Add(-v.window)) || issued.After(now.Add(v.window)) {
		return common.Address{}, common.Hash{}, errStaleRequest
	}
	signer, err := recoverSigner(method, params[0], signature)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	// Keyed on what was signed, so a malleated twin of the signature is still
	// a replay.
	return signer, ethcrypto.Keccak256Hash(signer.Bytes(), SigningPayload(method, params[0])), nil
}

// remember marks a verified request as used. It fails with errReplayedRequest
// when the request was admitted before.
func (v *verifier) remember(id common.Hash) error {
	fresh, err := v.seen.Remember(id, v.now(), 2*v.window)
	if err != nil {
		return fmt.Errorf("%w: %v", errSeenStore, err)
	}
	if !fresh {
		return errReplayedRequest
	}
	return nil
}
