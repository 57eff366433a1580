package main

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"wacgbridge/core"
	"wacgbridge/native/bridge"
	"wacgbridge/rpc"
	"wacgbridge/storage"
)

func TestPayloadParsing(t *testing.T) {
	params, err := commands["usage"].payload([]string{"account=0x01", "direction=in", "day=19000"})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if params["day"] != uint64(19000) || params["direction"] != "in" {
		t.Fatalf("unexpected payload %v", params)
	}
	if _, err := commands["mint"].payload([]string{"colour=blue"}); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := commands["mint"].payload([]string{"amount"}); err == nil {
		t.Fatalf("expected key=value error")
	}
	if _, err := commands["usage"].payload([]string{"day=-1"}); err == nil {
		t.Fatalf("expected numeric error")
	}
	deposit, err := commands["deposit"].payload([]string{"asset=0xf1", "amount=80", "ref=0xfeed:1"})
	if err != nil {
		t.Fatalf("deposit payload: %v", err)
	}
	if deposit["ref"] != "0xfeed:1" || !commands["deposit"].signed {
		t.Fatalf("unexpected deposit payload %v", deposit)
	}
}

func TestMintThroughServer(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	operator := ethcrypto.PubkeyToAddress(key.PublicKey)
	node, err := core.InitNode(storage.NewMemDB(), bridge.Params{
		Roles: bridge.Roles{
			Administrator: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
			Operator:      operator,
		},
		Controller: common.HexToAddress("0x00000000000000000000000000000000000000c0"),
		ChainID:    56,
		Limits: bridge.Limits{
			Min:    big.NewInt(1),
			MaxIn:  big.NewInt(1_000),
			MaxOut: big.NewInt(1_000),
			CapIn:  big.NewInt(10_000),
			CapOut: big.NewInt(10_000),
		},
	})
	if err != nil {
		t.Fatalf("init node: %v", err)
	}
	srv, err := rpc.NewServer(rpc.Config{SignatureWindow: time.Minute}, node, nil, nil, nil)
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	keyPath := filepath.Join(t.TempDir(), "operator.key")
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(ethcrypto.FromECDSA(key))), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"-rpc", ts.URL, "-key", keyPath, "mint",
		"recipient=0x0000000000000000000000000000000000000001", "amount=700", "proof=dep-9"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("mint exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "fingerprint") {
		t.Fatalf("unexpected output %s", stdout.String())
	}

	stdout.Reset()
	code = run([]string{"-rpc", ts.URL, "balance", "address=0x0000000000000000000000000000000000000001"}, &stdout, &stderr)
	if code != 0 || strings.TrimSpace(stdout.String()) != `"700"` {
		t.Fatalf("balance exited %d with %q", code, stdout.String())
	}

	stderr.Reset()
	code = run([]string{"-rpc", ts.URL, "pause"}, &stdout, &stderr)
	if code != 1 || !strings.Contains(stderr.String(), "signing key") {
		t.Fatalf("expected missing key failure, got %d %q", code, stderr.String())
	}
}
