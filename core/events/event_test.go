package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestLogIsAppendOnly(t *testing.T) {
	log := NewLog()
	log.Emit(PauseChanged{Paused: true})
	log.Emit(PauseChanged{Paused: false})
	log.Emit(nil)

	snapshot := log.Events()
	if len(snapshot) != 2 || log.Len() != 2 {
		t.Fatalf("unexpected log length %d", len(snapshot))
	}
	snapshot[0] = Transfer{}
	if log.Events()[0].EventType() != TypeBridgePaused {
		t.Fatalf("snapshot mutation leaked into the log")
	}
	if got := len(log.OfType(TypeBridgeUnpaused)); got != 1 {
		t.Fatalf("expected one unpaused event, got %d", got)
	}
}

func TestMultiEmitterFanOut(t *testing.T) {
	first := NewLog()
	second := NewLog()
	var seen []string
	multi := MultiEmitter{first, nil, second, EmitterFunc(func(evt Event) {
		seen = append(seen, evt.EventType())
	})}
	multi.Emit(Transfer{Amount: big.NewInt(1)})
	if first.Len() != 1 || second.Len() != 1 || len(seen) != 1 {
		t.Fatalf("fan-out incomplete: %d %d %d", first.Len(), second.Len(), len(seen))
	}
}

func TestMintedRender(t *testing.T) {
	recipient := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	fp := common.BytesToHash(crypto.Keccak256([]byte("fingerprint")))
	evt := Render(Minted{Recipient: recipient, Amount: big.NewInt(10000000000), Proof: " proof-1 ", Fingerprint: fp})
	if evt.Type != TypeBridgeMinted {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["recipient"] != recipient.Hex() {
		t.Fatalf("unexpected recipient %s", evt.Attributes["recipient"])
	}
	if evt.Attributes["amount"] != "10000000000" || evt.Attributes["proof"] != "proof-1" {
		t.Fatalf("unexpected attrs %+v", evt.Attributes)
	}
	if evt.Attributes["fingerprint"] != fp.Hex() {
		t.Fatalf("unexpected fingerprint %s", evt.Attributes["fingerprint"])
	}
}

func TestRoleChangedUsesKind(t *testing.T) {
	evt := RoleChanged{Kind: TypeBridgeOperatorChanged, Old: common.Address{1}, New: common.Address{2}}
	if evt.EventType() != TypeBridgeOperatorChanged {
		t.Fatalf("unexpected type %s", evt.EventType())
	}
	rendered := evt.Event()
	if rendered.Attributes["old"] == rendered.Attributes["new"] {
		t.Fatalf("old and new should differ: %+v", rendered.Attributes)
	}
}

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestRenderFallsBackForBareEvents(t *testing.T) {
	evt := Render(bareEvent{})
	if evt.Type != "bare" || evt.Attributes == nil {
		t.Fatalf("unexpected fallback %+v", evt)
	}
	if Render(nil) != nil {
		t.Fatalf("nil event should render nil")
	}
}
