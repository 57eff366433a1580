package rpc

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"wacgbridge/native/bridge"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeStaleRequest   = -32002
	codeDuplicate      = -32010
	codeRateLimited    = -32020
	codeRejected       = -32030
	codePolicy         = -32031
	codeForbidden      = -32032
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData is attached to controller rejections.
type ErrorData struct {
	Kind        string `json:"kind"`
	Tier        string `json:"tier"`
	Address     string `json:"address,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Limit       string `json:"limit,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Envelope is the signed first parameter of every state-changing method.
// Timestamp is unix seconds.
type Envelope struct {
	Timestamp int64 `json:"timestamp"`
}

type MintParams struct {
	Envelope
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Proof     string `json:"proof"`
}

type BurnParams struct {
	Envelope
	Holder      string `json:"holder"`
	Amount      string `json:"amount"`
	Destination string `json:"destination"`
}

type EmergencyMintParams struct {
	Envelope
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// BurnFromParams removes holder balance without a destination or limits.
type BurnFromParams struct {
	Envelope
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

type RoleParams struct {
	Envelope
	Role    string `json:"role"`
	Address string `json:"address"`
}

type BoundsParams struct {
	Envelope
	Min    string `json:"min"`
	MaxIn  string `json:"maxIn"`
	MaxOut string `json:"maxOut"`
}

type CapsParams struct {
	Envelope
	CapIn  string `json:"capIn"`
	CapOut string `json:"capOut"`
}

type RecoverParams struct {
	Envelope
	Asset  string `json:"asset"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
}

// ForeignDepositParams books a foreign token transfer into the controller.
// Ref identifies the transfer on the foreign side and may be used once per
// asset.
type ForeignDepositParams struct {
	Envelope
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	Ref    string `json:"ref"`
}

type TransferParams struct {
	Envelope
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApproveParams struct {
	Envelope
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// FingerprintResult is returned by mint and burn.
type FingerprintResult struct {
	Fingerprint string `json:"fingerprint"`
}

type StatsResult struct {
	TotalSupply          string `json:"totalSupply"`
	TotalWrappedIn       string `json:"totalWrappedIn"`
	TotalUnwrappedOut    string `json:"totalUnwrappedOut"`
	TotalEmergencyMinted string `json:"totalEmergencyMinted"`
	TotalAdminBurned     string `json:"totalAdminBurned"`
	Operator             string `json:"operator"`
	Paused               bool   `json:"paused"`
	MinAmount            string `json:"minAmount"`
	MaxIn                string `json:"maxIn"`
	MaxOut               string `json:"maxOut"`
	DailyCapIn           string `json:"dailyCapIn"`
	DailyCapOut          string `json:"dailyCapOut"`
}

type ParamsResult struct {
	Administrator     string `json:"administrator"`
	Operator          string `json:"operator"`
	EmergencyRecovery string `json:"emergencyRecovery,omitempty"`
	Controller        string `json:"controller"`
	ChainID           uint64 `json:"chainId"`
	OutboundMode      string `json:"outboundMode"`
}

type UsageResult struct {
	Account   string `json:"account"`
	Direction string `json:"direction"`
	Day       uint64 `json:"day"`
	Used      string `json:"used"`
	Remaining string `json:"remaining"`
}

type HoldingResult struct {
	Asset string `json:"asset"`
	Held  string `json:"held"`
}

type MetadataResult struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Version  string `json:"version"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return addr.Hex()
}

func statsResult(s bridge.Stats) StatsResult {
	return StatsResult{
		TotalSupply:          amountString(s.TotalSupply),
		TotalWrappedIn:       amountString(s.TotalWrappedIn),
		TotalUnwrappedOut:    amountString(s.TotalUnwrappedOut),
		TotalEmergencyMinted: amountString(s.TotalEmergencyMinted),
		TotalAdminBurned:     amountString(s.TotalAdminBurned),
		Operator:             s.Operator.Hex(),
		Paused:               s.Paused,
		MinAmount:            amountString(s.MinAmount),
		MaxIn:                amountString(s.MaxIn),
		MaxOut:               amountString(s.MaxOut),
		DailyCapIn:           amountString(s.DailyCapIn),
		DailyCapOut:          amountString(s.DailyCapOut),
	}
}

func paramsResult(p bridge.Params) ParamsResult {
	return ParamsResult{
		Administrator:     p.Administrator.Hex(),
		Operator:          p.Operator.Hex(),
		EmergencyRecovery: addressString(p.EmergencyRecovery),
		Controller:        p.Controller.Hex(),
		ChainID:           p.ChainID,
		OutboundMode:      string(p.OutboundMode),
	}
}
