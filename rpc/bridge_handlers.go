package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"wacgbridge/native/bridge"
)

// paramError marks malformed parameters, as opposed to controller rejections.
type paramError struct {
	msg string
}

func (e *paramError) Error() string { return e.msg }

func invalidParams(format string, args ...interface{}) error {
	return &paramError{msg: fmt.Sprintf(format, args...)}
}

func decodeParams(params []json.RawMessage, out interface{}) error {
	if len(params) == 0 {
		return invalidParams("parameter object required")
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return invalidParams("invalid parameter object: %v", err)
	}
	return nil
}

// parseAddress accepts an empty value as the zero address so the controller
// reports it with its own InvalidAddress rejection.
func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, invalidParams("%s must be a hex address", field)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, invalidParams("%s required", field)
	}
	amount, err := bridge.ParseAmount(value)
	if err != nil {
		return nil, invalidParams("%s: %v", field, err)
	}
	return amount, nil
}

func signed(fn func(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error)) methodHandler {
	return methodHandler{signed: true, fn: fn}
}

func query(fn func(params []json.RawMessage) (interface{}, error)) methodHandler {
	return methodHandler{fn: func(_ context.Context, _ common.Address, params []json.RawMessage) (interface{}, error) {
		return fn(params)
	}}
}

func (s *Server) bridgeMethods() map[string]methodHandler {
	return map[string]methodHandler{
		"bridge_mint":                 signed(s.handleMint),
		"bridge_burn":                 signed(s.handleBurn),
		"bridge_emergencyMint":        signed(s.handleEmergencyMint),
		"bridge_burnFrom":             signed(s.handleBurnFrom),
		"bridge_pause":                signed(s.handlePause),
		"bridge_unpause":              signed(s.handleUnpause),
		"bridge_setRole":              signed(s.handleSetRole),
		"bridge_updateBounds":         signed(s.handleUpdateBounds),
		"bridge_updateDailyCaps":      signed(s.handleUpdateDailyCaps),
		"bridge_recordForeignDeposit": signed(s.handleForeignDeposit),
		"bridge_recoverForeignAsset":  signed(s.handleRecover),
		"token_transfer":              signed(s.handleTransfer),
		"token_approve":               signed(s.handleApprove),
		"token_transferFrom":          signed(s.handleTransferFrom),

		"bridge_stats":          query(s.handleStats),
		"bridge_params":         query(s.handleParams),
		"bridge_dailyUsage":     query(s.handleDailyUsage),
		"bridge_isProcessed":    query(s.handleIsProcessed),
		"bridge_foreignHolding": query(s.handleForeignHolding),
		"bridge_metadata":       query(s.handleMetadata),
		"token_balanceOf":       query(s.handleBalanceOf),
		"token_allowance":       query(s.handleAllowance),
	}
}

func (s *Server) handleMint(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p MintParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient", p.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	fp, err := s.backend.Mint(ctx, caller, recipient, amount, p.Proof)
	if err != nil {
		return nil, err
	}
	return FingerprintResult{Fingerprint: fp.Hex()}, nil
}

func (s *Server) handleBurn(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p BurnParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	holder, err := parseAddress("holder", p.Holder)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	fp, err := s.backend.Burn(ctx, caller, holder, amount, p.Destination)
	if err != nil {
		return nil, err
	}
	return FingerprintResult{Fingerprint: fp.Hex()}, nil
}

func (s *Server) handleEmergencyMint(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p EmergencyMintParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient", p.Recipient)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.EmergencyMint(ctx, caller, recipient, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleBurnFrom(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p BurnFromParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	holder, err := parseAddress("holder", p.Holder)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.BurnFrom(ctx, caller, holder, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handlePause(ctx context.Context, caller common.Address, _ []json.RawMessage) (interface{}, error) {
	if err := s.backend.Pause(ctx, caller); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleUnpause(ctx context.Context, caller common.Address, _ []json.RawMessage) (interface{}, error) {
	if err := s.backend.Unpause(ctx, caller); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleSetRole(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p RoleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	next, err := parseAddress("address", p.Address)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(p.Role)) {
	case "operator":
		err = s.backend.SetOperator(ctx, caller, next)
	case "administrator", "admin":
		err = s.backend.SetAdministrator(ctx, caller, next)
	case "emergencyrecovery", "emergency_recovery", "recovery":
		err = s.backend.SetEmergencyRecovery(ctx, caller, next)
	default:
		return nil, invalidParams("unknown role %q", p.Role)
	}
	if err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleUpdateBounds(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p BoundsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	minimum, err := parseAmount("min", p.Min)
	if err != nil {
		return nil, err
	}
	maxIn, err := parseAmount("maxIn", p.MaxIn)
	if err != nil {
		return nil, err
	}
	maxOut, err := parseAmount("maxOut", p.MaxOut)
	if err != nil {
		return nil, err
	}
	if err := s.backend.UpdateBounds(ctx, caller, minimum, maxIn, maxOut); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleUpdateDailyCaps(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p CapsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	capIn, err := parseAmount("capIn", p.CapIn)
	if err != nil {
		return nil, err
	}
	capOut, err := parseAmount("capOut", p.CapOut)
	if err != nil {
		return nil, err
	}
	if err := s.backend.UpdateDailyCaps(ctx, caller, capIn, capOut); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleForeignDeposit(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p ForeignDepositParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	asset, err := parseAddress("asset", p.Asset)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.RecordForeignDeposit(ctx, caller, asset, amount, p.Ref); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleRecover(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p RecoverParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	asset, err := parseAddress("asset", p.Asset)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", p.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.RecoverForeignAsset(ctx, caller, asset, to, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleTransfer(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p TransferParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	to, err := parseAddress("to", p.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Transfer(ctx, caller, to, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleApprove(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p ApproveParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", p.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Approve(ctx, caller, spender, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleTransferFrom(ctx context.Context, caller common.Address, params []json.RawMessage) (interface{}, error) {
	var p TransferParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	from, err := parseAddress("from", p.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", p.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.TransferFrom(ctx, caller, from, to, amount); err != nil {
		return nil, err
	}
	return true, nil
}

func (s *Server) handleStats(_ []json.RawMessage) (interface{}, error) {
	stats, err := s.backend.Stats()
	if err != nil {
		return nil, err
	}
	return statsResult(stats), nil
}

func (s *Server) handleParams(_ []json.RawMessage) (interface{}, error) {
	params, err := s.backend.Params()
	if err != nil {
		return nil, err
	}
	return paramsResult(params), nil
}

func (s *Server) handleMetadata(_ []json.RawMessage) (interface{}, error) {
	md := s.backend.Metadata()
	return MetadataResult{Name: md.Name, Symbol: md.Symbol, Decimals: md.Decimals, Version: md.Version}, nil
}

func (s *Server) handleBalanceOf(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Address string `json:"address"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", p.Address)
	if err != nil {
		return nil, err
	}
	balance, err := s.backend.BalanceOf(addr)
	if err != nil {
		return nil, err
	}
	return amountString(balance), nil
}

func (s *Server) handleAllowance(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", p.Spender)
	if err != nil {
		return nil, err
	}
	allowance, err := s.backend.Allowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return amountString(allowance), nil
}

// handleDailyUsage reports usage for the given day, or for the current day
// when none is supplied.
func (s *Server) handleDailyUsage(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Account   string  `json:"account"`
		Direction string  `json:"direction"`
		Day       *uint64 `json:"day,omitempty"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return nil, err
	}
	d, err := bridge.ParseDirection(p.Direction)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	var day uint64
	if p.Day != nil {
		day = *p.Day
	} else if day, err = s.backend.Today(); err != nil {
		return nil, err
	}
	used, err := s.backend.DailyUsage(account, d, day)
	if err != nil {
		return nil, err
	}
	stats, err := s.backend.Stats()
	if err != nil {
		return nil, err
	}
	limit := stats.DailyCapIn
	if d == bridge.DirectionOut {
		limit = stats.DailyCapOut
	}
	remaining := new(big.Int)
	if limit != nil && used != nil && limit.Cmp(used) > 0 {
		remaining.Sub(limit, used)
	}
	return UsageResult{
		Account:   account.Hex(),
		Direction: d.String(),
		Day:       day,
		Used:      amountString(used),
		Remaining: remaining.String(),
	}, nil
}

func (s *Server) handleIsProcessed(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(p.Fingerprint)
	if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
		return nil, invalidParams("fingerprint must be a 32-byte hex hash")
	}
	seen, err := s.backend.IsProcessed(common.HexToHash(raw))
	if err != nil {
		return nil, err
	}
	return seen, nil
}

func (s *Server) handleForeignHolding(params []json.RawMessage) (interface{}, error) {
	var p struct {
		Asset string `json:"asset"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	asset, err := parseAddress("asset", p.Asset)
	if err != nil {
		return nil, err
	}
	held, err := s.backend.ForeignHolding(asset)
	if err != nil {
		return nil, err
	}
	return HoldingResult{Asset: asset.Hex(), Held: amountString(held)}, nil
}
