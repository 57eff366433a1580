package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"wacgbridge/native/bridge"
)

// BridgeParams converts the Bridge section into controller parameters and
// validates them.
func (c *Config) BridgeParams() (bridge.Params, error) {
	b := c.Bridge
	var params bridge.Params
	var err error
	if params.Administrator, err = parseAddress("Administrator", b.Administrator, true); err != nil {
		return bridge.Params{}, err
	}
	if params.Operator, err = parseAddress("Operator", b.Operator, true); err != nil {
		return bridge.Params{}, err
	}
	if params.EmergencyRecovery, err = parseAddress("EmergencyRecovery", b.EmergencyRecovery, false); err != nil {
		return bridge.Params{}, err
	}
	if params.Controller, err = parseAddress("Controller", b.Controller, true); err != nil {
		return bridge.Params{}, err
	}
	params.ChainID = b.ChainID
	if params.OutboundMode, err = bridge.ParseOutboundMode(b.OutboundMode); err != nil {
		return bridge.Params{}, err
	}
	amounts := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"MinAmount", b.MinAmount, &params.Limits.Min},
		{"MaxIn", b.MaxIn, &params.Limits.MaxIn},
		{"MaxOut", b.MaxOut, &params.Limits.MaxOut},
		{"DailyCapIn", b.DailyCapIn, &params.Limits.CapIn},
		{"DailyCapOut", b.DailyCapOut, &params.Limits.CapOut},
	}
	for _, a := range amounts {
		v, err := ParseAmount(a.value)
		if err != nil {
			return bridge.Params{}, fmt.Errorf("Bridge.%s: %w", a.name, err)
		}
		*a.dst = v
	}
	if err := params.Validate(); err != nil {
		return bridge.Params{}, err
	}
	return params, nil
}

// ParseAmount accepts base units or whole tokens suffixed with a unit.
func ParseAmount(value string) (*big.Int, error) {
	if len(strings.Fields(value)) == 2 {
		return bridge.ParseUnits(value, bridge.Decimals)
	}
	return bridge.ParseAmount(value)
}

func parseAddress(field, value string, required bool) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			return common.Address{}, fmt.Errorf("Bridge.%s required", field)
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("Bridge.%s: invalid address %q", field, value)
	}
	return common.HexToAddress(trimmed), nil
}
