package main

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"wacgbridge/native/bridge"
)

// deployment is the persisted description of an initialised controller.
type deployment struct {
	Network      string     `yaml:"network"`
	ChainID      uint64     `yaml:"chainId"`
	Controller   string     `yaml:"controller"`
	Token        tokenInfo  `yaml:"token"`
	Roles        roleInfo   `yaml:"roles"`
	OutboundMode string     `yaml:"outboundMode"`
	Limits       limitsInfo `yaml:"limits"`
	DeployedAt   time.Time  `yaml:"deployedAt"`
	StatePath    string     `yaml:"statePath,omitempty"`
}

type tokenInfo struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
	Version  string `yaml:"version"`
}

type roleInfo struct {
	Administrator     string `yaml:"administrator"`
	Operator          string `yaml:"operator"`
	EmergencyRecovery string `yaml:"emergencyRecovery,omitempty"`
}

type limitsInfo struct {
	Min    amountInfo `yaml:"min"`
	MaxIn  amountInfo `yaml:"maxIn"`
	MaxOut amountInfo `yaml:"maxOut"`
	CapIn  amountInfo `yaml:"dailyCapIn"`
	CapOut amountInfo `yaml:"dailyCapOut"`
}

// amountInfo records an amount both in base units and in whole tokens.
type amountInfo struct {
	Base  string `yaml:"base"`
	Units string `yaml:"units"`
}

func newAmountInfo(v *big.Int) amountInfo {
	if v == nil {
		v = new(big.Int)
	}
	return amountInfo{Base: v.String(), Units: bridge.FormatUnits(v, bridge.Decimals) + " " + bridge.TokenSymbol}
}

func newDeployment(network string, params bridge.Params, md bridge.Metadata, at time.Time) deployment {
	d := deployment{
		Network:    network,
		ChainID:    params.ChainID,
		Controller: params.Controller.Hex(),
		Token: tokenInfo{
			Name:     md.Name,
			Symbol:   md.Symbol,
			Decimals: md.Decimals,
			Version:  md.Version,
		},
		Roles: roleInfo{
			Administrator: params.Administrator.Hex(),
			Operator:      params.Operator.Hex(),
		},
		OutboundMode: string(params.OutboundMode),
		Limits: limitsInfo{
			Min:    newAmountInfo(params.Limits.Min),
			MaxIn:  newAmountInfo(params.Limits.MaxIn),
			MaxOut: newAmountInfo(params.Limits.MaxOut),
			CapIn:  newAmountInfo(params.Limits.CapIn),
			CapOut: newAmountInfo(params.Limits.CapOut),
		},
		DeployedAt: at.UTC(),
	}
	if params.EmergencyRecovery != (common.Address{}) {
		d.Roles.EmergencyRecovery = params.EmergencyRecovery.Hex()
	}
	return d
}

func writeDeployment(path string, d deployment) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prepare %s: %w", dir, err)
		}
	}
	out, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode deployment: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func readDeployment(path string) (deployment, error) {
	var d deployment
	raw, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("decode deployment: %w", err)
	}
	return d, nil
}
