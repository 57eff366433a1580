package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// command maps a CLI verb to an RPC method and the fields it accepts.
type command struct {
	method  string
	signed  bool
	fields  []string
	numeric map[string]bool
	usage   string
}

var commands = map[string]command{
	"mint":           {method: "bridge_mint", signed: true, fields: []string{"recipient", "amount", "proof"}, usage: "recipient=0x.. amount=N proof=ID"},
	"burn":           {method: "bridge_burn", signed: true, fields: []string{"holder", "amount", "destination"}, usage: "holder=0x.. amount=N destination=ADDR"},
	"emergency-mint": {method: "bridge_emergencyMint", signed: true, fields: []string{"recipient", "amount"}, usage: "recipient=0x.. amount=N"},
	"burn-from":      {method: "bridge_burnFrom", signed: true, fields: []string{"holder", "amount"}, usage: "holder=0x.. amount=N"},
	"pause":          {method: "bridge_pause", signed: true},
	"unpause":        {method: "bridge_unpause", signed: true},
	"set-role":       {method: "bridge_setRole", signed: true, fields: []string{"role", "address"}, usage: "role=operator|administrator|recovery address=0x.."},
	"update-bounds":  {method: "bridge_updateBounds", signed: true, fields: []string{"min", "maxIn", "maxOut"}, usage: "min=N maxIn=N maxOut=N"},
	"update-caps":    {method: "bridge_updateDailyCaps", signed: true, fields: []string{"capIn", "capOut"}, usage: "capIn=N capOut=N"},
	"deposit":        {method: "bridge_recordForeignDeposit", signed: true, fields: []string{"asset", "amount", "ref"}, usage: "asset=0x.. amount=N ref=ID"},
	"recover":        {method: "bridge_recoverForeignAsset", signed: true, fields: []string{"asset", "to", "amount"}, usage: "asset=0x.. [to=0x..] amount=N"},
	"transfer":       {method: "token_transfer", signed: true, fields: []string{"to", "amount"}, usage: "to=0x.. amount=N"},
	"approve":        {method: "token_approve", signed: true, fields: []string{"spender", "amount"}, usage: "spender=0x.. amount=N"},
	"transfer-from":  {method: "token_transferFrom", signed: true, fields: []string{"from", "to", "amount"}, usage: "from=0x.. to=0x.. amount=N"},

	"stats":     {method: "bridge_stats"},
	"params":    {method: "bridge_params"},
	"metadata":  {method: "bridge_metadata"},
	"balance":   {method: "token_balanceOf", fields: []string{"address"}, usage: "address=0x.."},
	"allowance": {method: "token_allowance", fields: []string{"owner", "spender"}, usage: "owner=0x.. spender=0x.."},
	"usage":     {method: "bridge_dailyUsage", fields: []string{"account", "direction", "day"}, numeric: map[string]bool{"day": true}, usage: "account=0x.. direction=in|out [day=N]"},
	"processed": {method: "bridge_isProcessed", fields: []string{"fingerprint"}, usage: "fingerprint=0x.."},
	"holding":   {method: "bridge_foreignHolding", fields: []string{"asset"}, usage: "asset=0x.."},
}

// payload turns key=value arguments into the parameter object of cmd.
func (cmd command) payload(args []string) (map[string]interface{}, error) {
	allowed := make(map[string]bool, len(cmd.fields))
	for _, f := range cmd.fields {
		allowed[f] = true
	}
	out := make(map[string]interface{}, len(args)+1)
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q must be key=value", arg)
		}
		if !allowed[key] {
			return nil, fmt.Errorf("unknown field %q", key)
		}
		if cmd.numeric[key] {
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s must be a non-negative integer", key)
			}
			out[key] = n
			continue
		}
		out[key] = value
	}
	return out, nil
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
