package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wacgbridge/rpc"
)

type client struct {
	endpoint string
	http     *http.Client
	key      *ecdsa.PrivateKey
	now      func() time.Time
}

// call sends one JSON-RPC request. Signed commands receive the current
// timestamp and a personal_sign signature over the encoded parameters.
func (c *client) call(cmd command, params map[string]interface{}) (*rpc.RPCResponse, error) {
	var raw []json.RawMessage
	if cmd.signed {
		if c.key == nil {
			return nil, fmt.Errorf("%s needs a signing key (-key)", cmd.method)
		}
		params["timestamp"] = c.now().Unix()
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		sig, err := rpc.Sign(c.key, cmd.method, encoded)
		if err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
		sigJSON, err := json.Marshal(sig)
		if err != nil {
			return nil, err
		}
		raw = []json.RawMessage{encoded, sigJSON}
	} else if len(params) > 0 {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		raw = []json.RawMessage{encoded}
	}

	body, err := json.Marshal(rpc.RPCRequest{JSONRPC: "2.0", Method: cmd.method, Params: raw, ID: 1})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out rpc.RPCResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}
