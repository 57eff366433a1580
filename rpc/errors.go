package rpc

import (
	"errors"
	"net/http"

	"wacgbridge/native/bridge"
)

// controllerError maps a controller failure to its HTTP status and JSON-RPC
// error. Internal failures are not described to the caller.
func controllerError(err error) (int, *RPCError) {
	var be *bridge.Error
	if !errors.As(err, &be) {
		if errors.Is(err, bridge.ErrReentrantCall) {
			return http.StatusConflict, &RPCError{Code: codeServerError, Message: "controller busy"}
		}
		return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal error"}
	}
	data := ErrorData{Kind: be.Kind.String(), Tier: string(be.Tier())}
	if be.Address != nil {
		data.Address = be.Address.Hex()
	}
	if be.Amount != nil {
		data.Amount = be.Amount.String()
	}
	if be.Limit != nil {
		data.Limit = be.Limit.String()
	}
	if be.Fingerprint != nil {
		data.Fingerprint = be.Fingerprint.Hex()
	}
	rpcErr := &RPCError{Message: be.Error(), Data: data}
	switch {
	case be.Kind == bridge.KindRequestAlreadyProcessed:
		rpcErr.Code = codeDuplicate
		return http.StatusConflict, rpcErr
	case be.Kind == bridge.KindOperationsPaused:
		rpcErr.Code = codePolicy
		return http.StatusServiceUnavailable, rpcErr
	case be.Tier() == bridge.TierAuthorization:
		rpcErr.Code = codeForbidden
		return http.StatusForbidden, rpcErr
	case be.Tier() == bridge.TierPolicy:
		rpcErr.Code = codePolicy
		return http.StatusUnprocessableEntity, rpcErr
	default:
		rpcErr.Code = codeRejected
		return http.StatusBadRequest, rpcErr
	}
}
