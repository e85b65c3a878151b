package service

import "errors"

var (
	ErrUpstream          = errors.New("upstream fetch failed")
	ErrRateNotFound      = errors.New("rate not found")
	ErrPathNotFound      = errors.New("json path not found")
	ErrInvalidRate       = errors.New("invalid rate value")
	ErrBridgeUnavailable = errors.New("usd bridge rate unavailable")
)
