package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownSource      = errors.New("unknown source")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNoMarkets          = errors.New("no markets")
	ErrWSDisconnect       = errors.New("websocket disconnected")
	ErrInvalidCycleBounds = errors.New("invalid cycle bounds")
)
