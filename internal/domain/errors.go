package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrQuoteUnavailable    = errors.New("quote unavailable")
)
