package httpx

import (
	"crypto/rand"
	"encoding/hex"
)

type RequestIDFunc func() string

type RequestIDConfig struct {
	// Header carries the request id, e.g. "X-Request-ID". Empty disables injection.
	Header string

	// New generates an id when the request has none. If nil, DefaultRequestID is used.
	New RequestIDFunc
}

func DefaultRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}

func (c RequestIDConfig) id() string {
	if c.New != nil {
		return c.New()
	}
	return DefaultRequestID()
}
