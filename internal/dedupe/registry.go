// Package dedupe coalesces concurrent identical calls into one execution.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// call is one in-flight execution shared by every caller with the same key.
type call struct {
	done    chan struct{}
	waiters int
	val     any
	err     error
}

func (c *call) close(val any, err error) {
	c.val, c.err = val, err
	close(c.done)
}

// Registry owns the in-flight map of one client. It is not meant to be shared between clients.
type Registry struct {
	mu       sync.Mutex
	inFlight map[string]*call
}

func New() *Registry {
	return &Registry{inFlight: make(map[string]*call)}
}

// Do runs fn under key. Callers arriving while a call with the same key is in flight wait for
// it and receive the same value and error. The key is evicted when fn returns.
//
// An empty key runs fn directly. A waiter whose ctx ends stops waiting; the shared execution
// keeps running for the others and is bound to the first caller's ctx.
func (r *Registry) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (val any, err error, shared bool) {
	if key == "" {
		val, err = fn(ctx)
		return val, err, false
	}

	r.mu.Lock()
	if c, ok := r.inFlight[key]; ok {
		c.waiters++
		r.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			return nil, ctx.Err(), true
		}
	}
	c := &call{done: make(chan struct{})}
	r.inFlight[key] = c
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inFlight, key)
		r.mu.Unlock()
	}()

	val, err = fn(ctx)
	c.close(val, err)

	r.mu.Lock()
	shared = c.waiters > 0
	r.mu.Unlock()
	return val, err, shared
}

// InFlight reports how many distinct keys are currently executing.
func (r *Registry) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inFlight)
}

// Key derives a stable key from parts. Parts are length-prefixed so ("ab","c") != ("a","bc").
func Key(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := 0; i < 8; i++ {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
