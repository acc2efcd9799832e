// Copyright 2026 The valkeygo Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pool

import (
	"context"
	"sync"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/conn"
)

// subHubState is the explicit state machine of §4.4/§9: the shared
// subscription connection is never modeled via host reference
// semantics, only these three named states and their transitions.
type subHubState int

const (
	subUninitialized subHubState = iota
	subAcquiring
	subAvailable
)

// subHub owns the pool's single, reference-counted connection
// designated for subscriptions (and client-side-cache invalidation).
type subHub struct {
	pool *Pool

	mu       sync.Mutex
	state    subHubState
	c        *conn.Conn
	refcount int
	waiters  []chan subResult
	closed   bool
}

type subResult struct {
	c   *conn.Conn
	err error
}

func newSubHub(p *Pool) *subHub {
	return &subHub{pool: p}
}

// trackingRedirectID returns the shared subscription connection's
// client id, or 0 if it has not been acquired yet. Ordinary
// connections this pool dials pass this to CLIENT TRACKING REDIRECT.
func (h *subHub) trackingRedirectID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == subAvailable && h.c != nil {
		return h.c.ClientID()
	}
	return 0
}

// acquire resumes an available shared connection, joins an in-flight
// acquisition, or starts one. The returned func must be called exactly
// once to drop this caller's reference.
func (h *subHub) acquire(ctx context.Context) (*conn.Conn, func(), error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, clienterr.Transport(clienterr.KindConnectionClosed, "pool shut down")
	}

	switch h.state {
	case subAvailable:
		h.refcount++
		c := h.c
		h.mu.Unlock()
		return c, h.releaseFunc(), nil

	case subAcquiring:
		ch := make(chan subResult, 1)
		h.waiters = append(h.waiters, ch)
		h.mu.Unlock()
		return h.awaitAcquisition(ctx, ch)

	default: // subUninitialized
		h.state = subAcquiring
		ch := make(chan subResult, 1)
		h.waiters = append(h.waiters, ch)
		h.mu.Unlock()

		go h.dial()
		return h.awaitAcquisition(ctx, ch)
	}
}

func (h *subHub) awaitAcquisition(ctx context.Context, ch chan subResult) (*conn.Conn, func(), error) {
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, nil, res.err
		}
		return res.c, h.releaseFunc(), nil
	case <-ctx.Done():
		// Cancellation during acquiring never cancels the in-flight
		// dial: it only stops this caller from waiting on it. Any
		// other still-registered waiter (or a fresh caller, once the
		// dial lands and refcount settles) effectively becomes the
		// next leader, per §4.4's "nested acquisition attempt."
		h.removeWaiter(ch)
		return nil, nil, ctx.Err()
	}
}

func (h *subHub) removeWaiter(target chan subResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, ch := range h.waiters {
		if ch == target {
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			break
		}
	}
}

func (h *subHub) dial() {
	c, err := h.pool.opts.Dialer(context.Background(), false, 0)

	h.mu.Lock()
	waiters := h.waiters
	h.waiters = nil

	if err != nil {
		h.state = subUninitialized
		h.mu.Unlock()
		for _, w := range waiters {
			w <- subResult{err: err}
		}
		return
	}

	if len(waiters) == 0 {
		// Every waiter cancelled before the dial landed: nobody holds a
		// reference, so return straight to uninitialized rather than
		// leak an unreferenced connection.
		h.state = subUninitialized
		h.mu.Unlock()
		c.Close()
		return
	}

	h.c = c
	h.refcount = len(waiters)
	h.state = subAvailable
	h.mu.Unlock()

	for _, w := range waiters {
		w <- subResult{c: c}
	}
}

func (h *subHub) releaseFunc() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.refcount--
			if h.refcount <= 0 {
				c := h.c
				h.c = nil
				h.refcount = 0
				h.state = subUninitialized
				h.mu.Unlock()
				if c != nil {
					c.Close()
				}
				return
			}
			h.mu.Unlock()
		})
	}
}

func (h *subHub) shutdown() {
	h.mu.Lock()
	h.closed = true
	c := h.c
	h.c = nil
	h.refcount = 0
	h.state = subUninitialized
	waiters := h.waiters
	h.waiters = nil
	h.mu.Unlock()

	for _, w := range waiters {
		w <- subResult{err: clienterr.Transport(clienterr.KindConnectionClosed, "pool shut down")}
	}
	if c != nil {
		c.Close()
	}
}
