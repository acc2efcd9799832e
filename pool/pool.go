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

// Package pool implements a bounded, per-endpoint connection pool:
// lease/release with a FIFO waiter queue once at capacity, idle-age
// eviction, graceful or immediate shutdown, and the shared, refcounted
// subscription connection described in §4.4/§9. Generalized from the
// teacher's mutex-guarded connPool registry (protocol/pool.go), which
// keeps a "frozen" TTL-cache of recently-retired identifiers to guard
// against a late event resurrecting an already-removed entry; this pool
// keeps the same idiom (internal/ttlcache) to guard against a stale
// Release call racing a connection's own transport-error close.
package pool

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/conn"
	"github.com/valkeygo/valkeygo/internal/ttlcache"
)

type idleConn struct {
	c         *conn.Conn
	idleSince time.Time
}

// Pool leases and returns *conn.Conn values against {Min, Max}
// capacity for one server endpoint.
type Pool struct {
	opts Options

	mu       sync.Mutex
	idle     *list.List // of *idleConn
	waiters  *list.List // of chan leaseResult
	numOpen  int
	leased   int
	closed   bool
	draining bool
	drainCh  chan struct{}

	nextID   atomic.Int64
	retired  *ttlcache.Cache[int64]
	connIDs  map[*conn.Conn]int64

	readOnly bool // this pool provisions replica-read connections

	hub *subHub
}

type leaseResult struct {
	c   *conn.Conn
	err error
}

// New creates a Pool for one endpoint. readOnly marks every connection
// this pool dials as a replica-read connection (READONLY is sent as the
// final handshake step).
func New(opts Options, readOnly bool) *Pool {
	opts = opts.withDefaults()
	p := &Pool{
		opts:     opts,
		idle:     list.New(),
		waiters:  list.New(),
		retired:  ttlcache.New[int64](30 * time.Second),
		connIDs:  make(map[*conn.Conn]int64),
		readOnly: readOnly,
	}
	p.hub = newSubHub(p)
	return p
}

// Lease returns an idle connection or, if under Max, dials a new one.
// Once at capacity the caller queues FIFO and resumes on the next
// Release.
func (p *Pool) Lease(ctx context.Context) (*conn.Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, clienterr.Transport(clienterr.KindConnectionClosed, "pool shut down")
		}

		for p.idle.Len() > 0 {
			front := p.idle.Remove(p.idle.Front()).(*idleConn)
			if time.Since(front.idleSince) > p.opts.MaxIdleAge {
				p.numOpen--
				p.mu.Unlock()
				front.c.Close()
				p.mu.Lock()
				continue
			}
			p.leased++
			p.mu.Unlock()
			return front.c, nil
		}

		if p.numOpen < p.opts.Max {
			p.numOpen++
			p.mu.Unlock()

			c, err := p.dial(ctx)
			if err != nil {
				p.mu.Lock()
				p.numOpen--
				p.mu.Unlock()
				return nil, err
			}

			p.mu.Lock()
			p.leased++
			p.mu.Unlock()
			return c, nil
		}

		ch := make(chan leaseResult, 1)
		elem := p.waiters.PushBack(ch)
		p.mu.Unlock()

		waitCtx := ctx
		if p.opts.LeaseTimeout > 0 {
			var cancel context.CancelFunc
			waitCtx, cancel = context.WithTimeout(ctx, p.opts.LeaseTimeout)
			defer cancel()
		}

		select {
		case res := <-ch:
			if res.err != nil {
				return nil, res.err
			}
			return res.c, nil
		case <-waitCtx.Done():
			p.mu.Lock()
			p.waiters.Remove(elem)
			p.mu.Unlock()
			return nil, waitCtx.Err()
		}
	}
}

func (p *Pool) dial(ctx context.Context) (*conn.Conn, error) {
	c, err := p.opts.Dialer(ctx, p.readOnly, p.hub.trackingRedirectID())
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.connIDs[c] = p.nextID.Add(1)
	p.mu.Unlock()
	return c, nil
}

// Release returns c to the pool: directly to a waiting leaser if there
// is one, else closed if the pool is draining for shutdown or holds
// more than Max connections, else to idle. Min is not consulted here;
// the pool does not close idle connections to shrink toward it.
func (p *Pool) Release(c *conn.Conn) {
	p.mu.Lock()

	id, known := p.connIDs[c]
	if known && p.retired.Has(id) {
		p.mu.Unlock()
		return
	}

	p.leased--
	if front := p.waiters.Front(); front != nil {
		p.waiters.Remove(front)
		ch := front.Value.(chan leaseResult)
		p.leased++
		p.mu.Unlock()
		ch <- leaseResult{c: c}
		return
	}

	if p.draining || p.numOpen > p.opts.Max {
		p.numOpen--
		delete(p.connIDs, c)
		if known {
			p.retired.Set(id)
		}
		drained := p.leased == 0 && p.idle.Len() == 0
		p.mu.Unlock()
		c.Close()
		if drained {
			p.signalDrained()
		}
		return
	}

	p.idle.PushBack(&idleConn{c: c, idleSince: time.Now()})
	drained := p.draining && p.leased == 0
	p.mu.Unlock()
	if drained {
		p.signalDrained()
	}
}

func (p *Pool) signalDrained() {
	p.mu.Lock()
	ch := p.drainCh
	p.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Shutdown stops accepting leases. graceful=true waits for in-use
// connections to drain naturally via Release; graceful=false closes
// every idle connection immediately and returns without waiting. A
// connection still leased is not closed by Shutdown; it is closed when
// its holder releases it.
func (p *Pool) Shutdown(ctx context.Context, graceful bool) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.draining = true

	for e := p.waiters.Front(); e != nil; e = e.Next() {
		ch := e.Value.(chan leaseResult)
		ch <- leaseResult{err: clienterr.Transport(clienterr.KindConnectionClosed, "pool shut down")}
	}
	p.waiters.Init()

	if !graceful {
		var toClose []*conn.Conn
		for e := p.idle.Front(); e != nil; e = e.Next() {
			toClose = append(toClose, e.Value.(*idleConn).c)
		}
		p.idle.Init()
		p.numOpen = 0
		p.mu.Unlock()
		for _, c := range toClose {
			c.Close()
		}
		p.hub.shutdown()
		p.retired.Close()
		return nil
	}

	var idleNow []*conn.Conn
	for e := p.idle.Front(); e != nil; e = e.Next() {
		idleNow = append(idleNow, e.Value.(*idleConn).c)
	}
	p.idle.Init()
	p.numOpen -= len(idleNow)
	drained := p.leased == 0
	p.drainCh = make(chan struct{}, 1)
	dc := p.drainCh
	p.mu.Unlock()

	for _, c := range idleNow {
		c.Close()
	}

	if !drained {
		select {
		case <-dc:
		case <-ctx.Done():
		}
	}

	p.hub.shutdown()
	p.retired.Close()
	return nil
}

// Stats reports the pool's current occupancy, mainly for debugsrv.
type Stats struct {
	Open   int
	Idle   int
	Leased int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Open: p.numOpen, Idle: p.idle.Len(), Leased: p.leased}
}

// AcquireSubConn leases the pool's shared subscription connection,
// dialing it on first use. Release the returned func when the caller no
// longer needs the connection for subscriptions.
func (p *Pool) AcquireSubConn(ctx context.Context) (*conn.Conn, func(), error) {
	return p.hub.acquire(ctx)
}
