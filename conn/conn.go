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

// Package conn implements one full-duplex RESP3 connection: a writer
// goroutine draining outbound frames, a reader goroutine demultiplexing
// inbound frames onto a pending-request FIFO or the subscription table,
// and a deadline sweep that retires the connection when a command times
// out. This realizes the single-writer/single-reader contract as two
// goroutines handing off over channels and a mutex-guarded FIFO, one of
// the two shapes that contract allows.
package conn

import (
	"container/heap"
	"container/list"
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"

	"github.com/valkeygo/valkeygo/catalog"
	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/common"
	"github.com/valkeygo/valkeygo/internal/fasttime"
	"github.com/valkeygo/valkeygo/internal/rescue"
	"github.com/valkeygo/valkeygo/resp"
)

type status int32

const (
	statusHandshaking status = iota
	statusReady
	statusClosing
	statusClosed
)

// Conn is one RESP3 connection over a net.Conn (or *tls.Conn; TLS is a
// pass-through collaborator, never managed here).
type Conn struct {
	nc   net.Conn
	dec  *resp.Decoder
	opts Options

	clientID int64

	sendCh chan *request
	status atomic.Int32

	mu        sync.Mutex
	pending   *list.List
	deadlines deadlineHeap
	filters   map[string]*filterEntry
	subsByID  map[string]*Subscription

	closeOnce sync.Once
	closeErr  error
	doneCh    chan struct{}
}

// Dial opens a connection to addr and runs the handshake described in
// Options before returning. The returned Conn is ready for use.
func Dial(ctx context.Context, network, addr string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()

	d := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, clienterr.Transport(clienterr.KindConnectFailed, err.Error())
	}
	return newConn(nc, opts)
}

// newConn wraps an already-dialed net.Conn and runs the handshake. New
// is its exported form, for callers (such as a TLS layer or tests) that
// construct the transport themselves.
func newConn(nc net.Conn, opts Options) (*Conn, error) {
	c := &Conn{
		nc:       nc,
		dec:      resp.NewDecoder(),
		opts:     opts.withDefaults(),
		sendCh:   make(chan *request, 64),
		pending:  list.New(),
		filters:  make(map[string]*filterEntry),
		subsByID: make(map[string]*Subscription),
		doneCh:   make(chan struct{}),
	}
	c.status.Store(int32(statusHandshaking))

	go c.writeLoop()
	go c.readLoop()
	go c.sweepLoop()

	if err := c.handshake(); err != nil {
		c.failAndClose(err)
		return nil, err
	}
	c.status.Store(int32(statusReady))
	return c, nil
}

// New wraps an already-dialed net.Conn and runs the handshake. Callers
// that need their own dial or TLS logic use this instead of Dial.
func New(nc net.Conn, opts Options) (*Conn, error) {
	return newConn(nc, opts)
}

// ClientID returns the id the server assigned during HELLO.
func (c *Conn) ClientID() int64 {
	return c.clientID
}

func (c *Conn) handshake() error {
	ctx := context.Background()

	helloArgs := [][]byte{[]byte("HELLO"), []byte("3")}
	if c.opts.Username != "" || c.opts.Password != "" {
		helloArgs = append(helloArgs, []byte("AUTH"), []byte(c.opts.Username), []byte(c.opts.Password))
	}
	helloTok, err := c.Execute(ctx, helloArgs)
	if err != nil {
		return clienterr.Timing(clienterr.KindHandshakeTimeout, err.Error())
	}
	if m, ok := helloTok.Native().(map[string]any); ok {
		if id, err := cast.ToInt64E(m["id"]); err == nil {
			c.clientID = id
		}
	}

	// Best-effort: a server that rejects SETINFO must not fail the
	// handshake.
	_, _ = c.Execute(ctx, [][]byte{[]byte("CLIENT"), []byte("SETINFO"), []byte("LIB-NAME"), []byte(c.opts.LibName)})
	if c.opts.LibVersion != "" {
		_, _ = c.Execute(ctx, [][]byte{[]byte("CLIENT"), []byte("SETINFO"), []byte("LIB-VER"), []byte(c.opts.LibVersion)})
	}

	if c.opts.NoEvict {
		if _, err := c.Execute(ctx, [][]byte{[]byte("CLIENT"), []byte("NO-EVICT"), []byte("ON")}); err != nil {
			return err
		}
	}
	if c.opts.TrackingRedirect > 0 {
		id := strconv.FormatInt(c.opts.TrackingRedirect, 10)
		if _, err := c.Execute(ctx, [][]byte{[]byte("CLIENT"), []byte("TRACKING"), []byte("REDIRECT"), []byte(id)}); err != nil {
			return err
		}
	}
	if c.opts.ReadOnly {
		if _, err := c.Execute(ctx, [][]byte{[]byte("READONLY")}); err != nil {
			return err
		}
	}
	return nil
}

func encodeFrame(args [][]byte) []byte {
	e := resp.NewEncoder()
	for _, a := range args {
		e.Arg(a)
	}
	frame := append([]byte(nil), e.Bytes()...)
	e.Release()
	return frame
}

// Execute writes one command and waits for its reply.
func (c *Conn) Execute(ctx context.Context, args [][]byte) (resp.Token, error) {
	req := newRequest(encodeFrame(args))
	req.deadline = c.commandDeadline(isBlocking(args))
	if err := c.enqueue(ctx, req); err != nil {
		return resp.Token{}, err
	}
	return c.await(ctx, req)
}

// isBlocking reports whether args invokes a catalogue command that
// blocks the server until a condition is met (e.g. BLPOP, WAIT), which
// warrants the longer BlockingTimeout deadline instead of CommandTimeout.
func isBlocking(args [][]byte) bool {
	if len(args) == 0 {
		return false
	}
	cmd, ok := catalog.Lookup(string(args[0]))
	return ok && cmd.Blocking
}

// Pipeline writes every command in cmds back to back and returns their
// results in original order, regardless of reply arrival order.
func (c *Conn) Pipeline(ctx context.Context, cmds [][][]byte) ([]Result, error) {
	reqs := make([]*request, len(cmds))
	var enqueueErr error
	for i, args := range cmds {
		req := newRequest(encodeFrame(args))
		req.deadline = c.commandDeadline(isBlocking(args))
		if err := c.enqueue(ctx, req); err != nil {
			enqueueErr = err
			break
		}
		reqs[i] = req
	}

	out := make([]Result, len(cmds))
	for i, req := range reqs {
		if req == nil {
			out[i] = Result{Err: enqueueErr}
			continue
		}
		tok, err := c.await(ctx, req)
		out[i] = Result{Token: tok, Err: err}
	}
	return out, nil
}

func (c *Conn) enqueue(ctx context.Context, req *request) error {
	if st := status(c.status.Load()); st == statusClosing || st == statusClosed {
		return c.closeErrOrDefault()
	}
	select {
	case c.sendCh <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.doneCh:
		return c.closeErrOrDefault()
	}
}

func (c *Conn) await(ctx context.Context, req *request) (resp.Token, error) {
	select {
	case res := <-req.resultCh:
		return res.Token, res.Err
	case <-ctx.Done():
		req.cancelled.Store(true)
		return resp.Token{}, ctx.Err()
	case <-c.doneCh:
		req.cancelled.Store(true)
		return resp.Token{}, c.closeErrOrDefault()
	}
}

func (c *Conn) commandDeadline(blocking bool) int64 {
	d := c.opts.CommandTimeout
	if blocking {
		d = c.opts.BlockingTimeout
	}
	if d <= 0 {
		return 0
	}
	return time.Now().Add(d).Unix()
}

// Close closes the connection, failing every pending request and
// subscription with a connection-closed error.
func (c *Conn) Close() error {
	c.status.Store(int32(statusClosing))
	c.failAndClose(clienterr.Transport(clienterr.KindConnectionClosed, "closed locally"))
	return nil
}

func (c *Conn) closeErrOrDefault() error {
	if c.closeErr != nil {
		return c.closeErr
	}
	return clienterr.Transport(clienterr.KindConnectionClosed, "connection closed")
}

func (c *Conn) failAndClose(err error) {
	c.closeOnce.Do(func() {
		c.status.Store(int32(statusClosed))
		c.closeErr = err
		c.nc.Close()

		c.mu.Lock()
		pendingReqs := make([]*request, 0, c.pending.Len())
		for e := c.pending.Front(); e != nil; e = e.Next() {
			pendingReqs = append(pendingReqs, e.Value.(*request))
		}
		c.pending.Init()
		c.deadlines = nil

		subs := c.subsByID
		c.subsByID = make(map[string]*Subscription)
		c.filters = make(map[string]*filterEntry)
		c.mu.Unlock()

		closedErr := c.closeErrOrDefault()
		for _, req := range pendingReqs {
			if !req.cancelled.Load() {
				req.resultCh <- Result{Err: closedErr}
			}
		}
		for _, sub := range subs {
			sub.queue.Close()
		}

		close(c.doneCh)
	})
}

func (c *Conn) writeLoop() {
	defer rescue.HandleCrash()

	for {
		select {
		case req := <-c.sendCh:
			if req.cancelled.Load() {
				continue
			}

			c.mu.Lock()
			if status(c.status.Load()) == statusClosed {
				c.mu.Unlock()
				return
			}
			req.elem = c.pending.PushBack(req)
			if req.deadline > 0 {
				heap.Push(&c.deadlines, req)
			}
			c.mu.Unlock()

			if _, err := c.nc.Write(req.frame); err != nil {
				c.failAndClose(clienterr.Transport(clienterr.KindConnectionClosed, err.Error()))
				return
			}

		case <-c.doneCh:
			return
		}
	}
}

func (c *Conn) readLoop() {
	defer rescue.HandleCrash()

	buf := make([]byte, common.ReadWriteBlockSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.dec.Write(buf[:n])
			for {
				tok, ok, derr := c.dec.Decode()
				if derr != nil {
					c.failAndClose(clienterr.Protocol(clienterr.KindMalformedReply, derr.Error()))
					return
				}
				if !ok {
					break
				}
				c.dispatch(tok)
			}
		}
		if err != nil {
			c.failAndClose(clienterr.Transport(clienterr.KindConnectionClosed, err.Error()))
			return
		}
	}
}

func (c *Conn) dispatch(tok resp.Token) {
	if tok.Kind == resp.KindPush || looksLikeLegacyPush(tok) {
		c.handlePush(tok)
		return
	}
	// tok's byte payloads alias the decoder's buffer, which the next
	// inbound read may compact or overwrite. completeHead hands tok across
	// resultCh to a caller that may still hold it after this connection is
	// released back to its pool, so it must own its own copy.
	c.completeHead(Result{Token: tok.Clone()})
}

func (c *Conn) completeHead(res Result) {
	c.mu.Lock()
	elem := c.pending.Front()
	if elem == nil {
		c.mu.Unlock()
		return
	}
	req := elem.Value.(*request)
	c.pending.Remove(elem)
	if req.deadline > 0 && req.heapIndex >= 0 {
		heap.Remove(&c.deadlines, req.heapIndex)
	}
	c.mu.Unlock()

	if !req.cancelled.Load() {
		req.resultCh <- res
	}
}

func (c *Conn) sweepLoop() {
	defer rescue.HandleCrash()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.doneCh:
			return
		}
	}
}

func (c *Conn) sweepExpired() {
	now := fasttime.UnixTimestamp()

	c.mu.Lock()
	var expired []*request
	for len(c.deadlines) > 0 && c.deadlines[0].deadline <= now {
		req := heap.Pop(&c.deadlines).(*request)
		if req.elem != nil {
			c.pending.Remove(req.elem)
		}
		expired = append(expired, req)
	}
	c.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	for _, req := range expired {
		if !req.cancelled.Load() {
			req.resultCh <- Result{Err: clienterr.Timing(clienterr.KindCommandTimeout, "command deadline exceeded")}
		}
	}

	// The wire is no longer synchronizable once a request is abandoned
	// mid-flight: the server may still deliver the stale reply later.
	// Retire the whole connection rather than attempt a resync.
	c.failAndClose(clienterr.Timing(clienterr.KindCommandTimeout, "command timed out, connection retired"))
}
