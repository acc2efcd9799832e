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

package conn

import (
	"container/heap"
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/internal/pubsub"
	"github.com/valkeygo/valkeygo/metrics"
	"github.com/valkeygo/valkeygo/resp"
)

// FilterKind is the family a subscribed name belongs to.
type FilterKind string

const (
	FilterChannel      FilterKind = "channel"
	FilterPattern      FilterKind = "pattern"
	FilterShardChannel FilterKind = "shard_channel"
	FilterInvalidate   FilterKind = "invalidate"
)

// filterState is one filter's lifecycle: uninitialized -> opening ->
// active -> closing -> closed.
type filterState int

const (
	filterUninitialized filterState = iota
	filterOpening
	filterActive
	filterClosing
)

// filterEntry tracks one subscribed name's wire-level state plus the
// local Subscriptions currently attached to it.
type filterEntry struct {
	kind  FilterKind
	name  string
	state filterState
	subs  map[*Subscription]struct{}
}

func filterKey(kind FilterKind, name string) string {
	return string(kind) + ":" + name
}

// Message is one delivered pub/sub payload.
type Message struct {
	Kind    string // "message", "pmessage", "smessage", "invalidate"
	Channel string
	Pattern string
	Payload []byte
}

// Subscription is a caller's handle onto the filters named in one
// Subscribe call on a Conn, all of one FilterKind; messages for any of
// them arrive on the same Next stream. Filters cannot be added to an
// existing Subscription.
type Subscription struct {
	id      string
	conn    *Conn
	queue   pubsub.Queue
	closed  atomic.Bool
	filters map[string]struct{}
}

// newSubscriptionQueue mints a bounded delivery queue. The teacher's
// PubSub type is the vehicle only for its Queue implementation; this
// package owns the fan-out and filter-state logic itself.
func newSubscriptionQueue(size int) pubsub.Queue {
	return pubsub.New().Subscribe(size)
}

// Next blocks until a message arrives, ctx is cancelled, or the
// subscription or its connection is closed.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	for {
		if s.closed.Load() {
			return Message{}, clienterr.Subscription(clienterr.KindSubscribeError, "subscription closed")
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-s.conn.doneCh:
			return Message{}, s.conn.closeErrOrDefault()
		default:
		}

		v, ok := s.queue.PopTimeout(200 * time.Millisecond)
		if !ok {
			continue
		}
		msg, ok := v.(Message)
		if !ok {
			continue
		}
		return msg, nil
	}
}

// Close unsubscribes from every filter this Subscription attached to
// and releases its delivery queue.
func (s *Subscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.unsubscribeAll(s)
}

// Subscribe issues SUBSCRIBE/PSUBSCRIBE/SSUBSCRIBE for names and
// returns once the server has acknowledged every one.
func (c *Conn) Subscribe(ctx context.Context, kind FilterKind, names ...string) (*Subscription, error) {
	sub := &Subscription{
		id:      uuid.New().String(),
		conn:    c,
		queue:   newSubscriptionQueue(c.opts.QueueSize),
		filters: make(map[string]struct{}, len(names)),
	}

	filterNames := append([]string(nil), names...)
	args := make([][]byte, 0, len(names)+1)
	args = append(args, []byte(subscribeCommandName(kind, true)))
	for _, n := range names {
		args = append(args, []byte(n))
	}

	req := newRequest(encodeFrame(args))
	req.subscribe = true
	req.filters = filterNames
	req.deadline = c.commandDeadline(false)

	c.mu.Lock()
	for _, n := range names {
		key := filterKey(kind, n)
		fe, ok := c.filters[key]
		if !ok {
			fe = &filterEntry{kind: kind, name: n, subs: make(map[*Subscription]struct{})}
			c.filters[key] = fe
		}
		if fe.state == filterUninitialized {
			fe.state = filterOpening
		}
		fe.subs[sub] = struct{}{}
		sub.filters[key] = struct{}{}
	}
	c.subsByID[sub.id] = sub
	c.mu.Unlock()

	if err := c.enqueue(ctx, req); err != nil {
		return nil, err
	}
	if _, err := c.await(ctx, req); err != nil {
		return nil, err
	}
	return sub, nil
}

// unsubscribeAll detaches sub from every filter it holds, issuing
// UNSUBSCRIBE/PUNSUBSCRIBE/SUNSUBSCRIBE for any filter whose last
// subscriber just left.
func (c *Conn) unsubscribeAll(sub *Subscription) error {
	c.mu.Lock()
	var channels, patterns, shardChannels []string
	for key := range sub.filters {
		fe, ok := c.filters[key]
		if !ok {
			continue
		}
		delete(fe.subs, sub)
		if len(fe.subs) != 0 {
			continue
		}
		switch fe.state {
		case filterActive:
			fe.state = filterClosing
			switch fe.kind {
			case FilterChannel:
				channels = append(channels, fe.name)
			case FilterPattern:
				patterns = append(patterns, fe.name)
			case FilterShardChannel:
				shardChannels = append(shardChannels, fe.name)
			}
		case filterOpening:
			fe.state = filterClosing
		}
	}
	delete(c.subsByID, sub.id)
	c.mu.Unlock()

	sub.queue.Close()

	var errs []error
	if len(channels) > 0 {
		errs = append(errs, c.sendUnsubscribe(FilterChannel, channels))
	}
	if len(patterns) > 0 {
		errs = append(errs, c.sendUnsubscribe(FilterPattern, patterns))
	}
	if len(shardChannels) > 0 {
		errs = append(errs, c.sendUnsubscribe(FilterShardChannel, shardChannels))
	}
	return clienterr.Aggregate(errs...)
}

func (c *Conn) sendUnsubscribe(kind FilterKind, names []string) error {
	args := make([][]byte, 0, len(names)+1)
	args = append(args, []byte(subscribeCommandName(kind, false)))
	for _, n := range names {
		args = append(args, []byte(n))
	}

	req := newRequest(encodeFrame(args))
	req.filters = append([]string(nil), names...)
	req.deadline = c.commandDeadline(false)

	ctx := context.Background()
	if err := c.enqueue(ctx, req); err != nil {
		return err
	}
	_, err := c.await(ctx, req)
	return err
}

func subscribeCommandName(kind FilterKind, subscribing bool) string {
	switch kind {
	case FilterPattern:
		if subscribing {
			return "PSUBSCRIBE"
		}
		return "PUNSUBSCRIBE"
	case FilterShardChannel:
		if subscribing {
			return "SSUBSCRIBE"
		}
		return "SUNSUBSCRIBE"
	default:
		if subscribing {
			return "SUBSCRIBE"
		}
		return "UNSUBSCRIBE"
	}
}

// handlePush dispatches one server-pushed frame: subscription
// acknowledgements complete the head of the pending FIFO when they are
// the filter the head command is waiting on, everything else is
// delivered to the matching filter's attached Subscriptions.
func (c *Conn) handlePush(tok resp.Token) {
	elems := tok.Elems
	if len(elems) < 2 {
		return
	}
	typ, ok := stringElem(elems[0])
	if !ok {
		return
	}

	switch typ {
	case "subscribe", "psubscribe", "ssubscribe":
		c.handleSubAck(filterKindFor(typ), elems, true)
	case "unsubscribe", "punsubscribe", "sunsubscribe":
		c.handleSubAck(filterKindFor(typ), elems, false)
	case "message":
		if len(elems) >= 3 {
			c.deliver(FilterChannel, stringOf(elems[1]), Message{Kind: typ, Channel: stringOf(elems[1]), Payload: bytesOf(elems[2])})
		}
	case "pmessage":
		if len(elems) >= 4 {
			c.deliver(FilterPattern, stringOf(elems[1]), Message{Kind: typ, Pattern: stringOf(elems[1]), Channel: stringOf(elems[2]), Payload: bytesOf(elems[3])})
		}
	case "smessage":
		if len(elems) >= 3 {
			c.deliver(FilterShardChannel, stringOf(elems[1]), Message{Kind: typ, Channel: stringOf(elems[1]), Payload: bytesOf(elems[2])})
		}
	case "invalidate":
		c.deliverInvalidate(elems[1])
	}
}

func (c *Conn) handleSubAck(kind FilterKind, elems []resp.Token, subscribing bool) {
	name := stringOf(elems[1])
	key := filterKey(kind, name)

	c.mu.Lock()
	var needsTrailingUnsub bool
	if fe := c.filters[key]; fe != nil {
		if subscribing && fe.state == filterOpening {
			fe.state = filterActive
		}
		if !subscribing && len(fe.subs) == 0 && fe.state == filterClosing {
			delete(c.filters, key)
		}
		// A close() arrived while the subscribe was still in flight: the
		// ack just turned opening into active with zero subscribers
		// attached, so finish the job it was waiting to do.
		if subscribing && fe.state == filterActive && len(fe.subs) == 0 {
			fe.state = filterClosing
			needsTrailingUnsub = true
		}
	}

	var completed *request
	if front := c.pending.Front(); front != nil {
		req := front.Value.(*request)
		if req.subscribe == subscribing && matchesFilter(req, name) {
			req.acked++
			if req.acked >= len(req.filters) {
				c.pending.Remove(front)
				if req.deadline > 0 && req.heapIndex >= 0 {
					heap.Remove(&c.deadlines, req.heapIndex)
				}
				completed = req
			}
		}
	}
	c.mu.Unlock()

	if needsTrailingUnsub {
		go c.sendUnsubscribe(kind, []string{name})
	}

	if completed != nil && !completed.cancelled.Load() {
		completed.resultCh <- Result{Token: resp.Token{Kind: resp.KindBoolean, Bool: true}}
	}
}

func (c *Conn) deliver(kind FilterKind, name string, msg Message) {
	key := filterKey(kind, name)

	c.mu.Lock()
	var targets []*Subscription
	if fe := c.filters[key]; fe != nil && fe.state == filterActive {
		for s := range fe.subs {
			targets = append(targets, s)
		}
	}
	c.mu.Unlock()

	if len(targets) > 0 {
		metrics.ObserveSubscriptionPush(string(kind))
	}
	for _, s := range targets {
		s.queue.Push(msg)
	}
}

func (c *Conn) deliverInvalidate(keysTok resp.Token) {
	c.mu.Lock()
	var targets []*Subscription
	if fe := c.filters[filterKey(FilterInvalidate, "")]; fe != nil {
		for s := range fe.subs {
			targets = append(targets, s)
		}
	}
	c.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	keys := make([][]byte, 0, len(keysTok.Elems))
	for _, e := range keysTok.Elems {
		keys = append(keys, bytesOf(e))
	}
	msg := Message{Kind: "invalidate", Payload: joinKeys(keys)}
	for _, s := range targets {
		s.queue.Push(msg)
	}
}

func joinKeys(keys [][]byte) []byte {
	var out []byte
	for i, k := range keys {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, k...)
	}
	return out
}

func stringElem(t resp.Token) (string, bool) {
	switch t.Kind {
	case resp.KindSimpleString, resp.KindBulkString, resp.KindVerbatimString:
		return string(t.Str), true
	default:
		return "", false
	}
}

func stringOf(t resp.Token) string {
	s, _ := stringElem(t)
	return s
}

func bytesOf(t resp.Token) []byte {
	return append([]byte(nil), t.Str...)
}

func matchesFilter(req *request, name string) bool {
	for _, f := range req.filters {
		if f == name {
			return true
		}
	}
	return false
}

func filterKindFor(pushType string) FilterKind {
	switch pushType {
	case "psubscribe", "punsubscribe":
		return FilterPattern
	case "ssubscribe", "sunsubscribe":
		return FilterShardChannel
	default:
		return FilterChannel
	}
}

var legacyPushTypes = map[string]struct{}{
	"message": {}, "pmessage": {}, "smessage": {},
	"subscribe": {}, "unsubscribe": {}, "psubscribe": {}, "punsubscribe": {},
	"ssubscribe": {}, "sunsubscribe": {}, "invalidate": {},
}

// looksLikeLegacyPush reports whether tok is a bare array carrying one
// of the reserved push type names as its first element, the RESP2
// on-the-wire shape some deployments still emit even after HELLO 3.
func looksLikeLegacyPush(tok resp.Token) bool {
	if tok.Kind != resp.KindArray || len(tok.Elems) == 0 {
		return false
	}
	s, ok := stringElem(tok.Elems[0])
	if !ok {
		return false
	}
	_, known := legacyPushTypes[s]
	return known
}
