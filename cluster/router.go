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

// Package cluster routes commands across a Valkey cluster's shards: it
// keeps a cached slot-ownership topology, dispatches each command to
// the shard that owns its key, and follows MOVED/ASK/TRYAGAIN
// redirects within a bounded budget. It owns a registry of per-node
// connection pools built lazily from a discovered topology and
// refreshed on a timer.
package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valkeygo/valkeygo/catalog"
	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/conn"
	"github.com/valkeygo/valkeygo/hashslot"
	"github.com/valkeygo/valkeygo/internal/rescue"
	"github.com/valkeygo/valkeygo/logger"
	"github.com/valkeygo/valkeygo/metrics"
	"github.com/valkeygo/valkeygo/node"
	"github.com/valkeygo/valkeygo/pool"
	"github.com/valkeygo/valkeygo/resp"
)

// Result is the outcome of one routed command.
type Result = conn.Result

// Router dispatches commands across a cluster's shards.
type Router struct {
	opts Options

	topo atomic.Pointer[Topology]

	mu         sync.Mutex
	nodes      map[string]*node.Node
	refreshing chan struct{}
	refreshErr error

	stickyCursor atomic.Uint64

	closed atomic.Bool
	stopCh chan struct{}
}

// NewRouter builds a Router and performs its first topology discovery
// against opts.Discovery before returning, so that the returned Router
// is immediately routable.
func NewRouter(ctx context.Context, opts Options) (*Router, error) {
	opts = opts.withDefaults()
	r := &Router{
		opts:   opts,
		nodes:  make(map[string]*node.Node),
		stopCh: make(chan struct{}),
	}
	r.topo.Store(newTopology())

	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	go r.refreshLoop()
	return r, nil
}

// Topology returns the router's current slot-ownership snapshot.
func (r *Router) Topology() *Topology {
	return r.topo.Load()
}

// Close stops the background refresh loop and closes every node's
// pool, waiting for in-use connections to drain.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stopCh)

	r.mu.Lock()
	nodes := make([]*node.Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, n)
	}
	r.mu.Unlock()

	var errs []error
	for _, n := range nodes {
		if err := n.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return clienterr.Aggregate(errs...)
}

// Stats reports the pool occupancy of every node the router has dialed
// so far, keyed by "host:port".
func (r *Router) Stats() map[string]pool.Stats {
	r.mu.Lock()
	nodes := make(map[string]*node.Node, len(r.nodes))
	for addr, n := range r.nodes {
		nodes[addr] = n
	}
	r.mu.Unlock()

	out := make(map[string]pool.Stats, len(nodes))
	for addr, n := range nodes {
		out[addr] = n.Stats()
	}
	return out
}

func (r *Router) getOrCreateNode(addr string, role node.Role) *node.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[addr]; ok {
		return n
	}
	cfg := r.opts.NodeConfig(addr)
	cfg.Addr = addr
	n := node.New(cfg, role)
	r.nodes[addr] = n
	return n
}

// refresh runs doRefresh, coalescing concurrent callers into a single
// in-flight attempt.
func (r *Router) refresh(ctx context.Context) error {
	r.mu.Lock()
	if ch := r.refreshing; ch != nil {
		r.mu.Unlock()
		select {
		case <-ch:
			return r.refreshErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	ch := make(chan struct{})
	r.refreshing = ch
	r.mu.Unlock()

	ctx, span := r.opts.Hook.StartRefresh(ctx)
	err := r.doRefresh(ctx)
	span.RecordError(err)
	span.End()
	metrics.ObserveTopologyRefresh(err)

	r.mu.Lock()
	r.refreshErr = err
	r.refreshing = nil
	r.mu.Unlock()
	close(ch)
	return err
}

func (r *Router) refreshLoop() {
	defer rescue.HandleCrash()

	ticker := time.NewTicker(r.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := r.refresh(ctx); err != nil {
				logger.Warnf("cluster topology refresh failed: %v", err)
			}
			cancel()
		case <-r.stopCh:
			return
		}
	}
}

// doRefresh tries CLUSTER SHARDS (falling back to CLUSTER SLOTS)
// against, in order: every endpoint of the current topology, every
// node already in the registry, then the original discovery contacts.
// It stops at the first candidate that answers.
func (r *Router) doRefresh(ctx context.Context) error {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(addr string) {
		if _, ok := seen[addr]; ok || addr == "" {
			return
		}
		seen[addr] = struct{}{}
		candidates = append(candidates, addr)
	}

	for _, ep := range r.topo.Load().Endpoints() {
		add(ep.String())
	}
	r.mu.Lock()
	for addr := range r.nodes {
		add(addr)
	}
	r.mu.Unlock()
	for _, addr := range r.opts.Discovery {
		add(addr)
	}

	var errs []error
	for _, addr := range candidates {
		n := r.getOrCreateNode(addr, node.RolePrimary)
		topo, err := r.fetchTopology(ctx, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.topo.Store(topo)
		return nil
	}
	return clienterr.Aggregate(errs...)
}

func (r *Router) fetchTopology(ctx context.Context, n *node.Node) (*Topology, error) {
	tok, err := n.Execute(ctx, [][]byte{[]byte("CLUSTER"), []byte("SHARDS")})
	if err != nil {
		return nil, err
	}
	if !tok.Kind.IsError() {
		return decodeShardsReply(tok)
	}

	tok, err = n.Execute(ctx, [][]byte{[]byte("CLUSTER"), []byte("SLOTS")})
	if err != nil {
		return nil, err
	}
	if tok.Kind.IsError() {
		return nil, clienterr.Server(clienterr.KindGenericServer, string(tok.Str))
	}
	return decodeSlotsReply(tok)
}

// markMoved records that addr now owns slot, producing a new Topology
// without waiting for the next periodic refresh.
func (r *Router) markMoved(slot int, addr string) {
	ep, err := ParseEndpoint(addr)
	if err != nil {
		return
	}
	for {
		old := r.topo.Load()
		next := old.clone()
		idx := next.ensureShardForAddr(ep)
		next.slotShard[slot] = int16(idx)
		if r.topo.CompareAndSwap(old, next) {
			return
		}
	}
}

// classify resolves a command's name, affected keys, and read-only
// eligibility from the catalogue. An unrecognized command is treated
// as a writable, key-less administrative command, the conservative
// default.
func classify(args [][]byte) (keys [][]byte, readOnly bool, err error) {
	if len(args) == 0 {
		return nil, false, fmt.Errorf("empty command")
	}
	cmd, ok := catalog.Lookup(string(args[0]))
	if !ok {
		return nil, false, nil
	}
	strArgs := make([]string, len(args)-1)
	for i, a := range args[1:] {
		strArgs[i] = string(a)
	}
	return cmd.KeyArgs(strArgs), cmd.ReadOnly, nil
}

func slotForKeys(keys [][]byte) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	slot := hashslot.Slot(keys[0])
	for _, k := range keys[1:] {
		if hashslot.Slot(k) != slot {
			return 0, clienterr.Server(clienterr.KindCrossSlot, "command keys span multiple slots")
		}
	}
	return slot, nil
}

// selectNode resolves the node to send a command to. overrideAddr, set
// by a MOVED/ASK/TRYAGAIN retry, bypasses topology-driven routing
// entirely and pins the request to that address.
func (r *Router) selectNode(slot int, haveSlot, readOnly bool, overrideAddr string) (*node.Node, error) {
	if overrideAddr != "" {
		return r.getOrCreateNode(overrideAddr, node.RolePrimary), nil
	}

	topo := r.topo.Load()
	if !haveSlot {
		return r.stickyNode(topo), nil
	}

	shard, ok := topo.ShardForSlot(slot)
	if !ok {
		return nil, clienterr.Routing(clienterr.KindUnknownSlotOwner, fmt.Sprintf("slot %d has no known owner", slot))
	}
	if !readOnly {
		return r.getOrCreateNode(shard.Primary.String(), node.RolePrimary), nil
	}

	switch r.opts.ReadStrategy {
	case StrategyRandomReplica:
		if len(shard.Replicas) == 0 {
			return r.getOrCreateNode(shard.Primary.String(), node.RolePrimary), nil
		}
		ep := shard.Replicas[rand.Intn(len(shard.Replicas))]
		return r.getOrCreateNode(ep.String(), node.RoleReplica), nil
	case StrategyCycleReplicas:
		ep := shard.nextReplica()
		role := node.RoleReplica
		if ep == shard.Primary {
			role = node.RolePrimary
		}
		return r.getOrCreateNode(ep.String(), role), nil
	default:
		return r.getOrCreateNode(shard.Primary.String(), node.RolePrimary), nil
	}
}

// stickyNode picks a stable node for key-less commands (PING, CLUSTER
// INFO, administrative calls): the primary of the topology's first
// shard, or, if no shard is known yet, one of the configured discovery
// addresses, taken round-robin.
func (r *Router) stickyNode(topo *Topology) *node.Node {
	if len(topo.Shards) > 0 {
		return r.getOrCreateNode(topo.Shards[0].Primary.String(), node.RolePrimary)
	}
	if len(r.opts.Discovery) > 0 {
		i := r.stickyCursor.Add(1) - 1
		addr := r.opts.Discovery[int(i)%len(r.opts.Discovery)]
		return r.getOrCreateNode(addr, node.RolePrimary)
	}
	return r.getOrCreateNode("", node.RolePrimary)
}

// Execute routes one command to the shard owning its keys (or a sticky
// node for key-less commands), following MOVED/ASK/TRYAGAIN within the
// router's redirect budget.
func (r *Router) Execute(ctx context.Context, args [][]byte) (resp.Token, error) {
	keys, readOnly, err := classify(args)
	if err != nil {
		return resp.Token{}, err
	}
	slot, err := slotForKeys(keys)
	if err != nil {
		return resp.Token{}, err
	}
	haveSlot := len(keys) > 0

	pinnedAddr := ""
	asking := false
	redirects := 0

	for {
		n, err := r.selectNode(slot, haveSlot, readOnly, pinnedAddr)
		if err != nil {
			return resp.Token{}, err
		}

		var tok resp.Token
		if asking {
			err = n.WithConnection(ctx, func(c *conn.Conn) error {
				if _, err := c.Execute(ctx, [][]byte{[]byte("ASKING")}); err != nil {
					return err
				}
				tok, err = c.Execute(ctx, args)
				return err
			})
		} else {
			tok, err = n.Execute(ctx, args)
		}
		asking = false
		if err != nil {
			return resp.Token{}, err
		}
		if !tok.Kind.IsError() {
			return tok, nil
		}

		kind, parts := parseServerError(string(tok.Str))
		switch kind {
		case clienterr.KindMoved, clienterr.KindAsk, clienterr.KindTryAgain:
			metrics.ObserveRedirect(string(kind))
		}
		switch kind {
		case clienterr.KindMoved:
			if redirects >= r.opts.MaxRedirects {
				return resp.Token{}, clienterr.Routing(clienterr.KindMaxRedirectsExceeded, "MOVED redirects exhausted")
			}
			redirects++
			if len(parts) >= 2 {
				if s, err := strconv.Atoi(parts[0]); err == nil {
					r.markMoved(s, parts[1])
				}
				pinnedAddr = parts[1]
			}
		case clienterr.KindAsk:
			if redirects >= r.opts.MaxRedirects {
				return resp.Token{}, clienterr.Routing(clienterr.KindMaxRedirectsExceeded, "ASK redirects exhausted")
			}
			redirects++
			if len(parts) >= 2 {
				pinnedAddr = parts[1]
			}
			asking = true
		case clienterr.KindTryAgain:
			if redirects >= r.opts.MaxRedirects {
				return resp.Token{}, clienterr.Routing(clienterr.KindMaxRedirectsExceeded, "TRYAGAIN retries exhausted")
			}
			redirects++
			pinnedAddr = n.Addr
			select {
			case <-time.After(r.opts.TryAgainBackoff):
			case <-ctx.Done():
				return resp.Token{}, ctx.Err()
			}
		case clienterr.KindClusterDown:
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = r.refresh(ctx)
			}()
			return resp.Token{}, clienterr.Server(kind, string(tok.Str))
		default:
			return resp.Token{}, clienterr.Server(kind, string(tok.Str))
		}
	}
}

// WithConnection pins one connection across body, routed the same way
// Execute would route a single command touching keys.
func (r *Router) WithConnection(ctx context.Context, keys [][]byte, readOnly bool, body func(*conn.Conn) error) error {
	slot, err := slotForKeys(keys)
	if err != nil {
		return err
	}
	n, err := r.selectNode(slot, len(keys) > 0, readOnly, "")
	if err != nil {
		return err
	}
	return n.WithConnection(ctx, body)
}

// Subscribe routes a (p|s)subscribe to an appropriate node: shard
// channels pin to the shard owning the channel's hash slot; ordinary
// channels and patterns go to any node since Valkey's pub/sub fans
// ordinary messages out cluster-wide.
func (r *Router) Subscribe(ctx context.Context, kind conn.FilterKind, names ...string) (*conn.Subscription, func(), error) {
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("subscribe requires at least one name")
	}

	var n *node.Node
	var err error
	if kind == conn.FilterShardChannel {
		slot := hashslot.Slot([]byte(names[0]))
		for _, name := range names[1:] {
			if hashslot.Slot([]byte(name)) != slot {
				return nil, nil, clienterr.Routing(clienterr.KindCrossSlotInPipeline, "shard channels span multiple slots")
			}
		}
		n, err = r.selectNode(slot, true, false, "")
	} else {
		n, err = r.selectNode(0, false, false, "")
	}
	if err != nil {
		return nil, nil, err
	}
	return n.Subscribe(ctx, kind, names...)
}
