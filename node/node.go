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

// Package node wraps a pool.Pool for one server endpoint: a dialer and
// a RESP encoder/decoder pair wired into one endpoint client that
// exposes Execute, Pipeline, Subscribe, and WithConnection.
package node

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/conn"
	"github.com/valkeygo/valkeygo/metrics"
	"github.com/valkeygo/valkeygo/pool"
	"github.com/valkeygo/valkeygo/resp"
	"github.com/valkeygo/valkeygo/tracehook"
)

// Role distinguishes a node's position within its shard.
type Role int

const (
	RolePrimary Role = iota
	RoleReplica
)

func (r Role) String() string {
	if r == RoleReplica {
		return "replica"
	}
	return "primary"
}

// Config configures how a Node dials connections for its endpoint.
type Config struct {
	Network string // "tcp" or "unix"
	Addr    string

	TLS *tls.Config // nil disables TLS; TLS itself is a pass-through collaborator

	Pool pool.Options
	Conn conn.Options

	// Hook traces Execute/Pipeline round trips. Defaults to
	// tracehook.Noop.
	Hook tracehook.Hook
}

// Node is a single server endpoint: one address, one role, one pool.
type Node struct {
	Addr string
	Role Role

	cfg  Config
	pool *pool.Pool
}

// New constructs a Node and its pool. No connection is dialed until the
// first Lease.
func New(cfg Config, role Role) *Node {
	if cfg.Hook == nil {
		cfg.Hook = tracehook.Noop
	}
	n := &Node{Addr: cfg.Addr, Role: role, cfg: cfg}

	network := cfg.Network
	if network == "" {
		network = "tcp"
	}

	poolOpts := cfg.Pool
	poolOpts.Dialer = func(ctx context.Context, readOnly bool, trackingRedirect int64) (*conn.Conn, error) {
		return n.dial(ctx, network, readOnly, trackingRedirect)
	}
	n.pool = pool.New(poolOpts, role == RoleReplica)
	return n
}

func (n *Node) dial(ctx context.Context, network string, readOnly bool, trackingRedirect int64) (*conn.Conn, error) {
	opts := n.cfg.Conn
	opts.ReadOnly = readOnly
	opts.TrackingRedirect = trackingRedirect

	if n.cfg.TLS == nil {
		return conn.Dial(ctx, network, n.Addr, opts)
	}

	d := tls.Dialer{Config: n.cfg.TLS}
	nc, err := d.DialContext(ctx, network, n.Addr)
	if err != nil {
		return nil, clienterr.Transport(clienterr.KindConnectFailed, err.Error())
	}
	return conn.New(nc, opts)
}

// Execute leases a connection, runs one command, and returns it.
func (n *Node) Execute(ctx context.Context, args [][]byte) (resp.Token, error) {
	start := time.Now()
	var name string
	if len(args) > 0 {
		name = string(args[0])
	}

	ctx, span := n.cfg.Hook.StartCommand(ctx, n.Addr, name)
	defer span.End()

	c, err := n.pool.Lease(ctx)
	if err != nil {
		span.RecordError(err)
		metrics.ObserveCommand(name, err, time.Since(start).Seconds())
		return resp.Token{}, err
	}
	defer n.pool.Release(c)

	tok, err := c.Execute(ctx, args)
	span.RecordError(err)
	metrics.ObserveCommand(name, err, time.Since(start).Seconds())
	return tok, err
}

// Pipeline leases one connection and runs every command on it back to
// back, preserving input order in the output.
func (n *Node) Pipeline(ctx context.Context, cmds [][][]byte) ([]conn.Result, error) {
	var name string
	if len(cmds) > 0 && len(cmds[0]) > 0 {
		name = string(cmds[0][0])
	}

	ctx, span := n.cfg.Hook.StartCommand(ctx, n.Addr, name)
	defer span.End()

	c, err := n.pool.Lease(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer n.pool.Release(c)
	results, err := c.Pipeline(ctx, cmds)
	span.RecordError(err)
	return results, err
}

// WithConnection pins one leased connection across body, for callers
// that need several commands to observe each other on the same
// connection (e.g. WATCH/MULTI/EXEC without the cluster transaction
// helper).
func (n *Node) WithConnection(ctx context.Context, body func(*conn.Conn) error) error {
	c, err := n.pool.Lease(ctx)
	if err != nil {
		return err
	}
	defer n.pool.Release(c)
	return body(c)
}

// Subscribe issues a subscribe command on the pool's shared
// subscription connection.
func (n *Node) Subscribe(ctx context.Context, kind conn.FilterKind, names ...string) (*conn.Subscription, func(), error) {
	c, release, err := n.pool.AcquireSubConn(ctx)
	if err != nil {
		return nil, nil, err
	}
	sub, err := c.Subscribe(ctx, kind, names...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return sub, release, nil
}

// Stats reports the node's pool occupancy, publishing it to the
// node's Prometheus gauges as a side effect.
func (n *Node) Stats() pool.Stats {
	s := n.pool.Stats()
	metrics.SetPoolStats(n.Addr, s.Open, s.Leased)
	return s
}

// Close shuts the node's pool down, waiting for in-use connections to
// drain.
func (n *Node) Close(ctx context.Context) error {
	return n.pool.Shutdown(ctx, true)
}
