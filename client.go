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

// Package valkeygo is a client for Valkey/Redis: one Client wraps
// either a single node.Node (standalone mode) or a cluster.Router
// (cluster mode) behind one API, dispatching every call to whichever
// backend was constructed.
package valkeygo

import (
	"context"
	"fmt"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/cluster"
	"github.com/valkeygo/valkeygo/config"
	"github.com/valkeygo/valkeygo/conn"
	"github.com/valkeygo/valkeygo/debugsrv"
	"github.com/valkeygo/valkeygo/node"
	"github.com/valkeygo/valkeygo/pool"
	"github.com/valkeygo/valkeygo/resp"
	"github.com/valkeygo/valkeygo/tracehook"
)

// Options is the decoded client configuration. See config.Options for
// every field.
type Options = config.Options

// Default returns Options at their production defaults.
func Default() Options {
	return config.Default()
}

// Load decodes a YAML configuration file at path.
func Load(path string) (Options, error) {
	return config.Load(path)
}

// Client is a connected handle to a standalone server or a cluster.
// The zero Client is not usable; construct one with NewClient.
type Client struct {
	standalone *node.Node
	cluster    *cluster.Router
}

// clientConfig collects construction-time settings that don't belong
// in the YAML-decoded Options (they carry Go values, not config data).
type clientConfig struct {
	hook tracehook.Hook
}

// Option adjusts construction-time settings not expressed in Options.
type Option func(*clientConfig)

// WithTraceHook attaches a tracehook.Hook to every command this Client
// issues. Omitted, commands carry no tracing overhead.
func WithTraceHook(hook tracehook.Hook) Option {
	return func(c *clientConfig) { c.hook = hook }
}

// NewClient dials standalone or cluster mode per opts.Cluster. In
// standalone mode only opts.Addresses[0] is used; in cluster mode
// every address is an initial discovery contact.
func NewClient(ctx context.Context, opts Options, optFns ...Option) (*Client, error) {
	cc := clientConfig{hook: tracehook.Noop}
	for _, fn := range optFns {
		fn(&cc)
	}

	if opts.Cluster {
		clusterOpts, err := opts.ToClusterOptions()
		if err != nil {
			return nil, err
		}
		clusterOpts.Hook = cc.hook
		router, err := cluster.NewRouter(ctx, clusterOpts)
		if err != nil {
			return nil, err
		}
		return &Client{cluster: router}, nil
	}

	if len(opts.Addresses) == 0 {
		return nil, fmt.Errorf("valkeygo: standalone mode requires at least one address")
	}
	nodeCfg, err := opts.ToNodeConfig(opts.Addresses[0])
	if err != nil {
		return nil, err
	}
	nodeCfg.Hook = cc.hook
	return &Client{standalone: node.New(nodeCfg, node.RolePrimary)}, nil
}

// IsCluster reports whether this Client was constructed in cluster
// mode.
func (c *Client) IsCluster() bool {
	return c.cluster != nil
}

// Execute runs one command and returns its reply.
func (c *Client) Execute(ctx context.Context, args ...string) (resp.Token, error) {
	raw := toBytes(args)
	if c.cluster != nil {
		return c.cluster.Execute(ctx, raw)
	}
	return c.standalone.Execute(ctx, raw)
}

// Pipeline runs every command back to back, preserving order.
// In cluster mode, commands are split and dispatched by owning shard.
func (c *Client) Pipeline(ctx context.Context, cmds ...[]string) ([]conn.Result, error) {
	raw := make([][][]byte, len(cmds))
	for i, cmd := range cmds {
		raw[i] = toBytes(cmd)
	}
	if c.cluster != nil {
		return c.cluster.Pipeline(ctx, raw)
	}
	return c.standalone.Pipeline(ctx, raw)
}

// Transaction runs cmds inside one MULTI/EXEC. In cluster mode every
// key across cmds must hash to the same slot.
func (c *Client) Transaction(ctx context.Context, cmds ...[]string) ([]conn.Result, error) {
	raw := make([][][]byte, len(cmds))
	for i, cmd := range cmds {
		raw[i] = toBytes(cmd)
	}
	if c.cluster != nil {
		return c.cluster.Transaction(ctx, raw)
	}
	return standaloneTransaction(ctx, c.standalone, raw)
}

// standaloneTransaction runs MULTI/cmds/EXEC on one pinned connection,
// the same sequence cluster.Router.Transaction pins per-shard but
// without any slot validation or redirect handling: a standalone
// server has exactly one owner for every key.
func standaloneTransaction(ctx context.Context, n *node.Node, cmds [][][]byte) ([]conn.Result, error) {
	full := make([][][]byte, 0, len(cmds)+2)
	full = append(full, [][]byte{[]byte("MULTI")})
	full = append(full, cmds...)
	full = append(full, [][]byte{[]byte("EXEC")})

	var results []conn.Result
	err := n.WithConnection(ctx, func(c *conn.Conn) error {
		res, err := c.Pipeline(ctx, full)
		results = res
		return err
	})
	if err != nil {
		return nil, err
	}

	execResult := results[len(results)-1]
	if execResult.Err != nil {
		return nil, execResult.Err
	}
	if execResult.Token.Kind == resp.KindNull {
		return nil, clienterr.Subscription(clienterr.KindTransactionAborted, "EXEC aborted: a WATCHed key changed")
	}

	cmdResults := execResult.Token.Elems
	out := make([]conn.Result, len(cmds))
	for i := range cmds {
		if i < len(cmdResults) {
			out[i] = conn.Result{Token: cmdResults[i]}
		} else {
			out[i] = conn.Result{Err: clienterr.Subscription(clienterr.KindTransactionAborted, "EXEC returned fewer results than queued commands")}
		}
	}
	return out, nil
}

// WithConnection pins one connection across body. keys scopes routing
// in cluster mode (every key must share one slot); readOnly lets
// cluster mode prefer a replica. Both are ignored in standalone mode.
func (c *Client) WithConnection(ctx context.Context, keys [][]byte, readOnly bool, body func(*conn.Conn) error) error {
	if c.cluster != nil {
		return c.cluster.WithConnection(ctx, keys, readOnly, body)
	}
	return c.standalone.WithConnection(ctx, body)
}

// Subscribe opens a pub/sub subscription. The returned func releases
// the underlying connection back to its pool and must be called
// exactly once.
func (c *Client) Subscribe(ctx context.Context, kind conn.FilterKind, names ...string) (*conn.Subscription, func(), error) {
	if c.cluster != nil {
		return c.cluster.Subscribe(ctx, kind, names...)
	}
	return c.standalone.Subscribe(ctx, kind, names...)
}

// Topology returns the cluster's current slot-to-shard map, or nil in
// standalone mode.
func (c *Client) Topology() *cluster.Topology {
	if c.cluster == nil {
		return nil
	}
	return c.cluster.Topology()
}

// PoolStats reports pool occupancy per node address. In standalone
// mode the map has exactly one entry. It implements
// debugsrv.Inspectable.
func (c *Client) PoolStats() map[string]debugsrv.NodeStats {
	raw := make(map[string]pool.Stats)
	if c.cluster != nil {
		raw = c.cluster.Stats()
	} else {
		raw[c.standalone.Addr] = c.standalone.Stats()
	}

	out := make(map[string]debugsrv.NodeStats, len(raw))
	for addr, s := range raw {
		out[addr] = debugsrv.NodeStats{Addr: addr, Open: s.Open, Leased: s.Leased}
	}
	return out
}

// TopologyDump returns the cluster topology in a JSON-able shape, or
// (nil, false) in standalone mode. It implements debugsrv.Inspectable.
func (c *Client) TopologyDump() (any, bool) {
	if c.cluster == nil {
		return nil, false
	}
	return c.cluster.Topology(), true
}

// Close releases every pooled connection, waiting for in-flight
// commands to finish.
func (c *Client) Close(ctx context.Context) error {
	if c.cluster != nil {
		return c.cluster.Close(ctx)
	}
	return c.standalone.Close(ctx)
}

func toBytes(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}
