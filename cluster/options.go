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

package cluster

import (
	"time"

	"github.com/valkeygo/valkeygo/node"
	"github.com/valkeygo/valkeygo/tracehook"
)

// ReadStrategy selects which shard member a read-only command is sent
// to.
type ReadStrategy int

const (
	// StrategyPrimary always routes reads to the shard's primary.
	StrategyPrimary ReadStrategy = iota
	// StrategyCycleReplicas round-robins reads across the shard's
	// replicas, falling back to the primary when it has none.
	StrategyCycleReplicas
	// StrategyRandomReplica picks a uniformly random replica per call.
	StrategyRandomReplica
)

// Options configures a Router.
type Options struct {
	// Discovery lists the initial "host:port" contact points used to
	// learn the cluster's topology before any shard is known.
	Discovery []string

	// NodeConfig builds the node.Config used to dial addr. The Addr
	// field is overwritten by the router; everything else (TLS, pool
	// sizing, per-connection options) is the caller's template.
	NodeConfig func(addr string) node.Config

	ReadStrategy ReadStrategy

	// MaxRedirects bounds how many MOVED/ASK/TRYAGAIN hops one logical
	// operation follows before giving up.
	MaxRedirects int

	// TryAgainBackoff is the delay before retrying a TRYAGAIN reply.
	TryAgainBackoff time.Duration

	// RefreshInterval is the period of the background topology refresh.
	RefreshInterval time.Duration

	// Hook traces topology refresh attempts. Defaults to tracehook.Noop.
	Hook tracehook.Hook
}

func (o Options) withDefaults() Options {
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = 16
	}
	if o.TryAgainBackoff <= 0 {
		o.TryAgainBackoff = 20 * time.Millisecond
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 5 * time.Minute
	}
	if o.NodeConfig == nil {
		o.NodeConfig = func(addr string) node.Config { return node.Config{Addr: addr} }
	}
	if o.Hook == nil {
		o.Hook = tracehook.Noop
	}
	return o
}
