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
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/valkeygo/valkeygo/hashslot"
)

// Endpoint is one server address: host plus port, or a Unix socket path
// carried in Host with Port left zero.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// ParseEndpoint splits a "host:port" address, as carried in MOVED/ASK
// redirects and CLUSTER SHARDS/SLOTS replies.
func ParseEndpoint(addr string) (Endpoint, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q", addr)
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", addr, err)
	}
	return Endpoint{Host: addr[:i], Port: port}, nil
}

// ShardInfo is a primary plus its replicas and the slot ranges it owns.
type ShardInfo struct {
	Primary  Endpoint
	Replicas []Endpoint
	Slots    [][2]int

	cursor atomic.Uint32
}

// nextReplica advances the shard's round-robin cursor over Replicas,
// used by the cycle_replicas read strategy. Falls back to Primary when
// the shard has no replicas.
func (s *ShardInfo) nextReplica() Endpoint {
	if len(s.Replicas) == 0 {
		return s.Primary
	}
	i := s.cursor.Add(1) - 1
	return s.Replicas[int(i)%len(s.Replicas)]
}

// Topology is an immutable snapshot of the cluster's slot ownership: an
// ordered shard list plus the dense slot -> shard map derived from it.
// A Router never mutates a Topology in place; MOVED updates and
// periodic refreshes each produce a new Topology that replaces the old
// one atomically (see Router.topo).
type Topology struct {
	Shards []*ShardInfo

	// slotShard maps a slot to an index into Shards, or -1 when the
	// slot's owner is unknown (mid-migration on both sides, or no
	// refresh has observed it yet).
	slotShard [hashslot.Count]int16
}

func newTopology() *Topology {
	t := &Topology{}
	for i := range t.slotShard {
		t.slotShard[i] = -1
	}
	return t
}

// ShardForSlot returns the shard owning slot, or false if unknown.
func (t *Topology) ShardForSlot(slot int) (*ShardInfo, bool) {
	idx := t.slotShard[slot]
	if idx < 0 {
		return nil, false
	}
	return t.Shards[idx], true
}

// clone makes a shallow copy suitable for an in-place MOVED update: the
// shard slice and slot array are copied, but ShardInfo values
// themselves (including their replica cursors) are shared until this
// clone appends a new one.
func (t *Topology) clone() *Topology {
	nt := &Topology{Shards: append([]*ShardInfo(nil), t.Shards...)}
	nt.slotShard = t.slotShard
	return nt
}

// ensureShardForAddr returns the index of a shard whose Primary matches
// addr, creating a single-endpoint shard for it if none exists yet
// (the minimal topology update MOVED implies: "this endpoint now owns
// this slot," without waiting for the next full refresh).
func (t *Topology) ensureShardForAddr(ep Endpoint) int {
	for i, s := range t.Shards {
		if s.Primary == ep {
			return i
		}
	}
	t.Shards = append(t.Shards, &ShardInfo{Primary: ep})
	return len(t.Shards) - 1
}

// Endpoints returns every known endpoint (primaries and replicas)
// across all shards, used to seed a topology refresh's candidate list.
func (t *Topology) Endpoints() []Endpoint {
	var out []Endpoint
	for _, s := range t.Shards {
		out = append(out, s.Primary)
		out = append(out, s.Replicas...)
	}
	return out
}
