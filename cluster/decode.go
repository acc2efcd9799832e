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
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/hashslot"
	"github.com/valkeygo/valkeygo/resp"
)

// shardRaw/nodeRaw mirror the RESP3 map shape of one CLUSTER SHARDS
// entry, decoded via mapstructure from Token.Native() the same way the
// teacher decodes its wire payloads into typed records.
type shardRaw struct {
	Slots []int64   `mapstructure:"slots"`
	Nodes []nodeRaw `mapstructure:"nodes"`
}

type nodeRaw struct {
	ID       string `mapstructure:"id"`
	Endpoint string `mapstructure:"endpoint"`
	IP       string `mapstructure:"ip"`
	Port     int64  `mapstructure:"port"`
	Role     string `mapstructure:"role"`
}

func decodeShardsReply(tok resp.Token) (*Topology, error) {
	native := tok.Native()
	arr, ok := native.([]any)
	if !ok {
		return nil, clienterr.Protocol(clienterr.KindMalformedReply, "CLUSTER SHARDS did not return an array")
	}

	var raws []shardRaw
	if err := mapstructure.Decode(arr, &raws); err != nil {
		return nil, errors.Wrap(err, "decoding CLUSTER SHARDS reply")
	}
	return buildTopology(raws), nil
}

func buildTopology(raws []shardRaw) *Topology {
	t := newTopology()

	for _, raw := range raws {
		shard := &ShardInfo{}
		for _, n := range raw.Nodes {
			host := n.Endpoint
			if host == "" || host == "?" {
				host = n.IP
			}
			ep := Endpoint{Host: host, Port: int(n.Port)}
			switch strings.ToLower(n.Role) {
			case "master", "primary":
				shard.Primary = ep
			case "replica", "slave":
				shard.Replicas = append(shard.Replicas, ep)
			}
		}

		for i := 0; i+1 < len(raw.Slots); i += 2 {
			start, end := int(raw.Slots[i]), int(raw.Slots[i+1])
			shard.Slots = append(shard.Slots, [2]int{start, end})
		}

		idx := len(t.Shards)
		t.Shards = append(t.Shards, shard)
		for _, rng := range shard.Slots {
			for s := rng[0]; s <= rng[1] && s < hashslot.Count; s++ {
				t.slotShard[s] = int16(idx)
			}
		}
	}

	return t
}

// decodeSlotsReply parses the older, positional CLUSTER SLOTS reply:
// [start, end, [ip, port, id, ...], [ip, port, id, ...]...] per entry,
// the first triple being the primary and the rest replicas. Used only
// when a server doesn't understand CLUSTER SHARDS.
func decodeSlotsReply(tok resp.Token) (*Topology, error) {
	t := newTopology()

	for _, entry := range tok.Elems {
		if entry.Kind != resp.KindArray || len(entry.Elems) < 3 {
			continue
		}
		start := int(entry.Elems[0].Int)
		end := int(entry.Elems[1].Int)

		shard := &ShardInfo{Slots: [][2]int{{start, end}}}
		for i := 2; i < len(entry.Elems); i++ {
			n := entry.Elems[i]
			if n.Kind != resp.KindArray || len(n.Elems) < 2 {
				continue
			}
			ep := Endpoint{Host: string(n.Elems[0].Str), Port: int(n.Elems[1].Int)}
			if i == 2 {
				shard.Primary = ep
			} else {
				shard.Replicas = append(shard.Replicas, ep)
			}
		}

		idx := len(t.Shards)
		t.Shards = append(t.Shards, shard)
		for s := start; s <= end && s < hashslot.Count; s++ {
			t.slotShard[s] = int16(idx)
		}
	}

	return t, nil
}
