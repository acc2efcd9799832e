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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkeygo/valkeygo/cluster"
)

func TestLoadContentOverridesDefaults(t *testing.T) {
	opts, err := LoadContent([]byte(`
addresses: ["10.0.0.1:6379", "10.0.0.2:6379"]
cluster: true
poolMax: 50
commandTimeout: 500ms
readStrategy: cycle_replicas
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.1:6379", "10.0.0.2:6379"}, opts.Addresses)
	assert.True(t, opts.Cluster)
	assert.Equal(t, 50, opts.PoolMax)
	assert.Equal(t, 500*time.Millisecond, opts.CommandTimeout)
	// Untouched fields keep their production default.
	assert.Equal(t, "tcp", opts.Network)
	assert.Equal(t, 16, opts.MaxRedirects)
}

func TestToClusterOptionsMapsReadStrategy(t *testing.T) {
	opts := Default()
	opts.Addresses = []string{"127.0.0.1:6379"}
	opts.ReadStrategy = "random_replica"

	co, err := opts.ToClusterOptions()
	require.NoError(t, err)
	assert.Equal(t, cluster.StrategyRandomReplica, co.ReadStrategy)
	assert.Equal(t, opts.Addresses, co.Discovery)

	nodeCfg := co.NodeConfig("127.0.0.1:6379")
	assert.Equal(t, "127.0.0.1:6379", nodeCfg.Addr)
	assert.Nil(t, nodeCfg.TLS)
}

func TestTLSDisabledBuildsNilConfig(t *testing.T) {
	tlsCfg, err := TLSOptions{}.Build()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}
