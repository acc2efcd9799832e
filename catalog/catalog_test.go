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

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_CaseInsensitive(t *testing.T) {
	c, ok := Lookup("get")
	require.True(t, ok)
	assert.Equal(t, "GET", c.Name)
	assert.True(t, c.ReadOnly)
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("NOPE")
	assert.False(t, ok)
}

func TestKeyArgs_SingleKey(t *testing.T) {
	c, _ := Lookup("GET")
	keys := c.KeyArgs([]string{"foo"})
	require.Len(t, keys, 1)
	assert.Equal(t, "foo", string(keys[0]))
}

func TestKeyArgs_Strided(t *testing.T) {
	c, _ := Lookup("MSET")
	keys := c.KeyArgs([]string{"k1", "v1", "k2", "v2"})
	require.Len(t, keys, 2)
	assert.Equal(t, "k1", string(keys[0]))
	assert.Equal(t, "k2", string(keys[1]))
}

func TestKeyArgs_Variadic(t *testing.T) {
	c, _ := Lookup("DEL")
	keys := c.KeyArgs([]string{"a", "b", "c"})
	require.Len(t, keys, 3)
}

func TestKeyArgs_KeyLess(t *testing.T) {
	c, _ := Lookup("PING")
	assert.Nil(t, c.KeyArgs([]string{}))
}

func TestLookup_Blocking(t *testing.T) {
	c, ok := Lookup("blpop")
	require.True(t, ok)
	assert.True(t, c.Blocking)

	c, ok = Lookup("GET")
	require.True(t, ok)
	assert.False(t, c.Blocking)
}

func TestCoerceArg(t *testing.T) {
	s, err := CoerceArg(100)
	require.NoError(t, err)
	assert.Equal(t, "100", s)
}
