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

package hashslot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlot_KnownVectors(t *testing.T) {
	assert.Equal(t, 12182, SlotString("foo"))
	assert.Equal(t, SlotString("foo"), SlotString("{foo}bar"))
	assert.Equal(t, 0, SlotString(""))
	assert.Equal(t, SlotString("{}foo"), SlotString("{}foo"))
}

func TestSlot_HashTagExtraction(t *testing.T) {
	// Same tag, different surrounding text, must collide on the same slot.
	assert.Equal(t, SlotString("{user1000}.following"), SlotString("{user1000}.followers"))

	// Nested braces: only the first `{`..`}` pair counts.
	assert.Equal(t, SlotString("{a}{b}"), SlotString("a"))

	// No closing brace at all: whole key is hashed.
	assert.NotEqual(t, SlotString("{foo"), SlotString("foo"))
}

func TestSlot_Range(t *testing.T) {
	for _, k := range []string{"a", "b", "hello world", "{}", "{x}", "", "12345"} {
		s := SlotString(k)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, Count)
	}
}
