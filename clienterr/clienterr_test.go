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

package clienterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(Server(KindMoved, "MOVED 1 a:1")))
	assert.True(t, Retryable(Server(KindAsk, "ASK 1 a:1")))
	assert.True(t, Retryable(Server(KindTryAgain, "TRYAGAIN")))
	assert.False(t, Retryable(Server(KindCrossSlot, "CROSSSLOT")))
	assert.False(t, Retryable(Routing(KindMaxRedirectsExceeded, "")))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(CategoryTransport, KindConnectFailed, "dial failed", cause)
	require.ErrorIs(t, err, cause)
}

func TestAggregate(t *testing.T) {
	assert.Nil(t, Aggregate())
	assert.Nil(t, Aggregate(nil, nil))

	err := Aggregate(errors.New("a"), nil, errors.New("b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestAsAndIs(t *testing.T) {
	err := Server(KindReadOnly, "READONLY You can't write")
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CategoryServer, e.Category)
	assert.True(t, Is(err, KindReadOnly))
	assert.False(t, Is(err, KindLoading))
}
