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

package conn

import (
	"container/list"
	"sync/atomic"

	"github.com/valkeygo/valkeygo/resp"
)

// Result is the outcome of one command.
type Result struct {
	Token resp.Token
	Err   error
}

// request is one pending command: written once, matched against exactly
// one reply (or, for a (p|s)subscribe/(p|s)unsubscribe command, against
// one push per named filter).
type request struct {
	frame    []byte
	resultCh chan Result

	// filters and subscribe are set only for (p|s)subscribe and
	// (p|s)unsubscribe commands: filters names the expected
	// acknowledgements, subscribe distinguishes which direction, and
	// acked counts how many have arrived.
	filters   []string
	subscribe bool
	acked     int

	cancelled atomic.Bool

	deadline  int64 // unix seconds; 0 means no deadline
	heapIndex int
	elem      *list.Element
}

func newRequest(frame []byte) *request {
	return &request{frame: frame, resultCh: make(chan Result, 1), heapIndex: -1}
}
