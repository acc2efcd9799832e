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

package pool

import (
	"context"
	"time"

	"github.com/valkeygo/valkeygo/common"
	"github.com/valkeygo/valkeygo/conn"
)

// Dialer opens and handshakes a brand new connection for this pool's
// endpoint. readOnly requests a connection provisioned for replica reads
// (the pool sends READONLY as the final handshake step per §9).
type Dialer func(ctx context.Context, readOnly bool, trackingRedirect int64) (*conn.Conn, error)

// Options bounds and tunes a single endpoint's connection pool.
type Options struct {
	Min, Max int

	// MaxIdleAge retires an idle connection on its next lease rather
	// than handing out a possibly-stale socket.
	MaxIdleAge time.Duration

	// LeaseTimeout bounds how long a waiter queues for capacity before
	// Lease gives up; zero means wait until ctx is done.
	LeaseTimeout time.Duration

	Dialer Dialer
}

func (o Options) withDefaults() Options {
	if o.Max <= 0 {
		o.Max = common.DefaultPoolSize()
	}
	if o.Min < 0 {
		o.Min = 0
	}
	if o.Min > o.Max {
		o.Min = o.Max
	}
	if o.MaxIdleAge <= 0 {
		o.MaxIdleAge = 10 * time.Minute
	}
	return o
}
