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

import "time"

// Options configures a Conn's handshake and timeout behavior.
type Options struct {
	DialTimeout time.Duration

	// CommandTimeout bounds ordinary commands. BlockingTimeout bounds
	// commands the catalogue marks as blocking (e.g. BLPOP); zero means
	// no deadline.
	CommandTimeout  time.Duration
	BlockingTimeout time.Duration

	Username string
	Password string

	LibName    string
	LibVersion string
	NoEvict    bool

	// TrackingRedirect, when non-zero, is the client id of the shared
	// subscription connection that CLIENT TRACKING REDIRECT targets.
	TrackingRedirect int64

	// ReadOnly issues READONLY as the final handshake step, for
	// connections a pool provisions against a replica.
	ReadOnly bool

	// QueueSize bounds the per-Subscription delivery queue.
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 3 * time.Second
	}
	if o.LibName == "" {
		o.LibName = "valkeygo"
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	return o
}
