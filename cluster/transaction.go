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
	"context"
	"strconv"
	"time"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/conn"
	"github.com/valkeygo/valkeygo/hashslot"
	"github.com/valkeygo/valkeygo/metrics"
	"github.com/valkeygo/valkeygo/node"
	"github.com/valkeygo/valkeygo/resp"
)

// Transaction runs cmds inside one MULTI/EXEC on the shard owning
// their (necessarily shared) slot, failing fast if they don't share
// one. It follows MOVED/ASK redirects the same way Execute does, but
// pins the whole MULTI...EXEC sequence to a single connection so the
// server observes it atomically.
func (r *Router) Transaction(ctx context.Context, cmds [][][]byte) ([]Result, error) {
	slot := -1
	haveSlot := false
	for _, args := range cmds {
		keys, _, err := classify(args)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			s := hashslot.Slot(k)
			if !haveSlot {
				slot, haveSlot = s, true
			} else if s != slot {
				return nil, clienterr.Routing(clienterr.KindCrossSlotInPipeline, "transaction keys span multiple slots")
			}
		}
	}

	pinnedAddr := ""
	asking := false
	redirects := 0

	for {
		var n *node.Node
		var err error
		switch {
		case pinnedAddr != "":
			n = r.getOrCreateNode(pinnedAddr, node.RolePrimary)
		case haveSlot:
			n, err = r.selectNode(slot, true, false, "")
		default:
			n, err = r.selectNode(0, false, false, "")
		}
		if err != nil {
			return nil, err
		}

		full := make([][][]byte, 0, len(cmds)+3)
		if asking {
			full = append(full, [][]byte{[]byte("ASKING")})
		}
		full = append(full, [][]byte{[]byte("MULTI")})
		full = append(full, cmds...)
		full = append(full, [][]byte{[]byte("EXEC")})
		asking = false

		var results []conn.Result
		err = n.WithConnection(ctx, func(c *conn.Conn) error {
			res, err := c.Pipeline(ctx, full)
			results = res
			return err
		})
		if err != nil {
			return nil, err
		}

		execResult := results[len(results)-1]
		if execResult.Err != nil {
			return nil, execResult.Err
		}
		if execResult.Token.Kind == resp.KindNull {
			return nil, clienterr.Subscription(clienterr.KindTransactionAborted, "EXEC aborted: a WATCHed key changed")
		}

		if execResult.Token.Kind.IsError() {
			kind, parts := parseServerError(string(execResult.Token.Str))
			switch kind {
			case clienterr.KindMoved, clienterr.KindAsk, clienterr.KindTryAgain:
				metrics.ObserveRedirect(string(kind))
			}
			switch kind {
			case clienterr.KindMoved:
				if redirects >= r.opts.MaxRedirects {
					return nil, clienterr.Routing(clienterr.KindMaxRedirectsExceeded, "transaction MOVED redirects exhausted")
				}
				redirects++
				if len(parts) >= 2 {
					if s, err := strconv.Atoi(parts[0]); err == nil && haveSlot {
						r.markMoved(s, parts[1])
					}
					pinnedAddr = parts[1]
				}
				continue
			case clienterr.KindAsk:
				if redirects >= r.opts.MaxRedirects {
					return nil, clienterr.Routing(clienterr.KindMaxRedirectsExceeded, "transaction ASK redirects exhausted")
				}
				redirects++
				if len(parts) >= 2 {
					pinnedAddr = parts[1]
				}
				asking = true
				continue
			case clienterr.KindTryAgain:
				if redirects >= r.opts.MaxRedirects {
					return nil, clienterr.Routing(clienterr.KindMaxRedirectsExceeded, "transaction TRYAGAIN retries exhausted")
				}
				redirects++
				pinnedAddr = n.Addr
				select {
				case <-time.After(r.opts.TryAgainBackoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				continue
			default:
				return nil, clienterr.Server(kind, string(execResult.Token.Str))
			}
		}

		cmdResults := execResult.Token.Elems
		out := make([]Result, len(cmds))
		for i := range cmds {
			if i < len(cmdResults) {
				out[i] = Result{Token: cmdResults[i]}
			} else {
				out[i] = Result{Err: clienterr.Subscription(clienterr.KindTransactionAborted, "EXEC returned fewer results than queued commands")}
			}
		}
		return out, nil
	}
}
