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
	"sync"

	"github.com/valkeygo/valkeygo/clienterr"
	"github.com/valkeygo/valkeygo/node"
)

// Pipeline splits cmds by the node that owns each command's slot,
// dispatches one on-wire pipeline per node concurrently, and returns
// results index-aligned with cmds. Key-less commands adopt the target
// of the nearest key-bearing command (preceding, else following); a
// batch with no key-bearing command at all goes to one sticky node.
func (r *Router) Pipeline(ctx context.Context, cmds [][][]byte) ([]Result, error) {
	n := len(cmds)
	out := make([]Result, n)
	targets := make([]string, n)

	for i, args := range cmds {
		keys, readOnly, err := classify(args)
		if err != nil {
			out[i] = Result{Err: err}
			continue
		}
		if len(keys) == 0 {
			continue
		}
		slot, err := slotForKeys(keys)
		if err != nil {
			out[i] = Result{Err: err}
			continue
		}
		target, err := r.selectNode(slot, true, readOnly, "")
		if err != nil {
			out[i] = Result{Err: err}
			continue
		}
		targets[i] = target.Addr
	}

	fillKeylessTargets(targets, out)
	if allEmpty(targets, out) {
		n, err := r.selectNode(0, false, false, "")
		if err == nil {
			for i := range targets {
				if targets[i] == "" && out[i].Err == nil {
					targets[i] = n.Addr
				}
			}
		}
	}

	groups := make(map[string][]int)
	for i := range cmds {
		if out[i].Err != nil {
			continue
		}
		if targets[i] == "" {
			out[i] = Result{Err: clienterr.Routing(clienterr.KindUnknownSlotOwner, "no route for key-less pipeline command")}
			continue
		}
		groups[targets[i]] = append(groups[targets[i]], i)
	}

	var wg sync.WaitGroup
	for addr, idxs := range groups {
		wg.Add(1)
		go func(addr string, idxs []int) {
			defer wg.Done()
			n := r.getOrCreateNode(addr, node.RolePrimary)

			groupCmds := make([][][]byte, len(idxs))
			for j, i := range idxs {
				groupCmds[j] = cmds[i]
			}

			results := r.dispatchGroup(ctx, n, groupCmds)
			for j, i := range idxs {
				out[i] = results[j]
			}
		}(addr, idxs)
	}
	wg.Wait()

	return out, nil
}

// fillKeylessTargets forward-fills each key-less command's target from
// the nearest preceding key-bearing command, then back-fills any
// still-empty leading run from the nearest following one.
func fillKeylessTargets(targets []string, out []Result) {
	prev := ""
	for i := range targets {
		if out[i].Err != nil {
			continue
		}
		if targets[i] != "" {
			prev = targets[i]
			continue
		}
		if prev != "" {
			targets[i] = prev
		}
	}

	next := ""
	for i := len(targets) - 1; i >= 0; i-- {
		if out[i].Err != nil {
			continue
		}
		if targets[i] != "" {
			next = targets[i]
			continue
		}
		if next != "" {
			targets[i] = next
		}
	}
}

func allEmpty(targets []string, out []Result) bool {
	for i, t := range targets {
		if out[i].Err == nil && t != "" {
			return false
		}
	}
	return true
}

// dispatchGroup runs one on-wire pipeline against n, then re-routes any
// individual reply carrying a MOVED/ASK/TRYAGAIN error through
// Router.Execute (which already implements the full redirect loop),
// preserving each command's position in the returned slice.
func (r *Router) dispatchGroup(ctx context.Context, n *node.Node, cmds [][][]byte) []Result {
	results, err := n.Pipeline(ctx, cmds)
	if err != nil {
		out := make([]Result, len(cmds))
		for i := range out {
			out[i] = Result{Err: err}
		}
		return out
	}

	for i, res := range results {
		if res.Err != nil || !res.Token.Kind.IsError() {
			continue
		}
		kind, _ := parseServerError(string(res.Token.Str))
		switch kind {
		case clienterr.KindMoved, clienterr.KindAsk, clienterr.KindTryAgain:
			tok, err := r.Execute(ctx, cmds[i])
			results[i] = Result{Token: tok, Err: err}
		}
	}
	return results
}
