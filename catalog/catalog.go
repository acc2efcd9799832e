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

// Package catalog is a hand-authored stand-in for the generated command
// catalogue: plain-data records the router and connection consult for
// key positions, read-only eligibility, transaction participation, and
// blocking behavior. It never dispatches to command-specific code.
package catalog

import (
	"strings"

	"github.com/spf13/cast"
)

// KeySpec describes where an argument's keys live within a command's
// argument list, first-key/last-key/step triples as the real Valkey
// COMMAND INFO output encodes them. LastKey -1 means "to the end."
type KeySpec struct {
	FirstKey int
	LastKey  int
	Step     int
}

// Command is one entry in the catalogue.
type Command struct {
	Name        string
	Keys        *KeySpec // nil for key-less commands
	ReadOnly    bool
	Transaction bool // participates meaningfully inside MULTI/EXEC
	Blocking    bool
}

var table = buildTable()

func buildTable() map[string]Command {
	entries := []Command{
		{Name: "GET", Keys: &KeySpec{1, 1, 1}, ReadOnly: true, Transaction: true},
		{Name: "SET", Keys: &KeySpec{1, 1, 1}, Transaction: true},
		{Name: "MGET", Keys: &KeySpec{1, -1, 1}, ReadOnly: true, Transaction: true},
		{Name: "MSET", Keys: &KeySpec{1, -1, 2}, Transaction: true},
		{Name: "DEL", Keys: &KeySpec{1, -1, 1}, Transaction: true},
		{Name: "EXISTS", Keys: &KeySpec{1, -1, 1}, ReadOnly: true, Transaction: true},
		{Name: "INCR", Keys: &KeySpec{1, 1, 1}, Transaction: true},
		{Name: "EXPIRE", Keys: &KeySpec{1, 1, 1}, Transaction: true},
		{Name: "PING", Transaction: true},
		{Name: "ECHO", Transaction: true},
		{Name: "BLPOP", Keys: &KeySpec{1, -1, 1}, Blocking: true},
		{Name: "BRPOP", Keys: &KeySpec{1, -1, 1}, Blocking: true},
		{Name: "BLMOVE", Keys: &KeySpec{1, 2, 1}, Blocking: true},
		{Name: "BLMPOP", Blocking: true},
		{Name: "BZPOPMIN", Keys: &KeySpec{1, -1, 1}, Blocking: true},
		{Name: "BZPOPMAX", Keys: &KeySpec{1, -1, 1}, Blocking: true},
		{Name: "WAIT", Blocking: true},
		{Name: "XREAD", Blocking: true},
		{Name: "SUBSCRIBE"},
		{Name: "UNSUBSCRIBE"},
		{Name: "PSUBSCRIBE"},
		{Name: "PUNSUBSCRIBE"},
		{Name: "SSUBSCRIBE", Keys: &KeySpec{1, 1, 1}},
		{Name: "SUNSUBSCRIBE", Keys: &KeySpec{1, 1, 1}},
		{Name: "PUBLISH"},
		{Name: "SPUBLISH", Keys: &KeySpec{1, 1, 1}},
		{Name: "MULTI"},
		{Name: "EXEC"},
		{Name: "DISCARD"},
		{Name: "WATCH", Keys: &KeySpec{1, -1, 1}},
		{Name: "CLUSTER SHARDS", ReadOnly: true},
		{Name: "CLUSTER SLOTS", ReadOnly: true},
	}

	m := make(map[string]Command, len(entries))
	for _, c := range entries {
		m[c.Name] = c
	}
	return m
}

// Lookup returns the catalogue entry for name (case-insensitive),
// reporting false if the command is not in the table.
func Lookup(name string) (Command, bool) {
	c, ok := table[strings.ToUpper(name)]
	return c, ok
}

// KeyArgs extracts the key arguments of a command invocation given its
// argument slice args (not including the command name itself).
func (c Command) KeyArgs(args []string) [][]byte {
	if c.Keys == nil {
		return nil
	}

	spec := c.Keys
	last := spec.LastKey
	if last == -1 {
		last = len(args)
	}

	var keys [][]byte
	for i := spec.FirstKey; i <= last && i <= len(args); i += spec.Step {
		if i < 1 {
			continue
		}
		keys = append(keys, []byte(args[i-1]))
	}
	return keys
}

// CoerceArg best-effort converts a loosely-typed command argument (as a
// caller might supply via a config-driven helper) into its wire string
// form.
func CoerceArg(v any) (string, error) {
	return cast.ToStringE(v)
}
