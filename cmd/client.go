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

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valkeygo/valkeygo"
)

// connFlags are the flags every subcommand that dials a server shares.
// They're bound to a *cobra.Command rather than globals so each
// subcommand keeps its own copy.
type connFlags struct {
	addrs   []string
	cluster bool
}

func bindConnFlags(cmd *cobra.Command) *connFlags {
	f := &connFlags{}
	bindConnFlagsInto(cmd, f)
	return f
}

// bindConnFlagsInto registers the shared connection flags onto an
// existing connFlags, for subcommands that nest it inside a larger
// flag struct (e.g. serveFlags).
func bindConnFlagsInto(cmd *cobra.Command, f *connFlags) {
	cmd.Flags().StringSliceVar(&f.addrs, "addr", []string{"127.0.0.1:6379"}, "Server address(es), host:port; multiple allowed in cluster mode")
	cmd.Flags().BoolVar(&f.cluster, "cluster", false, "Connect in cluster mode, discovering topology from --addr")
}

// newClient builds a Client from --config if set, else from the
// subcommand's --addr/--cluster flags layered over config.Default().
func newClient(ctx context.Context, f *connFlags) (*valkeygo.Client, error) {
	var (
		opts valkeygo.Options
		err  error
	)
	if configPath != "" {
		opts, err = valkeygo.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		opts = valkeygo.Default()
		opts.Addresses = f.addrs
		opts.Cluster = f.cluster
	}
	return valkeygo.NewClient(ctx, opts)
}
