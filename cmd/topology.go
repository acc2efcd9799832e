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
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var topologyCmd = &cobra.Command{
	Use:   "cluster-topology",
	Short: "Discover and print a cluster's slot-to-shard topology",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		flags := topologyFlags
		flags.cluster = true
		client, err := newClient(ctx, flags)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to discover topology: %v\n", err)
			os.Exit(1)
		}
		defer client.Close(ctx)

		topo := client.Topology()
		if topo == nil {
			fmt.Fprintln(os.Stderr, "not a cluster client")
			os.Exit(1)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(topo); err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode topology: %v\n", err)
			os.Exit(1)
		}
	},
	Example: "# valkeygo cluster-topology --addr 127.0.0.1:7000,127.0.0.1:7001",
}

var topologyFlags *connFlags

func init() {
	topologyFlags = bindConnFlags(topologyCmd)
	rootCmd.AddCommand(topologyCmd)
}
