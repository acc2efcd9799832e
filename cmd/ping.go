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

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send one PING to a standalone server or to one node of a cluster",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := newClient(ctx, pingFlags)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
			os.Exit(1)
		}
		defer client.Close(ctx)

		start := time.Now()
		reply, err := client.Execute(ctx, "PING")
		if err != nil {
			fmt.Fprintf(os.Stderr, "PING failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("PONG (%v) -> %v\n", time.Since(start), reply.Native())
	},
	Example: "# valkeygo ping --addr 127.0.0.1:6379",
}

var pingFlags *connFlags

func init() {
	pingFlags = bindConnFlags(pingCmd)
	rootCmd.AddCommand(pingCmd)
}
