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
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <cmd1;arg;arg> [cmd2;arg;arg ...]",
	Short: "Run a batch of commands as one pipeline, preserving order",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		client, err := newClient(ctx, pipelineFlags)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
			os.Exit(1)
		}
		defer client.Close(ctx)

		cmds := make([][]string, len(args))
		for i, a := range args {
			cmds[i] = strings.Split(a, ";")
		}

		results, err := client.Pipeline(ctx, cmds...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
			os.Exit(1)
		}

		for i, r := range results {
			if r.Err != nil {
				fmt.Printf("[%d] error: %v\n", i, r.Err)
				continue
			}
			fmt.Printf("[%d] %v\n", i, r.Token.Native())
		}
	},
	Example: "# valkeygo pipeline 'SET;k;100' 'INCR;k' 'GET;k'",
}

var pipelineFlags *connFlags

func init() {
	pipelineFlags = bindConnFlags(pipelineCmd)
	rootCmd.AddCommand(pipelineCmd)
}
