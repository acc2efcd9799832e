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

// Package cmd is the valkeygo command-line tool: a thin cobra wrapper
// that loads config.Options from a YAML file or flags and drives a
// valkeygo.Client for a handful of operational subcommands (ping,
// pipeline, cluster-topology, serve). Each subcommand registers itself
// from its own init() onto a shared rootCmd.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valkeygo/valkeygo/common"
	"github.com/valkeygo/valkeygo/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "valkeygo",
	Short: "valkeygo is a command-line client for Valkey/Redis standalone and cluster deployments",
	Version: func() string {
		bi := common.GetBuildInfo()
		if bi.Version == "" {
			return "dev"
		}
		return fmt.Sprintf("%s (%s, %s)", bi.Version, bi.GitHash, bi.Time)
	}(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetLoggerLevel(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file; overrides --addr/--cluster")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
}

var logLevel string

// Execute runs the root command, printing any error to stderr and
// exiting the process with a non-zero status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
