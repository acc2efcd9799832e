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
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"

	"github.com/spf13/cobra"

	"github.com/valkeygo/valkeygo/confengine"
	"github.com/valkeygo/valkeygo/debugsrv"
	"github.com/valkeygo/valkeygo/internal/sigs"
	"github.com/valkeygo/valkeygo/logger"
)

var serveFlags struct {
	conn        connFlags
	debugAddr   string
	enablePprof bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Hold a client open and serve its pool/topology diagnostics over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client, err := newClient(ctx, &serveFlags.conn)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
			os.Exit(1)
		}
		defer client.Close(ctx)

		conf, err := confengine.LoadContent(debugServerYAML(serveFlags.debugAddr, serveFlags.enablePprof))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build debug server config: %v\n", err)
			os.Exit(1)
		}

		srv, err := debugsrv.New(conf, client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create debug server: %v\n", err)
			os.Exit(1)
		}
		if srv == nil {
			fmt.Fprintln(os.Stderr, "debug server disabled")
			os.Exit(1)
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Errorf("debug server stopped: %v", err)
			}
		}()

		<-sigs.Terminate()
		_ = srv.Close()
	},
	Example: "# valkeygo serve --addr 127.0.0.1:6379 --debug.addr :6380",
}

func debugServerYAML(addr string, pprof bool) []byte {
	text := `
debugServer:
  enabled: true
  address: {{ .Addr }}
  pprof: {{ .Pprof }}
  timeout: 5s
`
	tpl := template.Must(template.New("debugServer").Parse(text))
	var buf bytes.Buffer
	_ = tpl.Execute(&buf, map[string]any{"Addr": addr, "Pprof": pprof})
	return buf.Bytes()
}

func init() {
	bindConnFlagsInto(serveCmd, &serveFlags.conn)
	serveCmd.Flags().StringVar(&serveFlags.debugAddr, "debug.addr", "127.0.0.1:6380", "Address the debug HTTP server listens on")
	serveCmd.Flags().BoolVar(&serveFlags.enablePprof, "debug.pprof", false, "Also serve /debug/pprof/* routes")
	rootCmd.AddCommand(serveCmd)
}
