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

package pool

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valkeygo/valkeygo/conn"
	"github.com/valkeygo/valkeygo/resp"
)

// fakeEndpoint auto-handshakes every connection dialed against it and
// replies +OK to anything else, mirroring conn_test.go's fakeServer
// without needing a scripted per-connection reply sequence.
func fakeEndpoint(t *testing.T) Dialer {
	t.Helper()
	return func(ctx context.Context, readOnly bool, trackingRedirect int64) (*conn.Conn, error) {
		client, server := net.Pipe()
		go serveHandshake(t, server)
		return conn.New(client, conn.Options{ReadOnly: readOnly, TrackingRedirect: trackingRedirect})
	}
}

func serveHandshake(t *testing.T, nc net.Conn) {
	dec := resp.NewDecoder()
	buf := make([]byte, 4096)
	readCmd := func() []string {
		for {
			tok, ok, err := dec.Decode()
			if err != nil {
				return nil
			}
			if ok {
				args := make([]string, len(tok.Elems))
				for i, e := range tok.Elems {
					args[i] = string(e.Str)
				}
				return args
			}
			n, err := nc.Read(buf)
			if err != nil {
				return nil
			}
			dec.Write(buf[:n])
		}
	}

	for {
		args := readCmd()
		if args == nil {
			return
		}
		switch args[0] {
		case "HELLO":
			nc.Write([]byte("%1\r\n$2\r\nid\r\n:7\r\n"))
		case "READONLY":
			nc.Write([]byte("+OK\r\n"))
		default:
			nc.Write([]byte("+OK\r\n"))
		}
	}
}

func TestLeaseBoundedByMax(t *testing.T) {
	p := New(Options{Max: 2, Dialer: fakeEndpoint(t)}, false)
	defer p.Shutdown(context.Background(), false)

	ctx := context.Background()
	c1, err := p.Lease(ctx)
	require.NoError(t, err)
	c2, err := p.Lease(ctx)
	require.NoError(t, err)

	leaseCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = p.Lease(leaseCtx)
	require.Error(t, err, "a third lease must block until one of the two is released")

	p.Release(c1)
	p.Release(c2)
}

func TestReleaseResumesWaiterFIFO(t *testing.T) {
	p := New(Options{Max: 1, Dialer: fakeEndpoint(t)}, false)
	defer p.Shutdown(context.Background(), false)

	ctx := context.Background()
	c, err := p.Lease(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			leased, err := p.Lease(ctx)
			require.NoError(t, err)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			p.Release(leased)
		}()
		time.Sleep(10 * time.Millisecond) // preserve registration order
	}

	p.Release(c)
	wg.Wait()

	require.Equal(t, []int{0, 1, 2}, order)
}

func TestGracefulShutdownDrainsLeased(t *testing.T) {
	p := New(Options{Max: 2, Dialer: fakeEndpoint(t)}, false)

	ctx := context.Background()
	c, err := p.Lease(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		p.Shutdown(context.Background(), true)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("graceful shutdown must wait for the leased connection")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(c)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not complete after the last release")
	}
}

func TestSharedSubConnectionRefcounted(t *testing.T) {
	p := New(Options{Max: 2, Dialer: fakeEndpoint(t)}, false)
	defer p.Shutdown(context.Background(), false)

	ctx := context.Background()
	c1, release1, err := p.AcquireSubConn(ctx)
	require.NoError(t, err)
	c2, release2, err := p.AcquireSubConn(ctx)
	require.NoError(t, err)
	require.Same(t, c1, c2, "both acquisitions must observe the same shared connection")

	release1()
	require.Equal(t, subAvailable, p.hub.state)
	release2()
	require.Equal(t, subUninitialized, p.hub.state)
}
