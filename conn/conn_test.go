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

package conn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkeygo/valkeygo/resp"
)

// fakeServer decodes commands off one end of a net.Pipe and lets a test
// script canned replies back in lockstep.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	dec  *resp.Decoder
	buf  []byte
}

func newFakeServer(t *testing.T, nc net.Conn) *fakeServer {
	return &fakeServer{t: t, conn: nc, dec: resp.NewDecoder(), buf: make([]byte, 4096)}
}

func (f *fakeServer) nextCommand() []string {
	f.t.Helper()
	for {
		tok, ok, err := f.dec.Decode()
		require.NoError(f.t, err)
		if ok {
			args := make([]string, len(tok.Elems))
			for i, e := range tok.Elems {
				args[i] = string(e.Str)
			}
			return args
		}
		n, err := f.conn.Read(f.buf)
		require.NoError(f.t, err)
		f.dec.Write(f.buf[:n])
	}
}

func (f *fakeServer) reply(raw string) {
	_, err := f.conn.Write([]byte(raw))
	require.NoError(f.t, err)
}

func dialPipe(t *testing.T, opts Options, serverScript func(*fakeServer)) *Conn {
	t.Helper()

	client, server := net.Pipe()
	go func() {
		fs := newFakeServer(t, server)
		require.Equal(t, "HELLO", fs.nextCommand()[0])
		fs.reply("%1\r\n$2\r\nid\r\n:7\r\n")
		require.Equal(t, []string{"CLIENT", "SETINFO", "LIB-NAME", "valkeygo"}, fs.nextCommand())
		fs.reply("+OK\r\n")
		serverScript(fs)
	}()

	c, err := New(client, opts)
	require.NoError(t, err)
	return c
}

func TestHandshakeAndExecute(t *testing.T) {
	c := dialPipe(t, Options{}, func(fs *fakeServer) {
		require.Equal(t, []string{"PING"}, fs.nextCommand())
		fs.reply("+PONG\r\n")
	})
	defer c.Close()

	assert.EqualValues(t, 7, c.ClientID())

	tok, err := c.Execute(context.Background(), [][]byte{[]byte("PING")})
	require.NoError(t, err)
	assert.Equal(t, "PONG", string(tok.Str))
}

func TestExecuteReplySurvivesSubsequentReads(t *testing.T) {
	c := dialPipe(t, Options{}, func(fs *fakeServer) {
		fs.nextCommand()
		fs.reply("$3\r\nfoo\r\n")
		fs.nextCommand()
		fs.reply("$3\r\nbar\r\n")
	})
	defer c.Close()

	tok, err := c.Execute(context.Background(), [][]byte{[]byte("GET"), []byte("k1")})
	require.NoError(t, err)
	foo := string(tok.Str)
	require.Equal(t, "foo", foo)

	// A second reply decoded on the same connection reuses the decoder's
	// backing buffer; the first reply must not have aliased it.
	_, err = c.Execute(context.Background(), [][]byte{[]byte("GET"), []byte("k2")})
	require.NoError(t, err)
	assert.Equal(t, "foo", foo)
}

func TestPipelinePreservesOrder(t *testing.T) {
	c := dialPipe(t, Options{}, func(fs *fakeServer) {
		for i := 0; i < 3; i++ {
			fs.nextCommand()
		}
		fs.reply(":1\r\n:2\r\n:3\r\n")
	})
	defer c.Close()

	results, err := c.Pipeline(context.Background(), [][][]byte{
		{[]byte("INCR"), []byte("a")},
		{[]byte("INCR"), []byte("b")},
		{[]byte("INCR"), []byte("c")},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, want := range []int64{1, 2, 3} {
		require.NoError(t, results[i].Err)
		assert.Equal(t, want, results[i].Token.Int)
	}
}

func TestSubscribeDeliversMessages(t *testing.T) {
	c := dialPipe(t, Options{}, func(fs *fakeServer) {
		require.Equal(t, []string{"SUBSCRIBE", "news"}, fs.nextCommand())
		fs.reply(">3\r\n$9\r\nsubscribe\r\n$4\r\nnews\r\n:1\r\n")
		fs.reply(">3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n")
	})
	defer c.Close()

	sub, err := c.Subscribe(context.Background(), FilterChannel, "news")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "news", msg.Channel)
	assert.Equal(t, "hello", string(msg.Payload))
}

func TestCommandTimeoutRetiresConnection(t *testing.T) {
	c := dialPipe(t, Options{CommandTimeout: 50 * time.Millisecond}, func(fs *fakeServer) {
		fs.nextCommand() // GET, deliberately never answered
	})
	defer c.Close()

	_, err := c.Execute(context.Background(), [][]byte{[]byte("GET"), []byte("k")})
	require.Error(t, err)

	// The connection is retired after any timeout; a subsequent command
	// must fail immediately rather than hang.
	_, err = c.Execute(context.Background(), [][]byte{[]byte("PING")})
	require.Error(t, err)
}

func TestCancelledRequestDropsReply(t *testing.T) {
	replied := make(chan struct{})
	c := dialPipe(t, Options{}, func(fs *fakeServer) {
		fs.nextCommand()
		close(replied)
		fs.reply("+IGNORED\r\n")
		require.Equal(t, []string{"PING"}, fs.nextCommand())
		fs.reply("+PONG\r\n")
	})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Execute(ctx, [][]byte{[]byte("GET"), []byte("k")})
	require.Error(t, err)
	<-replied

	tok, err := c.Execute(context.Background(), [][]byte{[]byte("PING")})
	require.NoError(t, err)
	assert.Equal(t, "PONG", string(tok.Str))
}
