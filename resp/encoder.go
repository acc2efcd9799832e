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

package resp

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// Encoder builds a RESP3 command frame: a bulk-string array whose first
// element is the command name. Backed by a pooled, growable buffer so
// repeated command encodes on a hot connection avoid per-call
// allocation.
type Encoder struct {
	buf    *bytebufferpool.ByteBuffer
	count  int
	header int // byte offset of the `*<n>` count header's digits
}

// NewEncoder returns an Encoder with a buffer leased from the shared
// pool. Release must be called when the caller is done with the
// returned bytes.
func NewEncoder() *Encoder {
	buf := bytebufferpool.Get()
	e := &Encoder{buf: buf}
	buf.WriteByte('*')
	e.header = buf.Len()
	buf.WriteString("0\r\n")
	return e
}

// Release returns the Encoder's buffer to the shared pool. The bytes
// returned by Bytes must not be used afterwards.
func (e *Encoder) Release() {
	bytebufferpool.Put(e.buf)
	e.buf = nil
}

// Bytes returns the fully encoded frame.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Arg appends a raw byte-string argument.
func (e *Encoder) Arg(p []byte) *Encoder {
	e.writeBulk(p)
	return e
}

// ArgString appends a string argument.
func (e *Encoder) ArgString(s string) *Encoder {
	e.writeBulk([]byte(s))
	return e
}

// ArgInt appends a signed integer argument, rendered in decimal.
func (e *Encoder) ArgInt(n int64) *Encoder {
	e.writeBulk(strconv.AppendInt(nil, n, 10))
	return e
}

// ArgFloat appends a double argument, rendered the way the server
// parses doubles back.
func (e *Encoder) ArgFloat(f float64) *Encoder {
	e.writeBulk(strconv.AppendFloat(nil, f, 'g', -1, 64))
	return e
}

func (e *Encoder) writeBulk(p []byte) {
	e.buf.WriteByte('$')
	e.buf.WriteString(strconv.Itoa(len(p)))
	e.buf.WriteString("\r\n")
	e.buf.Write(p)
	e.buf.WriteString("\r\n")
	e.count++
	e.rewriteHeader()
}

// rewriteHeader rewrites the `*<n>` count in place, shifting the
// argument payload that follows it when n's digit width grows (e.g.
// 9 -> 10 arguments).
func (e *Encoder) rewriteHeader() {
	newDigits := strconv.Itoa(e.count)
	old := e.buf.Bytes()
	// Locate the existing digit run terminated by "\r\n" right after
	// the header offset.
	end := e.header
	for end < len(old) && old[end] != '\r' {
		end++
	}
	oldDigits := end - e.header

	if len(newDigits) == oldDigits {
		copy(old[e.header:end], newDigits)
		return
	}

	rest := append([]byte(nil), old[end:]...)
	e.buf.Set(old[:e.header])
	e.buf.WriteString(newDigits)
	e.buf.Write(rest)
}
