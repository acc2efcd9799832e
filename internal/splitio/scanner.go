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

package splitio

import (
	"bytes"
)

var (
	CharCRLF = []byte("\r\n")
	CharCR   = []byte("\r")
	CharLF   = []byte("\n")
)

type Scanner struct {
	l, r int
	buf  []byte
}

// NewScanner creates a *Scanner over b.
//
// Line endings (`\r\n` or `\n`) are preserved in the returned lines.
// Faster than *bufio.Scanner (see the benchmarks) since it never copies
// the buffer's contents.
func NewScanner(b []byte) *Scanner {
	return &Scanner{
		buf: b,
	}
}

// Scan advances to the next line, marking its bounds.
func (s *Scanner) Scan() bool {
	s.l = s.r
	if len(s.buf) == s.l {
		return false
	}

	idx := bytes.IndexByte(s.buf[s.l:], CharLF[0])
	if idx == -1 {
		s.r = len(s.buf)
	} else {
		s.r = s.l + idx + 1
	}
	return true
}

// Bytes returns the current line. Copy it before mutating.
func (s *Scanner) Bytes() []byte {
	return s.buf[s.l:s.r]
}

// SkipN advances the scanner by exactly n raw bytes, ignoring line
// boundaries. Used for length-prefixed payloads that may contain
// embedded newlines. Reports false without advancing if fewer than n
// bytes remain.
func (s *Scanner) SkipN(n int) bool {
	if s.r+n > len(s.buf) {
		return false
	}
	s.l = s.r
	s.r += n
	return true
}
