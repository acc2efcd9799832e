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
	"github.com/pkg/errors"
)

// ErrorCode classifies a structural decode failure.
type ErrorCode string

const (
	ErrInvalidLeadingByte     ErrorCode = "invalid-leading-byte"
	ErrInvalidData            ErrorCode = "invalid-data"
	ErrTooDeeplyNested        ErrorCode = "too-deeply-nested"
	ErrMissingColonInVerbatim ErrorCode = "missing-colon-in-verbatim"
	ErrCannotParseInteger     ErrorCode = "cannot-parse-integer"
	ErrCannotParseDouble      ErrorCode = "cannot-parse-double"
	ErrCannotParseBigNumber   ErrorCode = "cannot-parse-big-number"
	ErrUnexpectedType         ErrorCode = "unexpected-type"
	ErrInvalidElementCount    ErrorCode = "invalid-element-count"
)

// ParseError is a typed decode failure carrying the offending byte range.
type ParseError struct {
	Code  ErrorCode
	Range []byte
	msg   string
}

func (e *ParseError) Error() string {
	if e.msg != "" {
		return "resp: " + string(e.Code) + ": " + e.msg
	}
	return "resp: " + string(e.Code)
}

func newParseError(code ErrorCode, b []byte, format string, args ...any) error {
	msg := ""
	if format != "" {
		msg = errors.Errorf(format, args...).Error()
	}
	return errors.WithStack(&ParseError{Code: code, Range: b, msg: msg})
}

// AsParseError unwraps err into a *ParseError, if it is one.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
