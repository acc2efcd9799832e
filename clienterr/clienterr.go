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

// Package clienterr defines the client's error taxonomy: protocol,
// transport, timing, server, routing, and subscription failures, each
// carrying enough detail for a caller to decide whether to retry.
package clienterr

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Category groups an error into one of the taxonomy's top-level kinds.
type Category string

const (
	CategoryProtocol     Category = "protocol"
	CategoryTransport    Category = "transport"
	CategoryTiming       Category = "timing"
	CategoryServer       Category = "server"
	CategoryRouting      Category = "routing"
	CategorySubscription Category = "subscription"
)

// Kind is a specific error within a Category.
type Kind string

const (
	// Transport
	KindConnectFailed               Kind = "connect-failed"
	KindConnectionClosed            Kind = "connection-closed"
	KindConnectionClosedDuringCancel Kind = "connection-closed-during-cancellation"

	// Timing
	KindCommandTimeout         Kind = "command-timeout"
	KindBlockingCommandTimeout Kind = "blocking-command-timeout"
	KindHandshakeTimeout       Kind = "handshake-timeout"

	// Protocol
	KindMalformedReply Kind = "malformed-reply"

	// Server (wire-level redirect/error prefixes)
	KindMoved       Kind = "MOVED"
	KindAsk         Kind = "ASK"
	KindTryAgain    Kind = "TRYAGAIN"
	KindCrossSlot   Kind = "CROSSSLOT"
	KindClusterDown Kind = "CLUSTERDOWN"
	KindLoading     Kind = "LOADING"
	KindReadOnly    Kind = "READONLY"
	KindMasterDown  Kind = "MASTERDOWN"
	KindNoAuth      Kind = "NOAUTH"
	KindWrongPass   Kind = "WRONGPASS"
	KindGenericServer Kind = "generic"

	// Routing
	KindMaxRedirectsExceeded Kind = "max-redirects-exceeded"
	KindCrossSlotInPipeline  Kind = "cross-slot-in-pipeline-group"
	KindUnknownSlotOwner     Kind = "unknown-slot-owner"

	// Subscription
	KindSubscribeError      Kind = "subscribe-error"
	KindTransactionAborted  Kind = "transaction-aborted"
)

// Error is the client's typed error value. Message carries the server's
// original error bytes verbatim when applicable.
type Error struct {
	Category Category
	Kind     Kind
	Message  string
	cause    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Category) + "/" + string(e.Kind) + ": " + e.Message
	}
	return string(e.Category) + "/" + string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newErr(cat Category, kind Kind, message string) *Error {
	return &Error{Category: cat, Kind: kind, Message: message}
}

// Wrap attaches cause to a new Error via github.com/pkg/errors, keeping
// a stack trace on the outermost wrap.
func Wrap(cat Category, kind Kind, message string, cause error) *Error {
	e := newErr(cat, kind, message)
	if cause != nil {
		e.cause = errors.WithStack(cause)
	}
	return e
}

func Transport(kind Kind, message string) *Error    { return newErr(CategoryTransport, kind, message) }
func Timing(kind Kind, message string) *Error       { return newErr(CategoryTiming, kind, message) }
func Routing(kind Kind, message string) *Error      { return newErr(CategoryRouting, kind, message) }
func Subscription(kind Kind, message string) *Error { return newErr(CategorySubscription, kind, message) }
func Protocol(kind Kind, message string) *Error     { return newErr(CategoryProtocol, kind, message) }

// Server builds a server-category error of the given kind from a wire
// error message; the caller chooses kind, the message is not inspected.
func Server(kind Kind, message string) *Error {
	return newErr(CategoryServer, kind, message)
}

// As reports whether err is a *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// Retryable reports whether err's kind is handled by local recovery:
// true for MOVED, ASK and TRYAGAIN; false for every other kind,
// transport errors included.
func Retryable(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindMoved, KindAsk, KindTryAgain:
		return true
	default:
		return false
	}
}

// Aggregate combines multiple failures (e.g. a multi-endpoint topology
// refresh where every candidate failed) into one reportable error.
func Aggregate(errs ...error) error {
	var merr *multierror.Error
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	if merr == nil {
		return nil
	}
	return merr.ErrorOrNil()
}
