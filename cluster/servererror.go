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

package cluster

import (
	"strings"

	"github.com/valkeygo/valkeygo/clienterr"
)

// parseServerError splits a server error payload's leading word against
// the well-known cluster/auth error prefixes, returning the remaining
// fields for the caller (MOVED/ASK carry "<slot> <addr>", the rest
// carry free-form text).
func parseServerError(msg string) (clienterr.Kind, []string) {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return clienterr.KindGenericServer, nil
	}

	switch fields[0] {
	case "MOVED":
		return clienterr.KindMoved, fields[1:]
	case "ASK":
		return clienterr.KindAsk, fields[1:]
	case "TRYAGAIN":
		return clienterr.KindTryAgain, fields[1:]
	case "CLUSTERDOWN":
		return clienterr.KindClusterDown, fields[1:]
	case "LOADING":
		return clienterr.KindLoading, fields[1:]
	case "READONLY":
		return clienterr.KindReadOnly, fields[1:]
	case "MASTERDOWN":
		return clienterr.KindMasterDown, fields[1:]
	case "CROSSSLOT":
		return clienterr.KindCrossSlot, fields[1:]
	case "NOAUTH":
		return clienterr.KindNoAuth, fields[1:]
	case "WRONGPASS":
		return clienterr.KindWrongPass, fields[1:]
	default:
		return clienterr.KindGenericServer, fields
	}
}
