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

package common

const (
	// App is the library's identifying name, used in metric namespaces
	// and the CLIENT SETINFO LIB-NAME handshake field.
	App = "valkeygo"

	// Version is the library version string. The handshake sends
	// CLIENT SETINFO LIB-VER only when conn.Options.LibVersion is set;
	// nothing in this module sets that field from Version.
	Version = "v0.1.0"

	// ReadWriteBlockSize is the default chunk size used when draining
	// bytes off a connection's socket into the decoder.
	ReadWriteBlockSize = 4096
)
