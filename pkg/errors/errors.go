// Copyright (c) 2022 The rcproxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import "errors"

var (
	// ErrNilSocket occurs when NewConnection is called with a nil socket.
	ErrNilSocket = errors.New("corenet: socket is nil")
	// ErrNilConnection names a connection-scoped operation called on a nil connection.
	// Nothing in this module returns it; no operation checks for a nil connection.
	ErrNilConnection = errors.New("corenet: connection is nil")
	// ErrInvalidBufferSize names a non-positive socket or message buffer size.
	// Nothing in this module returns it: Host options are not validated, and a
	// non-positive socket buffer size just skips the SO_RCVBUF/SO_SNDBUF call.
	ErrInvalidBufferSize = errors.New("corenet: buffer size must be >= 1")
	// ErrUnsupportedOp occurs when calling a method that has no meaning on this platform or connection kind.
	ErrUnsupportedOp = errors.New("corenet: unsupported operation")

	// ErrQueueClosed names a submission to a send queue that has already closed.
	// Nothing in this module returns it: sendqueue.Queue.TrySend reports that case
	// as the Closed result.
	ErrQueueClosed = errors.New("corenet: send queue closed")

	// ErrInvalidReadLength occurs when a continuation callback reports a readLength outside [0, len(payload)].
	ErrInvalidReadLength = errors.New("corenet: continuation reported readLength outside payload bounds")

	// ErrNoCurrentPacket is raised when a send chain is about to start a packet while a previous packet
	// is still marked as currently sending. The Go port serializes the send loop on a single goroutine per
	// connection, so this indicates a logic bug in the state machine rather than a racing OS completion.
	// No separate check is made after a write completes.
	ErrNoCurrentPacket = errors.New("corenet: send chain found a packet still marked in flight")

	// ErrAlreadyDisconnected names a BeginSend call made after the connection has begun teardown.
	// Nothing in this module returns it: BeginSend reports that case through OnSendCallback with
	// StatusFailed.
	ErrAlreadyDisconnected = errors.New("corenet: connection is disconnecting")

	// ErrSendContextFreed occurs when a send chain observes its I/O context already returned to the
	// pool by a concurrent teardown, between chunks of a multi-chunk write.
	ErrSendContextFreed = errors.New("corenet: send context freed by concurrent teardown")

	// ErrPoolExhausted names a bounded pool that cannot satisfy a borrow. Nothing in this module
	// returns it: ioctx.Pool.Get always allocates a fresh context when none is cached.
	ErrPoolExhausted = errors.New("corenet: pool exhausted")
)
