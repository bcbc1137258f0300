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

package corenet

import "github.com/rcproxy/corenet/pkg/logging"

// Status is the outcome delivered to OnSendCallback.
type Status int

const (
	// StatusSuccess means the packet's entire payload reached the socket.
	StatusSuccess Status = iota
	// StatusFailed means the packet was abandoned, usually because the
	// connection began tearing down before (or while) it was sent.
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failed"
}

// Continuation reports how many leading bytes of the slice passed to
// OnMessageReceived a parser actually consumed. It must be called exactly
// once per OnMessageReceived invocation, with 0 <= readLength <= len(payload).
// Calling it outside that range is a programming error: the core panics
// rather than letting state quietly desync, matching the "invalid argument"
// handling the rest of the engine applies to programmer mistakes.
type Continuation func(readLength int)

// EventHandler is the capability interface a collaborator supplies to a
// Host at construction. It replaces the virtual-method/base-class hook set
// the spec's source models: compose BuiltinEventHandler to get a
// do-nothing-but-log default for any methods you don't need to override.
type EventHandler interface {
	// OnConnected fires once a connection has been registered as active.
	OnConnected(c *Connection)

	// OnStartSending fires before the first socket write for pkt, always
	// before the matching OnSendCallback for the same packet.
	OnStartSending(c *Connection, pkt *Packet)

	// OnSendCallback fires exactly once per packet submitted through
	// BeginSend, in the order BeginSend was called.
	OnSendCallback(c *Connection, pkt *Packet, status Status)

	// OnMessageReceived fires with the next framed view of inbound bytes
	// and a Continuation the collaborator calls to report how much of it
	// it parsed. See Continuation for the readLength contract.
	OnMessageReceived(c *Connection, payload []byte, next Continuation)

	// OnDisconnected fires at most once per connection, after the local
	// Disconnected event and before resources are released.
	OnDisconnected(c *Connection, err error)

	// OnConnectionError fires for errors that don't map to a specific
	// packet callback: failed posts, unknown-state diagnostics.
	OnConnectionError(c *Connection, err error)
}

// BuiltinEventHandler implements EventHandler with defaults that only log
// (at debug level, or error level for OnConnectionError); OnMessageReceived
// consumes the whole payload. A collaborator can embed it and override only
// the hooks it cares about.
type BuiltinEventHandler struct{}

func (BuiltinEventHandler) OnConnected(c *Connection) {
	logging.Debugf("corenet: connection %d connected", c.ID())
}

func (BuiltinEventHandler) OnStartSending(c *Connection, pkt *Packet) {
	logging.Debugf("corenet: connection %d start sending %d bytes", c.ID(), len(pkt.Payload))
}

func (BuiltinEventHandler) OnSendCallback(c *Connection, _ *Packet, status Status) {
	logging.Debugf("corenet: connection %d send callback: %s", c.ID(), status)
}

func (BuiltinEventHandler) OnMessageReceived(_ *Connection, payload []byte, next Continuation) {
	next(len(payload))
}

func (BuiltinEventHandler) OnDisconnected(c *Connection, err error) {
	logging.Debugf("corenet: connection %d disconnected: %v", c.ID(), err)
}

func (BuiltinEventHandler) OnConnectionError(c *Connection, err error) {
	logging.Errorf("corenet: connection %d error: %v", c.ID(), err)
}
