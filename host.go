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

// Package corenet is an asynchronous TCP connection engine core: it owns
// sockets, drives non-blocking-by-construction send/receive on them via one
// reader and one writer goroutine per connection, reassembles sticky
// packets, and serializes a connection's outbound packets through a
// bounded, backpressured queue. Everything outside that, accepting
// sockets, outbound connect/reconnect policy, wire codecs, application
// dispatch, log sinks, config loading, is a collaborator concern plugged
// in through EventHandler and Host's constructor Options.
package corenet

import (
	"net"
	"sync/atomic"

	corenetErrors "github.com/rcproxy/corenet/pkg/errors"
	"github.com/rcproxy/corenet/pkg/ioctx"
	"github.com/rcproxy/corenet/pkg/logging"
	"github.com/rcproxy/corenet/pkg/sockopt"
)

// Host is the process-wide factory and registry for connections, and the
// owner of the pooled I/O contexts they borrow buffers from.
type Host struct {
	opts     *options
	handler  EventHandler
	registry *Registry
	pool     *ioctx.Pool
	nextID   int64
	stats    *hostStats
}

// NewHost builds a Host around handler, which receives every connection
// lifecycle hook. handler may embed BuiltinEventHandler to pick up
// do-nothing defaults for hooks it doesn't care about.
func NewHost(handler EventHandler, opts ...Option) *Host {
	o := loadOptions(opts...)
	h := &Host{
		opts:     o,
		handler:  handler,
		registry: newRegistry(),
		pool:     ioctx.NewPool(o.messageBufferSize, o.poolCapacity),
		nextID:   1000,
	}
	if o.metricsRegisterer != nil {
		h.stats = newHostStats(o.metricsNamespace)
		h.stats.register(o.metricsRegisterer)
	}
	return h
}

// NextConnectionID atomically allocates the next connection id. It is
// wait-free and strictly increasing across the Host's lifetime, starting
// above 1000.
func (h *Host) NextConnectionID() int64 {
	return atomic.AddInt64(&h.nextID, 1)
}

// NewConnection constructs a Connection around socket, allocating it a
// fresh id. It fails only if socket is nil. If socket is a *net.TCPConn,
// the Host's configured socket buffer sizes are applied to it on a
// best-effort basis; a platform or socket type that doesn't support the
// option is logged, not fatal.
func (h *Host) NewConnection(socket net.Conn) (*Connection, error) {
	if socket == nil {
		return nil, corenetErrors.ErrNilSocket
	}
	if tcp, ok := socket.(*net.TCPConn); ok && h.opts.socketBufferSize > 0 {
		if err := sockopt.SetRecvBuffer(tcp, h.opts.socketBufferSize); err != nil {
			logging.Warnf("corenet: set recv buffer: %v", err)
		}
		if err := sockopt.SetSendBuffer(tcp, h.opts.socketBufferSize); err != nil {
			logging.Warnf("corenet: set send buffer: %v", err)
		}
	}
	id := h.NextConnectionID()
	return newConnection(id, socket, h), nil
}

// GetConnectionByID looks up a live connection by id.
func (h *Host) GetConnectionByID(id int64) (*Connection, bool) {
	return h.registry.Get(id)
}

// Start is a default no-op. A collaborator embedding Host in its own
// listener/dialer type overrides Start to bind listeners or initiate
// outbound connects; the core itself has no opinion on accept/connect
// policy.
func (h *Host) Start() {}

// Stop drains the registry and calls BeginDisconnect on every connection
// that was still registered. BeginDisconnect runs a connection's teardown
// on the calling goroutine, so Stop returns only after each teardown it
// started has finished; a teardown already under way on another goroutine
// is skipped, not waited for.
func (h *Host) Stop() {
	for _, c := range h.registry.DrainAll() {
		c.BeginDisconnect(nil)
	}
}

// RegisterConnection adds c to the registry and fires OnConnected, but only
// if c is still active; a connection that has already begun tearing down
// is silently ignored.
func (h *Host) RegisterConnection(c *Connection) {
	if !c.Active() {
		return
	}
	h.registry.Add(c)
	h.handler.OnConnected(c)
	if h.stats != nil {
		h.stats.connected()
	}
}

func (h *Host) unregister(c *Connection) {
	h.registry.Remove(c.ID())
}

// fireSendCallback is the single call site that invokes OnSendCallback,
// keeping the metrics counter in lockstep with the hook.
func (h *Host) fireSendCallback(c *Connection, pkt *Packet, status Status) {
	h.handler.OnSendCallback(c, pkt, status)
	if h.stats != nil {
		h.stats.sendResult(status)
	}
}

func (h *Host) fireDisconnected(c *Connection, err error) {
	h.handler.OnDisconnected(c, err)
	if h.stats != nil {
		h.stats.disconnected(err)
	}
}

// CountConnection returns the number of connections currently registered.
func (h *Host) CountConnection() int {
	return h.registry.Count()
}

func (h *Host) acquireContext() *ioctx.Context {
	ctx := h.pool.Get()
	h.samplePool()
	return ctx
}

func (h *Host) releaseContext(ctx *ioctx.Context) {
	h.pool.Put(ctx)
	h.samplePool()
}

func (h *Host) samplePool() {
	if h.stats != nil {
		h.stats.samplePool(h.pool.Len(), h.pool.Cap())
	}
}

// PoolSize reports how many I/O contexts are currently cached for reuse.
func (h *Host) PoolSize() int { return h.pool.Len() }

// PoolCapacity reports the I/O context pool's hard cap.
func (h *Host) PoolCapacity() int { return h.pool.Cap() }
