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

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	corenetErrors "github.com/rcproxy/corenet/pkg/errors"
	"github.com/rcproxy/corenet/pkg/ioctx"
	"github.com/rcproxy/corenet/pkg/logging"
	"github.com/rcproxy/corenet/pkg/sendqueue"
)

// reassemblyPool recycles the growable byte buffers connections use to hold
// unconsumed prefix bytes across receive completions, the same way this
// codebase already pools fixed-size I/O buffers.
var reassemblyPool bytebufferpool.Pool

// Connection is a per-socket state machine coordinating concurrent send
// and receive, orderly disconnect, and resource reclamation. The zero value
// is not usable; construct one through Host.NewConnection.
type Connection struct {
	id         int64
	host       *Host
	conn       net.Conn
	localAddr  net.Addr
	remoteAddr net.Addr

	active    uint32 // atomic 1/0
	receiving uint32 // atomic 0/1

	// ctxMu guards sendCtx/recvCtx against the race between a send or
	// receive goroutine still using one of them and a concurrent teardown
	// (triggered from a different goroutine - Host.Stop, or the other
	// direction's own I/O error) returning it to the pool out from under
	// the in-flight access.
	ctxMu   sync.Mutex
	sendCtx *ioctx.Context
	recvCtx *ioctx.Context
	queue   *sendqueue.Queue

	currentlySending atomic.Pointer[Packet]
	reassembly       *bytebufferpool.ByteBuffer

	disconnectOnce     sync.Once
	disconnectMu       sync.Mutex
	disconnectHandlers []func(*Connection, error)

	userData atomic.Value
}

func newConnection(id int64, socket net.Conn, host *Host) *Connection {
	c := &Connection{
		id:      id,
		host:    host,
		conn:    socket,
		sendCtx: host.acquireContext(),
		recvCtx: host.acquireContext(),
		queue:   sendqueue.New(host.opts.queueCapacity),
	}
	atomic.StoreUint32(&c.active, 1)

	// Best-effort: a socket can already be half-torn-down at accept-return,
	// so endpoint retrieval must never abort construction.
	func() {
		defer func() { recover() }() //nolint:errcheck
		c.localAddr = socket.LocalAddr()
		c.remoteAddr = socket.RemoteAddr()
	}()

	return c
}

// ID returns the connection's host-assigned identity.
func (c *Connection) ID() int64 { return c.id }

// Active reports whether the connection has not yet begun tearing down.
func (c *Connection) Active() bool { return atomic.LoadUint32(&c.active) == 1 }

// LocalAddr returns the best-effort local endpoint captured at construction,
// or nil if it could not be determined.
func (c *Connection) LocalAddr() net.Addr { return c.localAddr }

// RemoteAddr returns the best-effort remote endpoint captured at
// construction, or nil if it could not be determined.
func (c *Connection) RemoteAddr() net.Addr { return c.remoteAddr }

// UserData returns the opaque value a collaborator previously stashed with
// SetUserData, or nil.
func (c *Connection) UserData() interface{} { return c.userData.Load() }

// SetUserData stashes an opaque value alongside the connection.
func (c *Connection) SetUserData(v interface{}) { c.userData.Store(v) }

// OnDisconnected subscribes fn to this connection's Disconnected event. It
// fires at most once per connection, before the host's OnDisconnected hook.
func (c *Connection) OnDisconnected(fn func(*Connection, error)) {
	c.disconnectMu.Lock()
	c.disconnectHandlers = append(c.disconnectHandlers, fn)
	c.disconnectMu.Unlock()
}

// BeginSend submits pkt to this connection's send queue. It never blocks on
// socket I/O: it either hands pkt to the queue (waiting only while the
// queue's waiting list is full), or starts a new send goroutine for a
// packet that's now the sender. Exactly one OnSendCallback will eventually
// fire for pkt, in the order BeginSend was called across all packets on
// this connection. A packet in flight when the connection tears down gets
// StatusSuccess if its last Write returned before the shutdown was
// observed, otherwise StatusFailed with its sent size reset to 0.
func (c *Connection) BeginSend(pkt *Packet) {
	if !c.Active() {
		pkt.Reset()
		c.host.fireSendCallback(c, pkt, StatusFailed)
		return
	}

	switch c.queue.TrySend(pkt) {
	case sendqueue.Closed:
		pkt.Reset()
		c.host.fireSendCallback(c, pkt, StatusFailed)
	case sendqueue.Enqueued:
		// A send chain is already running; it will pick this packet up via
		// TrySendNext once it finishes the one currently in flight.
	case sendqueue.SendCurr:
		c.host.handler.OnStartSending(c, pkt)
		go c.runSendChain(pkt)
	}
}

// runSendChain drives one packet after another to completion on its own
// goroutine until the queue has nothing left to send. Exactly one such
// goroutine is ever alive per connection at a time: TrySend only grants
// SendCurr to one caller, and the chain only continues by pulling the next
// packet off the same queue itself.
func (c *Connection) runSendChain(pkt *Packet) {
	for {
		if prev := c.currentlySending.Load(); prev != nil {
			// Invariant violation: the previous chunk's cleanup should
			// always have cleared this before a new packet starts.
			c.host.handler.OnConnectionError(c, corenetErrors.ErrNoCurrentPacket)
			c.BeginDisconnect(corenetErrors.ErrNoCurrentPacket)
			return
		}

		if err := c.sendOne(pkt); err != nil {
			return
		}

		c.currentlySending.Store(nil)
		c.host.fireSendCallback(c, pkt, StatusSuccess)

		next := c.queue.TrySendNext()
		if next == nil {
			return
		}
		pkt = next
		c.host.handler.OnStartSending(c, pkt)
	}
}

// sendOne writes pkt's entire remaining payload in MessageBufferSize-sized
// chunks. Go's net.Conn.Write already honors the io.Writer contract (n ==
// len(p) whenever err == nil), which collapses the spec's partial-transfer
// retry loop into a plain chunking loop; see DESIGN.md.
//
// A concurrent teardown on another goroutine (Host.Stop, or the receive
// side's own read error) can return sendCtx to the pool between chunks.
// ctxMu makes the freed-check and the buffer use/Write atomic with respect
// to free()'s nil-and-release, so this never copies into or writes from a
// buffer that's already back in the pool for another connection to reuse.
func (c *Connection) sendOne(pkt *Packet) error {
	for !pkt.Done() {
		c.currentlySending.Store(pkt)

		c.ctxMu.Lock()
		ctx := c.sendCtx
		if ctx == nil {
			c.ctxMu.Unlock()
			c.currentlySending.Store(nil)
			pkt.Reset()
			c.host.fireSendCallback(c, pkt, StatusFailed)
			return corenetErrors.ErrSendContextFreed
		}

		remaining := pkt.Remaining()
		chunk := len(remaining)
		if chunk > len(ctx.Buffer) {
			chunk = len(ctx.Buffer)
		}
		copy(ctx.Buffer[:chunk], remaining[:chunk])

		n, err := c.conn.Write(ctx.Buffer[:chunk])
		c.ctxMu.Unlock()
		if err != nil {
			c.currentlySending.Store(nil)
			c.BeginDisconnect(err)
			pkt.Reset()
			c.host.fireSendCallback(c, pkt, StatusFailed)
			return err
		}
		pkt.Advance(n)
	}
	c.currentlySending.Store(nil)
	return nil
}

// BeginReceive idempotently starts the receive loop. The first call
// transitions receiving 0->1 and starts reading; later calls are no-ops.
func (c *Connection) BeginReceive() {
	if !atomic.CompareAndSwapUint32(&c.receiving, 0, 1) {
		return
	}
	go c.receiveLoop()
}

func (c *Connection) receiveLoop() {
	for {
		c.ctxMu.Lock()
		ctx := c.recvCtx
		if ctx == nil {
			// A concurrent teardown (send-side error, or Host.Stop) already
			// freed recvCtx; there is nothing left to read into.
			c.ctxMu.Unlock()
			return
		}
		n, err := c.conn.Read(ctx.Buffer)
		c.ctxMu.Unlock()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.BeginDisconnect(nil)
			} else {
				c.BeginDisconnect(err)
			}
			return
		}
		if n == 0 {
			continue
		}

		view := c.buildView(ctx.Buffer[:n])
		if !c.dispatchReceived(view) {
			return
		}
	}
}

// buildView returns the slice to hand to OnMessageReceived: the raw socket
// buffer (zero copy) when there's no pending reassembly, or the reassembly
// buffer with the new bytes appended.
func (c *Connection) buildView(data []byte) []byte {
	if c.reassembly == nil || c.reassembly.Len() == 0 {
		return data
	}
	_, _ = c.reassembly.Write(data)
	return c.reassembly.Bytes()
}

// dispatchReceived fires OnMessageReceived for payload and, via the
// continuation, either resolves this read (returning true so the caller
// posts a fresh socket read) or re-fires synchronously for a sticky-packet
// suffix (returning whatever that nested call decides).
func (c *Connection) dispatchReceived(payload []byte) bool {
	proceed := true
	var cont Continuation
	cont = func(readLength int) {
		if readLength < 0 || readLength > len(payload) {
			panic(corenetErrors.ErrInvalidReadLength)
		}
		// A handler may have torn the connection down from within this very
		// callback (e.g. on a protocol violation). Its resources, recvCtx
		// in particular, are gone by the time we get here, so the receive
		// loop must not be told to post another read.
		if !c.Active() {
			proceed = false
			return
		}
		switch {
		case readLength == 0:
			c.appendToReassembly(payload)
		case readLength == len(payload):
			c.clearReassembly()
		default:
			proceed = c.dispatchReceived(payload[readLength:])
		}
	}
	c.host.handler.OnMessageReceived(c, payload, cont)
	return proceed
}

// appendToReassembly preserves the whole of payload across the next read.
// If payload already aliases the reassembly buffer's own backing array
// (the "already had leftovers" path through buildView), Reset followed by
// Write copies payload onto exactly the range it already occupies. That's
// safe since copy handles fully-overlapping ranges, not a clobber.
func (c *Connection) appendToReassembly(payload []byte) {
	if c.reassembly == nil {
		c.reassembly = reassemblyPool.Get()
	}
	c.reassembly.Reset()
	_, _ = c.reassembly.Write(payload)
}

func (c *Connection) clearReassembly() {
	if c.reassembly != nil {
		c.reassembly.Reset()
	}
}

// BeginDisconnect is the universal cancel primitive. It is idempotent: the
// first caller to flip active 1->0 performs the whole teardown sequence;
// every other caller returns immediately.
func (c *Connection) BeginDisconnect(err error) {
	if !atomic.CompareAndSwapUint32(&c.active, 1, 0) {
		return
	}
	c.teardown(err)
}

func (c *Connection) teardown(err error) {
	c.shutdownSocket()

	c.disconnectOnce.Do(func() {
		c.disconnectMu.Lock()
		handlers := c.disconnectHandlers
		c.disconnectMu.Unlock()
		for _, fn := range handlers {
			fn(c, err)
		}
	})

	c.host.fireDisconnected(c, err)
	c.free()
}

// shutdownSocket issues a half-then-full shutdown where the connection
// supports it, then closes the socket. Shutdown failures are logged and
// never block the rest of teardown; the spec's source does the same
// (proceed directly to the disconnect callback without waiting).
func (c *Connection) shutdownSocket() {
	if sc, ok := c.conn.(interface {
		CloseRead() error
		CloseWrite() error
	}); ok {
		if err := sc.CloseWrite(); err != nil {
			logging.Warnf("corenet: connection %d shutdown(write) failed: %v", c.id, err)
		}
		if err := sc.CloseRead(); err != nil {
			logging.Warnf("corenet: connection %d shutdown(read) failed: %v", c.id, err)
		}
	}
	if err := c.conn.Close(); err != nil {
		logging.Warnf("corenet: connection %d close failed: %v", c.id, err)
	}
}

// free closes the send queue (failing whatever it drains), returns both I/O
// contexts and the reassembly buffer to their pools, unregisters from the
// host, and drops the socket reference.
//
// The nil-and-release of sendCtx/recvCtx happens under ctxMu, the same lock
// sendOne and receiveLoop hold around their own use of those contexts: this
// is what makes a context's release and an in-flight chunk's use of it
// mutually exclusive rather than a data race.
func (c *Connection) free() {
	for _, pkt := range c.queue.Close() {
		pkt.Reset()
		c.host.fireSendCallback(c, pkt, StatusFailed)
	}

	c.ctxMu.Lock()
	sendCtx, recvCtx := c.sendCtx, c.recvCtx
	c.sendCtx, c.recvCtx = nil, nil
	c.ctxMu.Unlock()

	if sendCtx != nil {
		c.host.releaseContext(sendCtx)
	}
	if recvCtx != nil {
		c.host.releaseContext(recvCtx)
	}
	if c.reassembly != nil {
		reassemblyPool.Put(c.reassembly)
		c.reassembly = nil
	}

	c.host.unregister(c)
	c.conn = nil
}
