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

import "sync"

// recordingHandler is a test EventHandler that records every hook
// invocation and lets a test synchronize on specific ones via channels.
type recordingHandler struct {
	mu             sync.Mutex
	connected      []int64
	disconnected   chan error
	sendCallback   chan Status
	received       chan []byte
	connectionErrs chan error

	// onMessage, when set, overrides the default record-and-consume-everything
	// behavior.
	onMessage func(c *Connection, payload []byte, next Continuation)
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		disconnected:   make(chan error, 8),
		sendCallback:   make(chan Status, 8),
		received:       make(chan []byte, 8),
		connectionErrs: make(chan error, 8),
	}
}

func (h *recordingHandler) OnConnected(c *Connection) {
	h.mu.Lock()
	h.connected = append(h.connected, c.ID())
	h.mu.Unlock()
}

func (h *recordingHandler) sawConnected(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, v := range h.connected {
		if v == id {
			return true
		}
	}
	return false
}

func (h *recordingHandler) OnStartSending(_ *Connection, _ *Packet) {}

func (h *recordingHandler) OnSendCallback(_ *Connection, _ *Packet, status Status) {
	h.sendCallback <- status
}

func (h *recordingHandler) OnMessageReceived(c *Connection, payload []byte, next Continuation) {
	if h.onMessage != nil {
		h.onMessage(c, payload, next)
		return
	}
	cp := append([]byte(nil), payload...)
	h.received <- cp
	next(len(payload))
}

func (h *recordingHandler) OnDisconnected(_ *Connection, err error) {
	h.disconnected <- err
}

func (h *recordingHandler) OnConnectionError(_ *Connection, err error) {
	h.connectionErrs <- err
}
