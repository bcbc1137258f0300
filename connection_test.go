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
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipedConnection(t *testing.T, rec *recordingHandler, opts ...Option) (*Connection, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	h := NewHost(rec, opts...)
	c, err := h.NewConnection(server)
	require.NoError(t, err)
	h.RegisterConnection(c)
	t.Cleanup(func() { client.Close() })
	return c, client
}

func TestBeginSendDeliversWholePayload(t *testing.T) {
	rec := newRecordingHandler()
	c, client := newPipedConnection(t, rec, WithMessageBufferSize(4))

	payload := []byte("hello, world")
	read := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := io.ReadFull(client, buf[:len(payload)])
		read <- buf[:n]
	}()

	c.BeginSend(NewPacket(payload))

	select {
	case got := <-read:
		assert.Equal(t, payload, got)
	case <-time.After(time.Second):
		t.Fatal("client never received the sent payload")
	}

	select {
	case status := <-rec.sendCallback:
		assert.Equal(t, StatusSuccess, status)
	case <-time.After(time.Second):
		t.Fatal("OnSendCallback never fired")
	}
}

func TestBeginSendOrdersMultiplePackets(t *testing.T) {
	rec := newRecordingHandler()
	c, client := newPipedConnection(t, rec)

	var got []byte
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 3)
		for len(got) < 3 {
			n, err := client.Read(buf)
			if err != nil {
				break
			}
			got = append(got, buf[:n]...)
		}
		close(done)
	}()

	c.BeginSend(NewPacket([]byte("a")))
	c.BeginSend(NewPacket([]byte("b")))
	c.BeginSend(NewPacket([]byte("c")))

	<-done
	assert.Equal(t, []byte("abc"), got)
	for i := 0; i < 3; i++ {
		select {
		case status := <-rec.sendCallback:
			assert.Equal(t, StatusSuccess, status)
		case <-time.After(time.Second):
			t.Fatal("missing OnSendCallback")
		}
	}
}

func TestBeginSendAfterDisconnectFailsImmediately(t *testing.T) {
	rec := newRecordingHandler()
	c, _ := newPipedConnection(t, rec)

	c.BeginDisconnect(nil)
	<-rec.disconnected

	pkt := NewPacket([]byte("too late"))
	c.BeginSend(pkt)

	select {
	case status := <-rec.sendCallback:
		assert.Equal(t, StatusFailed, status)
		assert.Equal(t, 0, pkt.SentSize())
	case <-time.After(time.Second):
		t.Fatal("OnSendCallback(Failed) never fired for a post-disconnect send")
	}
}

func TestReceiveLoopReassemblesStickyPackets(t *testing.T) {
	rec := newRecordingHandler()
	frame1 := []byte("FRAME-ONE!")
	frame2 := []byte("FRAME-TWO!!")

	var messages [][]byte
	msgDone := make(chan struct{})
	rec.onMessage = func(_ *Connection, payload []byte, next Continuation) {
		messages = append(messages, append([]byte(nil), payload...))
		switch len(messages) {
		case 1:
			next(len(frame1))
		case 2:
			next(len(frame2))
			close(msgDone)
		}
	}

	c, client := newPipedConnection(t, rec)
	c.BeginReceive()

	combined := append(append([]byte(nil), frame1...), frame2...)
	go client.Write(combined)

	select {
	case <-msgDone:
	case <-time.After(time.Second):
		t.Fatal("sticky-packet reassembly never completed")
	}

	require.Len(t, messages, 2)
	assert.Equal(t, combined, messages[0])
	assert.Equal(t, frame2, messages[1])
}

func TestReceiveLoopHoldsPartialFrameAcrossReads(t *testing.T) {
	rec := newRecordingHandler()
	full := []byte("0123456789")

	var seen [][]byte
	doneCh := make(chan struct{})
	rec.onMessage = func(_ *Connection, payload []byte, next Continuation) {
		seen = append(seen, append([]byte(nil), payload...))
		if len(payload) < len(full) {
			next(0)
			return
		}
		next(len(payload))
		close(doneCh)
	}

	c, client := newPipedConnection(t, rec)
	c.BeginReceive()

	go func() {
		client.Write(full[:4])
		client.Write(full[4:])
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("receive loop never reassembled the split frame")
	}

	require.Len(t, seen, 2)
	assert.Equal(t, full[:4], seen[0])
	assert.Equal(t, full, seen[1])
}

func TestReceiveLoopDisconnectsOnPeerClose(t *testing.T) {
	rec := newRecordingHandler()
	c, client := newPipedConnection(t, rec)
	c.BeginReceive()

	client.Close()

	select {
	case err := <-rec.disconnected:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("OnDisconnected never fired after peer close")
	}
	assert.False(t, c.Active())
}

func TestBeginDisconnectIsIdempotent(t *testing.T) {
	rec := newRecordingHandler()
	c, _ := newPipedConnection(t, rec)

	c.BeginDisconnect(nil)
	c.BeginDisconnect(nil)

	require.Len(t, rec.disconnected, 1)
}
