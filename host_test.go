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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenetErrors "github.com/rcproxy/corenet/pkg/errors"
)

func TestNewConnectionRejectsNilSocket(t *testing.T) {
	h := NewHost(newRecordingHandler())
	_, err := h.NewConnection(nil)
	assert.ErrorIs(t, err, corenetErrors.ErrNilSocket)
}

func TestNextConnectionIDStartsAbove1000AndIsMonotonic(t *testing.T) {
	h := NewHost(newRecordingHandler())
	first := h.NextConnectionID()
	second := h.NextConnectionID()
	assert.Greater(t, first, int64(1000))
	assert.Equal(t, first+1, second)
}

func TestRegisterConnectionFiresOnConnectedAndCounts(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	rec := newRecordingHandler()
	h := NewHost(rec)
	c, err := h.NewConnection(server)
	require.NoError(t, err)

	assert.Equal(t, 0, h.CountConnection())
	h.RegisterConnection(c)
	assert.Equal(t, 1, h.CountConnection())

	got, ok := h.GetConnectionByID(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.True(t, rec.sawConnected(c.ID()))
}

func TestRegisterConnectionIgnoresAlreadyTornDownConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	rec := newRecordingHandler()
	h := NewHost(rec)
	c, err := h.NewConnection(server)
	require.NoError(t, err)

	c.BeginDisconnect(nil)
	h.RegisterConnection(c)

	assert.Equal(t, 0, h.CountConnection())
	assert.False(t, rec.sawConnected(c.ID()))
}

func TestStopDisconnectsEveryRegisteredConnection(t *testing.T) {
	rec := newRecordingHandler()
	h := NewHost(rec)

	var conns []*Connection
	var clients []net.Conn
	for i := 0; i < 3; i++ {
		client, server := net.Pipe()
		clients = append(clients, client)
		c, err := h.NewConnection(server)
		require.NoError(t, err)
		h.RegisterConnection(c)
		conns = append(conns, c)
	}
	defer func() {
		for _, cl := range clients {
			cl.Close()
		}
	}()

	h.Stop()
	assert.Equal(t, 0, h.CountConnection())
	for _, c := range conns {
		assert.False(t, c.Active())
	}
}
