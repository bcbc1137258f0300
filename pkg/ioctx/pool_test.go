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

package ioctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAllocatesWhenEmpty(t *testing.T) {
	p := NewPool(1024, 4)
	ctx := p.Get()
	require.NotNil(t, ctx)
	assert.Len(t, ctx.Buffer, 1024)
	assert.Equal(t, 0, p.Len())
}

func TestPutThenGetReusesTheSameBacking(t *testing.T) {
	p := NewPool(16, 4)
	ctx := p.Get()
	ctx.Buffer[0] = 0xFF

	p.Put(ctx)
	assert.Equal(t, 1, p.Len())

	reused := p.Get()
	assert.Same(t, ctx, reused)
	assert.Equal(t, byte(0xFF), reused.Buffer[0], "Put must not reallocate the buffer")
}

func TestPutDiscardsMismatchedBufferSize(t *testing.T) {
	p := NewPool(16, 4)
	foreign := &Context{Buffer: make([]byte, 32)}
	p.Put(foreign)
	assert.Equal(t, 0, p.Len())
}

func TestPutDiscardsAtCapacity(t *testing.T) {
	p := NewPool(8, 2)
	a, b := p.Get(), p.Get()
	p.Put(a)
	p.Put(b)
	assert.Equal(t, 2, p.Len())

	p.Put(&Context{Buffer: make([]byte, 8)})
	assert.Equal(t, 2, p.Len(), "pool must not grow past its hard cap")
}

func TestCapAndBufferSize(t *testing.T) {
	p := NewPool(128, 7)
	assert.Equal(t, 7, p.Cap())
	assert.Equal(t, 128, p.BufferSize())
}

func TestDefaultCapacityFallback(t *testing.T) {
	p := NewPool(16, 0)
	assert.Equal(t, DefaultCapacity, p.Cap())
}
