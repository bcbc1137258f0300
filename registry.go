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

import "github.com/cornelk/hashmap"

// Registry maps connection id to Connection. It is backed by the same
// lock-free concurrent map the rest of this codebase's lineage already
// depends on for its own id-keyed tables.
type Registry struct {
	m hashmap.HashMap
}

func newRegistry() *Registry {
	return &Registry{}
}

// Add registers c under its id.
func (r *Registry) Add(c *Connection) {
	r.m.Insert(c.ID(), c)
}

// Get looks up a connection by id.
func (r *Registry) Get(id int64) (*Connection, bool) {
	v, ok := r.m.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Connection), true
}

// Remove drops id from the registry.
func (r *Registry) Remove(id int64) {
	r.m.Del(id)
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	return r.m.Len()
}

// DrainAll removes every entry it iterates over and returns those
// connections, for Host.Stop to issue BeginDisconnect against. It is not
// atomic: a connection added while it runs may be left in the registry.
func (r *Registry) DrainAll() []*Connection {
	var conns []*Connection
	for kv := range r.m.Iter() {
		conns = append(conns, kv.Value.(*Connection))
		r.m.Del(kv.Key)
	}
	return conns
}
