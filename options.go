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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcproxy/corenet/pkg/ioctx"
	"github.com/rcproxy/corenet/pkg/sendqueue"
)

// Option is a function that configures a Host at construction.
type Option func(*options)

type options struct {
	socketBufferSize  int
	messageBufferSize int
	queueCapacity     int
	poolCapacity      int

	metricsNamespace  string
	metricsRegisterer prometheus.Registerer
}

func loadOptions(opts ...Option) *options {
	o := &options{
		socketBufferSize:  64 * 1024,
		messageBufferSize: 64 * 1024,
		queueCapacity:     sendqueue.DefaultCapacity,
		poolCapacity:      ioctx.DefaultCapacity,
		metricsNamespace:  "corenet",
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}

// WithSocketBufferSize sets the OS-level SO_RCVBUF/SO_SNDBUF size Host.
// NewConnection applies to *net.TCPConn sockets via pkg/sockopt. Must be
// >= 1; a value <= 0 (the default is 64KB, never zero) disables the call.
func WithSocketBufferSize(n int) Option {
	return func(o *options) { o.socketBufferSize = n }
}

// WithMessageBufferSize sets the size of each pooled I/O buffer, and so the
// maximum send-chunk granularity. Must be >= 1.
func WithMessageBufferSize(n int) Option {
	return func(o *options) { o.messageBufferSize = n }
}

// WithQueueCapacity overrides the per-connection send queue's waiting-list
// bound (spec default: 500).
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCapacity = n }
}

// WithPoolCapacity overrides the I/O context pool's hard cap (spec default:
// 50,000).
func WithPoolCapacity(n int) Option {
	return func(o *options) { o.poolCapacity = n }
}

// WithMetrics registers this Host's prometheus instrumentation against reg.
// Metrics collection is opt-in: a Host built without this Option never
// touches prometheus at all, so constructing many Hosts (as tests do) never
// risks a duplicate-registration panic.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.metricsRegisterer = reg }
}

// WithMetricsNamespace sets the prometheus namespace WithMetrics registers
// instruments under. Default: "corenet".
func WithMetricsNamespace(ns string) Option {
	return func(o *options) { o.metricsNamespace = ns }
}
