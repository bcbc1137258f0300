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

import "github.com/prometheus/client_golang/prometheus"

// hostStats is a Host's prometheus instrumentation: connection lifecycle,
// send results, I/O context pool occupancy. It is registered against the
// prometheus.Registerer passed to WithMetrics; a Host built without that
// Option has no hostStats at all.
type hostStats struct {
	totalConnections *prometheus.CounterVec
	currConnections  *prometheus.GaugeVec
	disconnects      *prometheus.CounterVec
	sendResults      *prometheus.CounterVec
	queueWaiting     *prometheus.GaugeVec
	poolOccupancy    *prometheus.GaugeVec
}

func newHostStats(namespace string) *hostStats {
	return &hostStats{
		totalConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "total_connections",
			Help:      "total connections ever registered with this host",
		}, nil),
		currConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "curr_connections",
			Help:      "connections currently registered with this host",
		}, nil),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects",
			Help:      "connections torn down, by whether an error drove the disconnect",
		}, []string{"cause"}),
		sendResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_results",
			Help:      "packets completed through BeginSend, by outcome",
		}, []string{"status"}),
		queueWaiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_cached_contexts",
			Help:      "I/O contexts currently cached in the pool, ready for reuse",
		}, nil),
		poolOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_capacity",
			Help:      "hard cap on cached I/O contexts",
		}, nil),
	}
}

func (s *hostStats) register(reg prometheus.Registerer) {
	reg.MustRegister(
		s.totalConnections, s.currConnections, s.disconnects,
		s.sendResults, s.queueWaiting, s.poolOccupancy,
	)
}

func (s *hostStats) connected() {
	s.totalConnections.WithLabelValues().Inc()
	s.currConnections.WithLabelValues().Inc()
}

func (s *hostStats) disconnected(err error) {
	s.currConnections.WithLabelValues().Dec()
	if err != nil {
		s.disconnects.WithLabelValues("error").Inc()
	} else {
		s.disconnects.WithLabelValues("clean").Inc()
	}
}

func (s *hostStats) sendResult(status Status) {
	s.sendResults.WithLabelValues(status.String()).Inc()
}

func (s *hostStats) samplePool(cached, capacity int) {
	s.queueWaiting.WithLabelValues().Set(float64(cached))
	s.poolOccupancy.WithLabelValues().Set(float64(capacity))
}
