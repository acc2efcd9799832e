// Copyright 2026 The valkeygo Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the client's Prometheus series: commands
// issued, redirects followed, pool occupancy, and subscription
// deliveries. Generalized from controller/metrics.go's
// promauto-registered counters/gauges, one series per thing worth
// alerting on rather than one series per internal event.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/valkeygo/valkeygo/common"
)

var (
	// CommandsTotal counts every command dispatched, labeled by command
	// name and outcome ("ok", "error").
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "commands_total",
			Help:      "commands dispatched, by command name and outcome",
		},
		[]string{"command", "outcome"},
	)

	// RedirectsTotal counts MOVED/ASK/TRYAGAIN redirects followed,
	// labeled by kind.
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "redirects_total",
			Help:      "cluster redirects followed, by kind",
		},
		[]string{"kind"},
	)

	// TopologyRefreshesTotal counts CLUSTER SHARDS/SLOTS refresh
	// attempts, labeled by outcome.
	TopologyRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "topology_refreshes_total",
			Help:      "cluster topology refresh attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// PoolLeasesInFlight gauges connections currently leased out,
	// labeled by node address.
	PoolLeasesInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "pool_leases_in_flight",
			Help:      "connections currently leased, by node address",
		},
		[]string{"node"},
	)

	// PoolOpenConnections gauges open (idle + leased) connections,
	// labeled by node address.
	PoolOpenConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "pool_open_connections",
			Help:      "open connections, by node address",
		},
		[]string{"node"},
	)

	// SubscriptionPushesTotal counts pub/sub messages delivered to a
	// Subscription, labeled by filter kind.
	SubscriptionPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "subscription_pushes_total",
			Help:      "pub/sub pushes delivered, by filter kind",
		},
		[]string{"kind"},
	)

	// CommandDuration histograms round-trip latency, labeled by
	// command name.
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: common.App,
			Name:      "command_duration_seconds",
			Help:      "command round-trip latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
)

// ObserveCommand records one completed command's outcome and latency.
func ObserveCommand(command string, err error, seconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CommandsTotal.WithLabelValues(command, outcome).Inc()
	CommandDuration.WithLabelValues(command).Observe(seconds)
}

// ObserveRedirect records one followed redirect of the given kind
// ("MOVED", "ASK", "TRYAGAIN").
func ObserveRedirect(kind string) {
	RedirectsTotal.WithLabelValues(kind).Inc()
}

// ObserveTopologyRefresh records one topology refresh attempt's
// outcome ("ok" or "error").
func ObserveTopologyRefresh(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	TopologyRefreshesTotal.WithLabelValues(outcome).Inc()
}

// SetPoolStats publishes one node's current pool occupancy.
func SetPoolStats(nodeAddr string, open, leased int) {
	PoolOpenConnections.WithLabelValues(nodeAddr).Set(float64(open))
	PoolLeasesInFlight.WithLabelValues(nodeAddr).Set(float64(leased))
}

// ObserveSubscriptionPush records one pub/sub message delivered to a
// filter of the given kind.
func ObserveSubscriptionPush(kind string) {
	SubscriptionPushesTotal.WithLabelValues(kind).Inc()
}
