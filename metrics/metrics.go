/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package metrics holds the prometheus collectors shared by the imtree
// packages.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (

	// SERVER

	ImtreeInstancesCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "imtree_instances_count",
			Help: "Number of imtree servers currently running",
		},
	)

	// API

	APIHealthcheckRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_api_healthcheck_requests_total",
			Help: "The total number of healthcheck api requests",
		},
	)
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imtree_api_requests_total",
			Help: "The total number of api requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	// TREE

	TreeInserts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_tree_insert_total",
			Help: "Number of leaves inserted.",
		},
	)
	TreeUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_tree_update_total",
			Help: "Number of leaves updated.",
		},
	)
	TreeDeletes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_tree_delete_total",
			Help: "Number of leaves deleted.",
		},
	)
	TreeProofs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_tree_proof_total",
			Help: "Number of membership proofs generated.",
		},
	)

	// GROUPS

	GroupsCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "imtree_groups_count",
			Help: "Number of groups in the registry.",
		},
	)
	GroupMutationDurationSeconds = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "imtree_group_mutation_duration_seconds",
			Help: "Duration of the replicated group mutations.",
		},
	)
	GroupProofDurationSeconds = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "imtree_group_proof_duration_seconds",
			Help: "Duration of the membership proof queries.",
		},
	)

	// CACHE

	ProofCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_proof_cache_hits_total",
			Help: "Number of proofs served from the cache.",
		},
	)
	ProofCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_proof_cache_misses_total",
			Help: "Number of proofs computed on a cache miss.",
		},
	)

	// PUBLISHER

	EventsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_events_published_total",
			Help: "Number of group events published.",
		},
	)
	EventsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "imtree_events_failed_total",
			Help: "Number of group events that could not be published.",
		},
	)

	// PROMETHEUS

	metricsList = []prometheus.Collector{
		ImtreeInstancesCount,

		APIHealthcheckRequestsTotal,
		APIRequestsTotal,

		TreeInserts,
		TreeUpdates,
		TreeDeletes,
		TreeProofs,

		GroupsCount,
		GroupMutationDurationSeconds,
		GroupProofDurationSeconds,

		ProofCacheHits,
		ProofCacheMisses,

		EventsPublishedTotal,
		EventsFailedTotal,
	}

	registerMetrics sync.Once
)

// Register all metrics.
func Register(r *prometheus.Registry) {
	// Register the metrics.
	registerMetrics.Do(
		func() {
			for _, metric := range metricsList {
				r.MustRegister(metric)
			}
		},
	)
}
