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

// Package metricshttp implements the Metrics HTTP API public interface.
package metricshttp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
)

// NewMetricsHTTP registers the imtree metrics in r and returns a mux
// serving them, along with the default process collectors, at /metrics.
func NewMetricsHTTP(r *prometheus.Registry) *http.ServeMux {
	metrics.Register(r)

	g := prometheus.Gatherers{
		prometheus.DefaultGatherer,
		r,
	}
	handler := promhttp.HandlerFor(g, promhttp.HandlerOpts{ErrorLog: log.GetLogger()})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(r, handler))
	return mux
}
