// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var timelineCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webepg_timeline_cache_total",
	Help: "Timeline cache lookups by result",
}, []string{"backend", "result"}) // result=hit|miss|error

// RecordCacheLookup counts one timeline cache lookup.
func RecordCacheLookup(backend, result string) {
	timelineCache.WithLabelValues(backend, result).Inc()
}
