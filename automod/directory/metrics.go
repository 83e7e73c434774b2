package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var entityCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_directory_cache_hits",
	Help: "Number of entity lookups served from cache",
}, []string{"kind"})

var entityCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_directory_cache_misses",
	Help: "Number of entity lookups passed to the inner directory",
}, []string{"kind"})

var entityRequestsCoalesced = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatmod_directory_requests_coalesced",
	Help: "Number of entity lookups which waited on an identical in-flight lookup",
}, []string{"kind"})
