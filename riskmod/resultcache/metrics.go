package resultcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "riskmod_resultcache_hits",
	Help: "Number of evaluation results served from cache",
})

var cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "riskmod_resultcache_misses",
	Help: "Number of evaluation result cache misses",
})
