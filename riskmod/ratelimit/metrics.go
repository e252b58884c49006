package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "riskmod_ratelimit_decisions",
	Help: "Number of rate limit decisions, by tier and outcome",
}, []string{"tier", "outcome"})
