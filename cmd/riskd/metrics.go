package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var riskRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "riskd_risk_requests",
	Help: "Number of risk API requests, by result",
}, []string{"result"})
