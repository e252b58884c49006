package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("riskmod")

var evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "riskmod_evaluation_duration_sec",
	Help: "Total duration of risk evaluations",
})

var evaluationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "riskmod_evaluations",
	Help: "Number of risk evaluations run",
}, []string{"history"})

var evaluationErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "riskmod_evaluation_errors",
	Help: "Number of risk evaluations which failed, by stage",
}, []string{"stage"})

var warningCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "riskmod_warnings",
	Help: "Number of warnings produced, after merging",
}, []string{"type", "severity"})

var ruleSetParseCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "riskmod_ruleset_parses",
	Help: "Rule set payloads normalized, by resulting schema kind",
}, []string{"kind"})
