package classify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	judgeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vocabmatch",
		Subsystem: "judge",
		Name:      "calls_total",
		Help:      "Judgment service calls by outcome.",
	}, []string{"outcome"})

	judgeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vocabmatch",
		Subsystem: "judge",
		Name:      "retries_total",
		Help:      "Judgment calls retried after a transient failure.",
	})

	degradedGroups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vocabmatch",
		Subsystem: "judge",
		Name:      "degraded_groups_total",
		Help:      "Occurrence groups degraded to unverifiable.",
	})

	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vocabmatch",
		Subsystem: "judge",
		Name:      "cache_requests_total",
		Help:      "Verdict cache lookups by result.",
	}, []string{"result"})
)
