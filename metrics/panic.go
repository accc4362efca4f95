package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricPanic = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mimeengine_panic_total",
		Help: "Number of recovered panics while composing messages, by package.",
	},
	[]string{
		"pkg",
	},
)

func PanicInc(pkg string) {
	metricPanic.WithLabelValues(pkg).Inc()
}
