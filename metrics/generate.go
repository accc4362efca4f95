// Package metrics has prometheus metric variables/functions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRespond = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimeengine_respond_total",
			Help: "Messages derived from an existing message.",
		},
		[]string{
			"kind",     // reply, forward, redirect, digest
			"strategy", // smart, author, list, all, none; empty for non-replies
		},
	)

	metricMDN = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimeengine_mdn_total",
			Help: "Outcomes of message disposition notification requests.",
		},
		[]string{
			"state", // notrequested, ignored, pending, denied, sent, alreadysent
		},
	)

	metricParse = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mimeengine_parse_total",
			Help: "Parsed messages, with tolerated malformations.",
		},
		[]string{
			"result", // ok, malformed
		},
	)
)

func RespondInc(kind, strategy string) {
	metricRespond.WithLabelValues(kind, strategy).Inc()
}

func MDNInc(state string) {
	metricMDN.WithLabelValues(state).Inc()
}

func ParseInc(result string) {
	metricParse.WithLabelValues(result).Inc()
}
