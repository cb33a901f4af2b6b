package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var writesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lumond",
		Subsystem: "audit",
		Name:      "writes_total",
		Help:      "Total number of audit writes by table and outcome",
	},
	[]string{"table", "status"},
)

func recordWrite(table string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	writesTotal.WithLabelValues(table, status).Inc()
}
