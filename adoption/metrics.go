package adoption

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics served with promhttp when the service runs with -m.
var (
	adoptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adoption",
		Name:      "adoptions_total",
		Help:      "Adopt actions by final state.",
	}, []string{"result"})

	scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adoption",
		Name:      "scans_total",
		Help:      "Adoption scans by result.",
	}, []string{"result"})

	adopted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "adoption",
		Name:      "adopted_pets",
		Help:      "Pets shown as adopted.",
	})

	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adoption",
		Name:      "contract_events_total",
		Help:      "Contract events received by watches.",
	}, []string{"event"})
)

const (
	resultOK   = "ok"
	resultFail = "failed"
)
