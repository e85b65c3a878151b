package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autocurrency"

type Metrics struct {
	RatesUpdated      *prometheus.CounterVec
	FetchFailures     *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
	HistoryInserted   prometheus.Counter
	HistoryDuplicates prometheus.Counter
	HistoryRowsPruned prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RatesUpdated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rates_updated_total",
				Help:      "Exchange rates written to project currencies, by source",
			},
			[]string{"source"},
		),
		FetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_fetch_failures_total",
				Help:      "Failures while resolving or fetching rates, by stage",
			},
			[]string{"stage"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_cycle_duration_seconds",
				Help:      "Duration of a full fetch cycle",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		HistoryInserted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_rows_inserted_total",
				Help:      "History samples inserted",
			},
		),
		HistoryDuplicates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_duplicates_total",
				Help:      "History samples skipped because one already existed",
			},
		),
		HistoryRowsPruned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_rows_pruned_total",
				Help:      "History rows removed by retention",
			},
		),
	}
}

const (
	SourceStandard = "standard"
	SourceCustom   = "custom"

	StageResolve  = "resolve"
	StageStandard = "standard"
	StageCustom   = "custom"
	StageBridge   = "bridge"
	StagePersist  = "persist"
)
