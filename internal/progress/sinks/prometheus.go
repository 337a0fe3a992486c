package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/form4-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	days          *prometheus.CounterVec
	dayDuration   prometheus.Histogram
	currentDay    prometheus.Gauge
	documents     prometheus.Counter
	fetchFailures prometheus.Counter
	batchDuration prometheus.Histogram
	transactions  *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		days: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "form4_days_total",
			Help: "Crawl days finished partitioned by result.",
		}, []string{"result"}),
		dayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "form4_day_duration_seconds",
			Help:    "Wall time per completed crawl day.",
			Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1200, 2400},
		}),
		currentDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "form4_current_day_timestamp_seconds",
			Help: "Midnight UTC of the day most recently started.",
		}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "form4_documents_fetched_total",
			Help: "Documents fetched and parsed successfully.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "form4_fetch_failures_total",
			Help: "Documents that failed to fetch or parse.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "form4_batch_duration_seconds",
			Help:    "Time to fetch one batch, excluding the pause.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "form4_transactions_total",
			Help: "Ingested transactions partitioned by outcome.",
		}, []string{"outcome"}),
	}
	for _, collector := range []prometheus.Collector{
		s.days,
		s.dayDuration,
		s.currentDay,
		s.documents,
		s.fetchFailures,
		s.batchDuration,
		s.transactions,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageDayStart:
		s.currentDay.Set(float64(evt.Day.Time().Unix()))
	case progress.StageDayDone:
		s.days.WithLabelValues("done").Inc()
		if evt.Dur > 0 {
			s.dayDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageDaySkipped:
		s.days.WithLabelValues("skipped").Inc()
	case progress.StageDayError:
		s.days.WithLabelValues("error").Inc()
	case progress.StageFetchBatch:
		if ok := evt.Count - evt.Failed; ok > 0 {
			s.documents.Add(float64(ok))
		}
		if evt.Dur > 0 {
			s.batchDuration.Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchFailed:
		s.fetchFailures.Inc()
	case progress.StageIngestDone:
		s.transactions.WithLabelValues("inserted").Add(float64(evt.Inserted))
		s.transactions.WithLabelValues("duplicate").Add(float64(evt.Duplicates))
		s.transactions.WithLabelValues("failed").Add(float64(evt.Failed))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
