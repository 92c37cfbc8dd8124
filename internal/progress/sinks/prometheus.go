package sinks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/listing-host-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	targets         *prometheus.CounterVec
	discovered      prometheus.Counter
	listings        *prometheus.CounterVec
	listingDuration *prometheus.HistogramVec
	batchFailures   *prometheus.CounterVec
	runRecords      prometheus.Gauge
	runDuration     prometheus.Gauge
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostcrawler_targets_total",
			Help: "Search targets processed, partitioned by result.",
		}, []string{"result"}),
		discovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostcrawler_listings_discovered_total",
			Help: "Listing URLs found on search pages.",
		}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostcrawler_listings_total",
			Help: "Listings processed, partitioned by record status.",
		}, []string{"status"}),
		listingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hostcrawler_listing_duration_seconds",
			Help:    "Time spent on one listing page, partitioned by worker.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"worker"}),
		batchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostcrawler_batch_failed_pages_total",
			Help: "Pages that failed inside worker batches, partitioned by worker.",
		}, []string{"worker"}),
		runRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostcrawler_run_records",
			Help: "Records produced by the last finished run.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hostcrawler_run_duration_seconds",
			Help: "Wall time of the last finished run.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.targets,
		s.discovered,
		s.listings,
		s.listingDuration,
		s.batchFailures,
		s.runRecords,
		s.runDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageDiscovered:
			s.discovered.Add(float64(evt.Count))
		case progress.StageTargetDone:
			s.targets.WithLabelValues("done").Inc()
		case progress.StageTargetFailed:
			s.targets.WithLabelValues("failed").Inc()
		case progress.StageListingDone:
			s.listings.WithLabelValues(string(evt.Status)).Inc()
			if evt.Dur > 0 {
				s.listingDuration.WithLabelValues(strconv.Itoa(evt.Worker)).Observe(evt.Dur.Seconds())
			}
		case progress.StageBatchDone:
			if evt.Count > 0 {
				s.batchFailures.WithLabelValues(strconv.Itoa(evt.Worker)).Add(float64(evt.Count))
			}
		case progress.StageRunDone:
			s.runRecords.Set(float64(evt.Count))
			s.runDuration.Set(evt.Dur.Seconds())
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
