package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/listing-host-crawler/internal/crawler"
	"github.com/JakeFAU/listing-host-crawler/internal/progress"
)

const target = "https://www.airbnb.fr/s/Paris"

func runEvents() []progress.Event {
	run := uuid.New()
	now := time.Now()
	return []progress.Event{
		{RunID: run, TS: now, Stage: progress.StageRunStart, Count: 1},
		{RunID: run, TS: now, Stage: progress.StageDiscovered, Target: target, Count: 3},
		{RunID: run, TS: now, Stage: progress.StageListingDone, URL: "https://www.airbnb.fr/rooms/1", Status: crawler.StatusOK, Dur: 3 * time.Second},
		{RunID: run, TS: now, Stage: progress.StageListingDone, URL: "https://www.airbnb.fr/rooms/2", Status: crawler.StatusOK, Worker: 1, Dur: 2 * time.Second},
		{RunID: run, TS: now, Stage: progress.StageListingDone, URL: "https://www.airbnb.fr/rooms/3", Status: crawler.StatusPageError, Worker: 1},
		{RunID: run, TS: now, Stage: progress.StageBatchDone, Target: target, Worker: 1, Count: 1},
		{RunID: run, TS: now, Stage: progress.StageTargetDone, Target: target, Count: 3},
		{RunID: run, TS: now, Stage: progress.StageRunDone, Count: 3, Dur: 42 * time.Second},
	}
}

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), runEvents()))

	require.InDelta(t, 3, testutil.ToFloat64(sink.discovered), 1e-9)
	require.InDelta(t, 2, testutil.ToFloat64(sink.listings.WithLabelValues("ok")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(sink.listings.WithLabelValues("page_error")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(sink.batchFailures.WithLabelValues("1")), 1e-9)
	require.InDelta(t, 1, testutil.ToFloat64(sink.targets.WithLabelValues("done")), 1e-9)
	require.InDelta(t, 3, testutil.ToFloat64(sink.runRecords), 1e-9)
	require.InDelta(t, 42, testutil.ToFloat64(sink.runDuration), 1e-9)
	require.Equal(t, 2, testutil.CollectAndCount(sink.listingDuration, "hostcrawler_listing_duration_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	var already prometheus.AlreadyRegisteredError
	require.True(t, errors.As(err, &already))
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))

	events := runEvents()
	events = append(events, progress.Event{RunID: uuid.New(), TS: time.Now(), Stage: progress.StageTargetFailed, Target: target, Note: "timeout"})
	require.NoError(t, sink.Consume(context.Background(), events))

	require.Equal(t, len(events), logs.Len())
	require.Equal(t, 4, logs.FilterLevelExact(zap.DebugLevel).Len())
	require.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
	warn := logs.FilterLevelExact(zap.WarnLevel).All()[0]
	require.Equal(t, "timeout", warn.ContextMap()["note"])
}
