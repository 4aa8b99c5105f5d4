package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Block observer and distributor metrics.

var (
	// Scanner
	BlocksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dropbot",
		Subsystem: "scanner",
		Name:      "blocks_processed_total",
		Help:      "Total blocks handed to the tracker",
	})

	ScannerHead = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropbot",
		Subsystem: "scanner",
		Name:      "head_block",
		Help:      "Latest chain height seen by the scanner",
	})

	ScannerCursor = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropbot",
		Subsystem: "scanner",
		Name:      "cursor_block",
		Help:      "Next block the scanner will handle",
	})

	ScannerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropbot",
		Subsystem: "scanner",
		Name:      "errors_total",
		Help:      "Scanner errors by stage",
	}, []string{"stage"})

	// Tracker
	TrackedAddresses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropbot",
		Subsystem: "tracker",
		Name:      "tracked_addresses",
		Help:      "Distinct senders tracked since the last distribution",
	})

	// Distributor
	MintAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropbot",
		Subsystem: "distributor",
		Name:      "mint_attempts_total",
		Help:      "Mint attempts by result",
	}, []string{"result"})

	DistributionPasses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dropbot",
		Subsystem: "distributor",
		Name:      "passes_total",
		Help:      "Distribution passes run at cadence boundaries",
	})

	DistributionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dropbot",
		Subsystem: "distributor",
		Name:      "pass_duration_seconds",
		Help:      "Wall time of a distribution pass",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	NextTokenID = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dropbot",
		Subsystem: "distributor",
		Name:      "next_token_id",
		Help:      "Next sequential token id",
	})

	// Sinks
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dropbot",
		Subsystem: "sink",
		Name:      "errors_total",
		Help:      "Report delivery failures by output",
	}, []string{"output"})
)

const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultSkipped     = "skipped"
	ResultUnconfirmed = "unconfirmed"
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
