package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ticketReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_reservations_total",
			Help: "Seat reservation attempts by result",
		},
		[]string{"result"},
	)

	releaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_release_failures_total",
			Help: "Compensating seat releases that could not be applied",
		},
	)

	checkoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of checkout attempts",
			Buckets: prometheus.DefBuckets,
		},
	)

	checkoutLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_lines_total",
			Help: "Checkout line outcomes",
		},
		[]string{"result"},
	)

	payoutTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_transitions_total",
			Help: "Payout request and payout state transitions",
		},
		[]string{"to"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Realtime notifications by delivery status",
		},
		[]string{"status"},
	)
)

func TrackReservation(result string) {
	ticketReservations.WithLabelValues(result).Inc()
}

func TrackReleaseFailure() {
	releaseFailures.Inc()
}

func TrackCheckout(started time.Time) {
	checkoutDuration.Observe(time.Since(started).Seconds())
}

func TrackCheckoutLine(result string) {
	checkoutLines.WithLabelValues(result).Inc()
}

func TrackPayoutTransition(to string) {
	payoutTransitions.WithLabelValues(to).Inc()
}

func TrackNotification(status string) {
	notifications.WithLabelValues(status).Inc()
}

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
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
