// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racewatch_fetch_attempts_total",
		Help: "Upstream GET attempts, labelled by outcome (ok, error, status).",
	}, []string{"outcome"})

	EventsAcquired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "racewatch_events_acquired_total",
		Help: "Events parsed from venue schedules.",
	})

	VenuesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "racewatch_venues_failed_total",
		Help: "Venues whose schedule could not be fetched or parsed.",
	})

	WindowMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racewatch_window_matches_total",
		Help: "Events that fell inside a deadline window, labelled by policy.",
	}, []string{"policy"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racewatch_notifications_total",
		Help: "Notification outcomes, labelled by status (sent, failed, skipped).",
	}, []string{"status"})

	HistoryRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "racewatch_history_records_total",
		Help: "History sink writes, labelled by sink and outcome.",
	}, []string{"sink", "outcome"})

	MonitorTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "racewatch_monitor_tracked_events",
		Help: "Events currently tracked by the stateful monitor.",
	})
)
