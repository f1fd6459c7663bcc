// Package metrics exposes prometheus counters for the validator duty cycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "validator_client"

var (
	DutyFetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duty_fetches_total",
		Help:      "Number of duty fetch requests issued to the beacon node.",
	})

	DutyFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duty_fetch_failures_total",
		Help:      "Number of duty fetch requests that failed after retries.",
	})

	ReorgsObserved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reorgs_observed_total",
		Help:      "Number of chain reorganization events recorded.",
	})

	DutiesInvalidated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duties_invalidated_total",
		Help:      "Number of cached duty records invalidated by reorgs.",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Number of signed artifacts submitted, by artifact kind.",
	}, []string{"kind"})

	SubmissionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submission_failures_total",
		Help:      "Number of failed submissions, by artifact kind.",
	}, []string{"kind"})

	MissedDuties = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "missed_duties_total",
		Help:      "Number of duties that could not be performed before their slot passed.",
	})
)
