package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	noncesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tollgate_nonces_issued_total",
		Help: "Number of challenge nonces issued",
	})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tollgate_verifications_total",
		Help: "Verification attempts by outcome",
	}, []string{"outcome"})

	refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tollgate_refreshes_total",
		Help: "Refresh attempts by outcome",
	}, []string{"outcome"})

	balanceFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tollgate_balance_fetch_failures_total",
		Help: "Balance lookups that failed and were downgraded to zero",
	})
)
