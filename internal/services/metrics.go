package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_matches_created_total",
		Help: "Matches created.",
	})
	metricMatchesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_matches_finished_total",
		Help: "Matches finished, with or without a winner.",
	})
	metricMatchesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_matches_cancelled_total",
		Help: "Matches cancelled, including stale sweeps.",
	})
	metricTokensCredited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_tokens_credited_total",
		Help: "Tokens credited by the ledger.",
	})
	metricTokensDebited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_tokens_debited_total",
		Help: "Tokens debited by the ledger.",
	})
	metricStakesPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arcade_stakes_placed_total",
		Help: "Stakes placed into pools.",
	})
)
