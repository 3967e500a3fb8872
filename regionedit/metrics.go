package regionedit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	treeLabel = "tree"
	opLabel   = "op"
)

var (
	regionFlushCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_flush_count_total",
		Help: "The total number of edit queue flushes.",
	}, []string{treeLabel})

	regionEditsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_edits_applied_total",
		Help: "The total number of edits applied to a tree.",
	}, []string{treeLabel, opLabel})

	regionEditsMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_edits_merged_total",
		Help: "The total number of queued edits dropped because a later edit covered them.",
	}, []string{treeLabel})

	regionEditsPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "region_edits_pending",
		Help: "The number of queued edits waiting for a flush.",
	}, []string{treeLabel})

	regionFlushErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_flush_errors_total",
		Help: "The total number of failed edits and saves during flushes.",
	}, []string{treeLabel})
)

func instrumentFlush(tree string) {
	regionFlushCount.
		With(prometheus.Labels{treeLabel: tree}).
		Inc()
}

func instrumentApplied(tree string, op string) {
	regionEditsApplied.
		With(prometheus.Labels{treeLabel: tree, opLabel: op}).
		Inc()
}

func instrumentMerged(tree string, n int) {
	regionEditsMerged.
		With(prometheus.Labels{treeLabel: tree}).
		Add(float64(n))
}

func instrumentPending(tree string, n int) {
	regionEditsPending.
		With(prometheus.Labels{treeLabel: tree}).
		Set(float64(n))
}

func instrumentFlushErrors(tree string, n int) {
	regionFlushErrors.
		With(prometheus.Labels{treeLabel: tree}).
		Add(float64(n))
}
