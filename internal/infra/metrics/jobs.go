package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(checkJobsTotal, submissionsProcessedTotal) }

var checkJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "check_jobs_total",
		Help: "Total number of check jobs reaching a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'finished', 'failed'
)

var submissionsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "submissions_processed_total",
		Help: "Total number of submissions evaluated, labeled by verdict.",
	},
	[]string{"verdict"}, // 'pass', 'fail', 'error'
)

func IncJob(status string) {
	checkJobsTotal.WithLabelValues(norm(status)).Inc()
}

func IncSubmission(verdict string) {
	submissionsProcessedTotal.WithLabelValues(norm(verdict)).Inc()
}
