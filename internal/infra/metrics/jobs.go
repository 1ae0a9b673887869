package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobsSubmittedTotal,
		jobsFinishedTotal,
		jobPollsTotal,
		jobPollLoopsActive,
	)
}

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Job submissions, labeled by outcome.",
		},
		[]string{"outcome"}, // 'accepted', 'rejected', 'invalid'
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state, labeled by state.",
		},
		[]string{"state"},
	)

	jobPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_polls_total",
			Help:      "Status polls, labeled by reported status or 'error'.",
		},
		[]string{"outcome"},
	)

	jobPollLoopsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_poll_loops_active",
			Help:      "Number of jobs currently being polled.",
		},
	)
)

func IncJobSubmitted(outcome string) {
	jobsSubmittedTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncJobFinished(state string) {
	jobsFinishedTotal.WithLabelValues(norm(state)).Inc()
}

func IncJobPoll(outcome string) {
	jobPollsTotal.WithLabelValues(norm(outcome)).Inc()
}

func PollLoopStarted()  { jobPollLoopsActive.Inc() }
func PollLoopFinished() { jobPollLoopsActive.Dec() }
