package bot

import "github.com/prometheus/client_golang/prometheus"

// Dispatch outcomes used as the "outcome" label.
const (
	outcomeOK        = "ok"
	outcomeSilent    = "silent"
	outcomeError     = "error"
	outcomePanic     = "panic"
	outcomeDenied    = "denied"
	outcomeGrounded  = "grounded"
	outcomeThrottled = "throttled"
)

var (
	// commandsTotal counts dispatched commands by descriptor name and outcome.
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_commands_total",
			Help: "Number of dispatched commands, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	// commandDuration records handler latency in seconds.
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_command_duration_seconds",
			Help:    "Duration of command handlers in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// unmatchedTotal counts command-looking messages with no registered trigger.
	unmatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_commands_unmatched_total",
			Help: "Number of commands whose trigger matched no descriptor.",
		},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, commandDuration, unmatchedTotal)
}
