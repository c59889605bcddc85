package repo

import "github.com/prometheus/client_golang/prometheus"

var (
	// schemaExtensions counts ALTER TABLE statements issued for dynamic settings.
	schemaExtensions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_schema_extensions_total",
			Help: "Number of dynamic setting columns added, by table.",
		},
		[]string{"table"},
	)

	// settingWriteFailures counts Set* calls that returned false.
	settingWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_setting_write_failures_total",
			Help: "Number of failed dynamic setting writes, by table.",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(schemaExtensions, settingWriteFailures)
}
