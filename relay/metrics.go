package relay

import "expvar"

// metrics are the relay counters published under "relay" in /debug/vars.
// They are process-wide and shared by every Relay.
var metrics = expvar.NewMap("relay")

const (
	metricStarted        = "streams_started"
	metricActive         = "streams_active"
	metricRejected       = "streams_rejected"
	metricEnded          = "streams_ended"
	metricFailed         = "streams_failed"
	metricCancelled      = "streams_cancelled"
	metricPersistDropped = "persist_dropped"
)
