package announce

import "expvar"

var (
	metricQueuedTotal       = expvar.NewInt("announce_queued_total")
	metricDroppedTotal      = expvar.NewInt("announce_dropped_total")
	metricRetryTotal        = expvar.NewInt("announce_retry_total")
	metricRetryDroppedTotal = expvar.NewInt("announce_retry_dropped_total")
	metricSentTotal         = expvar.NewInt("announce_sent_total")
	metricFailedTotal       = expvar.NewInt("announce_failed_total")
	metricCircuitOpenTotal  = expvar.NewInt("announce_circuit_open_total")
	metricQueueLen          = expvar.NewInt("announce_queue_len")
	metricConfigReloadTotal = expvar.NewInt("announce_config_reload_total")
	metricConfigReloadError = expvar.NewInt("announce_config_reload_error_total")
	metricNATSPublished     = expvar.NewInt("announce_nats_published_total")
	metricNATSFailed        = expvar.NewInt("announce_nats_failed_total")
)
