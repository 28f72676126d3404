package settlement

import "expvar"

var (
	metricSettleCalls        = expvar.NewInt("settlement_calls_total")
	metricSettleStarted      = expvar.NewInt("settlement_started_total")
	metricSettleStale        = expvar.NewInt("settlement_stale_trigger_total")
	metricSettleCompleted    = expvar.NewInt("settlement_completed_total")
	metricSettleCancelled    = expvar.NewInt("settlement_cancelled_total")
	metricSettleFailed       = expvar.NewInt("settlement_failed_total")
	metricOracleUnavailable  = expvar.NewInt("settlement_oracle_unavailable_total")
	metricPayoutConfirmed    = expvar.NewInt("payout_confirmed_total")
	metricPayoutFailed       = expvar.NewInt("payout_failed_total")
	metricAnnounceFailed     = expvar.NewInt("settlement_announce_failed_total")
	metricSettleLastDuration = expvar.NewInt("settlement_last_duration_ms")
)
