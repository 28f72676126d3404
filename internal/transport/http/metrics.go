package httptransport

import "expvar"

var (
	metricJoinTotal          = expvar.NewInt("http_join_total")
	metricCommitTotal        = expvar.NewInt("http_commit_total")
	metricVoteTotal          = expvar.NewInt("http_vote_total")
	metricEntryErrors        = expvar.NewInt("http_entry_errors_total")
	metricManualSettleTotal  = expvar.NewInt("http_manual_settle_total")
	metricHTTPInternalErrors = expvar.NewInt("http_internal_errors_total")
)
