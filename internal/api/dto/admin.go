package dto

type CleanupRequest struct {
	RetentionDays int `json:"retention_days"`
	MaxRecords    int `json:"max_records"`
}

type CleanupResponse struct {
	EvictedByAge      int `json:"evicted_by_age"`
	EvictedByCapacity int `json:"evicted_by_capacity"`
}

type OracleStatsResponse struct {
	CacheHits       int64 `json:"cache_hits"`
	LiveCalls       int64 `json:"live_calls"`
	DirectionsCalls int64 `json:"directions_calls"`
	Retries         int64 `json:"retries"`
}
