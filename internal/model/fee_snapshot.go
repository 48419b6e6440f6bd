package model

// FeeSnapshot captures an externally observable fee transition for a pool.
type FeeSnapshot struct {
	Pool        string `json:"pool"`
	Timestamp   uint64 `json:"timestamp"`
	BaseFeePpm  uint32 `json:"base_fee_ppm"`
	SurgeFeePpm uint32 `json:"surge_fee_ppm"`
	TotalFeePpm uint32 `json:"total_fee_ppm"`
	InCap       bool   `json:"in_cap"`
	EmittedAt   string `json:"emitted_at"`
}
