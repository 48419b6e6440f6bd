package model

// TickEvent is one per-pool price-tick sample driven through the controller,
// as recorded in replay JSONL files.
type TickEvent struct {
	Pool      string `json:"pool"`
	Timestamp uint64 `json:"timestamp"`
	Tick      int32  `json:"tick"`
	Source    string `json:"source,omitempty"`
}
