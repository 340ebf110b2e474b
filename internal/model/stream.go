package model

type Stream struct {
	ID           string `json:"id"`
	BrainID      string `json:"brain_id"`
	Name         string `json:"name"`
	Favorite     bool   `json:"favorite"`
	LastAccessed int64  `json:"last_accessed"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}

// StreamCard is one position-ledger entry. Positions within a stream are
// zero-based and contiguous: the set of positions is always {0..N-1}.
type StreamCard struct {
	StreamID      string `json:"stream_id"`
	CardID        string `json:"card_id"`
	Position      int    `json:"position"`
	Depth         int    `json:"depth"`
	IsInAIContext bool   `json:"is_in_ai_context"`
	IsCollapsed   bool   `json:"is_collapsed"`
	AddedAt       int64  `json:"added_at"`
}
