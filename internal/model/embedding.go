package model

type CardEmbedding struct {
	CardID    string    `json:"card_id"`
	BrainID   string    `json:"brain_id"`
	Embedding []float32 `json:"-"`
	Mtime     int64     `json:"mtime"`
}
