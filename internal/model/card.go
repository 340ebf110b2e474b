package model

// Card kinds. Saved cards carry a brain-unique title and persist until
// deleted; unsaved cards have no title and live only as long as their stream
// membership; file cards reference an uploaded document.
const (
	CardTypeSaved   = "saved"
	CardTypeUnsaved = "unsaved"
	CardTypeFile    = "file"
)

type Card struct {
	ID         string  `json:"id"`
	BrainID    string  `json:"brain_id"`
	CardType   string  `json:"card_type"`
	Title      *string `json:"title"`
	Preview    string  `json:"preview"`
	ContentKey string  `json:"-"`
	SizeBytes  int64   `json:"size_bytes"`
	FileID     *string `json:"file_id,omitempty"`
	Ctime      int64   `json:"ctime"`
	Mtime      int64   `json:"mtime"`
}

type CardLink struct {
	FromCardID string `json:"from_card_id"`
	ToCardID   string `json:"to_card_id"`
	Ctime      int64  `json:"ctime"`
}
