package model

const (
	FileStatusUploaded  = "uploaded"
	FileStatusProcessed = "processed"
	FileStatusFailed    = "failed"
)

type File struct {
	ID          string `json:"id"`
	BrainID     string `json:"brain_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	FileKey     string `json:"-"`
	Size        int64  `json:"size"`
	Status      string `json:"status"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
