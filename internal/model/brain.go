package model

type Brain struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Name             string `json:"name"`
	StorageUsedBytes int64  `json:"storage_used_bytes"`
	Ctime            int64  `json:"ctime"`
	Mtime            int64  `json:"mtime"`
}
