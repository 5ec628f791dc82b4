package models

// Image is a stored ingestion result. Records are append-only.
type Image struct {
	ID          int64  `db:"id" json:"id"`
	Filename    string `db:"filename" json:"filename"`
	StorageKey  string `db:"storage_key" json:"storage_key"`
	ContentType string `db:"content_type" json:"content_type"`
	Size        int64  `db:"size" json:"size"`
	Caption     string `db:"caption" json:"caption"`
	Embedding   []byte `db:"embedding" json:"-"`
}

// ScoredImage pairs an image with its similarity to a search query.
type ScoredImage struct {
	Image Image
	Score float64
}

// User is an entry of the static credential table.
type User struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}
