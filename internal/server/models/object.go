package models

import "time"

// ObjectEntry is one row of a folder listing. Folders have Size 0 and
// IsFolder set; their Key ends with "/".
type ObjectEntry struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	MimeType     string    `json:"type"`
	IsFolder     bool      `json:"isFolder"`
}

// ShareGrant is a presigned download URL and the instant it stops working.
type ShareGrant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
