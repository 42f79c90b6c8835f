package domain

import "time"

// DownloadRecord is appended to the session history after every successful
// download and never changed afterwards.
type DownloadRecord struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Filename     string    `json:"filename"`
	Type         MediaType `json:"type"`
	DownloadedAt time.Time `json:"downloaded_at"`
	Thumbnail    string    `json:"thumbnail"`
	SavedPath    string    `json:"saved_path,omitempty"`
}
