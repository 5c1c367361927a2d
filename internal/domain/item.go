package domain

import "time"

// Item is one catalog entry the daemon has observed.
type Item struct {
	ID                  int64
	ExternalID          string
	Title               string
	PayloadPath         string
	PatternID           int64
	AddedAt             time.Time
	DownloadStartedAt   *time.Time
	DownloadCompletedAt *time.Time
	RemovedAt           *time.Time
}

// Listing is a single entry extracted from the catalog page.
type Listing struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
}

// Payload is a downloaded artifact before it is written to disk.
type Payload struct {
	Filename string
	Body     []byte
}

type RatioSummary struct {
	Uploaded   string
	Downloaded string
	Fields     []string
}
