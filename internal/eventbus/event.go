package eventbus

import (
	"time"
)

type EventType string

const (
	EventTypeIngest EventType = "ingest"
)

type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	Retries   int         `json:"retries"`
}

// IngestEvent asks a worker to validate and parse one uploaded file into its
// session. Files are independent, so ingestion runs concurrently per file;
// the session keeps the merged ordering stable.
type IngestEvent struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
}
