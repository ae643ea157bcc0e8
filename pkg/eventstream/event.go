package eventstream

import (
	"time"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeIndexSynced is emitted after a sync pass commits a new index state.
	EventTypeIndexSynced = "lettarag.index.synced"
)

// IndexSyncedEvent is a transport-neutral event payload for a committed sync pass.
type IndexSyncedEvent struct {
	SchemaVersion int           `json:"schema_version"`
	EventType     string        `json:"event_type"`
	EventID       string        `json:"event_id"`
	EmittedAt     time.Time     `json:"emitted_at"`
	Pass          SyncPassMeta  `json:"pass"`
	Changes       SyncChangeSet `json:"changes"`
	Index         IndexMeta     `json:"index"`
}

// SyncPassMeta captures pass lifecycle metadata for the event.
type SyncPassMeta struct {
	PassID     string    `json:"pass_id"`
	Phase      string    `json:"phase"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// SyncChangeSet lists the source files the pass acted on.
type SyncChangeSet struct {
	New        []string `json:"new,omitempty"`
	Modified   []string `json:"modified,omitempty"`
	Deleted    []string `json:"deleted,omitempty"`
	LogChanged bool     `json:"log_changed"`
}

// IndexMeta summarizes the committed index state.
type IndexMeta struct {
	IndexedDocuments int `json:"indexed_documents"`
	TotalChunks      int `json:"total_chunks"`
	Embedded         int `json:"embedded"`
}
