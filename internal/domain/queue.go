package domain

import (
	"encoding/json"
	"time"
)

// Priority names the two indexer queue lanes.
type Priority int

const (
	// PriorityHigh is the lane for freshly produced pipeline output.
	PriorityHigh Priority = iota
	// PriorityStandard is the lane for backlog files drained at idle capacity.
	PriorityStandard
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "standard"
}

// IndexLine is one JSON line in a pipeline output file: a document or a
// chunk tagged with its record type.
type IndexLine struct {
	Type string `json:"type"`
}

// Line record types.
const (
	LineTypeDocument = "document"
	LineTypeChunk    = "chunk"
)

// QueueItem is one parsed JSONL line staged for bulk indexing.
type QueueItem struct {
	Type       string
	Data       json.RawMessage
	FilePath   string
	Priority   Priority
	EnqueuedAt time.Time
}

// BulkAction is one translated bulk operation.
type BulkAction struct {
	Index  string
	ID     string
	Source map[string]any
}
