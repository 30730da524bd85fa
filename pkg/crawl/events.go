package crawl

import (
	"encoding/json"

	"rag-crawl/pkg/models"
)

// EventType discriminates the records on the engine's event stream and the
// normalized events relayed to callers
type EventType string

const (
	EventCrawlStarted  EventType = "crawl_started"
	EventPageComplete  EventType = "page_complete"
	EventProgress      EventType = "progress"
	EventError         EventType = "error"
	EventCrawlComplete EventType = "crawl_complete"
)

// Event is one record on a crawl's event stream. Exactly the fields for its
// type are populated; the rest are zero and omitted from JSON.
type Event struct {
	Type       EventType        `json:"type"`
	TaskID     string           `json:"task_id,omitempty"`     // crawl_started
	Page       *models.PageData `json:"page,omitempty"`        // page_complete
	Processed  int              `json:"processed,omitempty"`   // progress
	Total      int              `json:"total,omitempty"`       // progress
	Message    string           `json:"message,omitempty"`     // error
	Timestamp  string           `json:"timestamp,omitempty"`   // error (synthesized locally)
	DocumentID uint64           `json:"document_id,omitempty"` // page_complete, after ingestion
}

// parseEvent decodes one engine stream record. The engine emits lines of the
// form "data: {json}"; the caller strips the prefix before calling.
func parseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// engineRequest is the JSON body for POST {base}/crawl/stream.
// Streaming is always requested: the relay is inherently streaming regardless
// of the caller's preference.
type engineRequest struct {
	URL                   string `json:"url"`
	MaxDepth              int    `json:"max_depth"`
	MaxPages              int    `json:"max_pages"`
	BrowserType           string `json:"browser_type"`
	WaitUntil             string `json:"wait_until"`
	ExcludeExternalLinks  bool   `json:"exclude_external_links"`
	ExcludeExternalImages bool   `json:"exclude_external_images"`
	WordCountThreshold    int    `json:"word_count_threshold"`
	PageTimeout           int    `json:"page_timeout"`
	Stream                bool   `json:"stream"`
}
