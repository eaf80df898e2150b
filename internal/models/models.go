package models

import (
	"fmt"
	"strings"
	"time"
)

// SyncRecord is the persisted outcome of translating and republishing one upstream post.
// The SourceItemID of the newest record is the watermark for the next fetch.
type SyncRecord struct {
	RecordID        string    `json:"record_id"`
	SourceItemID    string    `json:"source_item_id"`
	AuthorID        string    `json:"author_id"`
	TranslatedText  string    `json:"translated_text"`
	OriginalText    string    `json:"original_text"`
	SourceCreatedAt time.Time `json:"source_created_at"`
	RecordCreatedAt time.Time `json:"record_created_at"`
}

// Tweet is one post returned by the recent search endpoint.
type Tweet struct {
	ID        string `json:"id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// SearchMeta is the result-count block of a search response.
type SearchMeta struct {
	ResultCount int    `json:"result_count"`
	NewestID    string `json:"newest_id,omitempty"`
	OldestID    string `json:"oldest_id,omitempty"`
}

// SearchResponse is the decoded body of a recent search call.
// Data is nil when the platform has nothing newer than since_id.
type SearchResponse struct {
	Data []Tweet    `json:"data"`
	Meta SearchMeta `json:"meta"`
}

// PublishRequest is the body of a create-post call.
type PublishRequest struct {
	Text string `json:"text"`
}

// PublishResult is the created post echoed back by the platform.
type PublishResult struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PublishResponse wraps PublishResult the way the platform returns it.
type PublishResponse struct {
	Data PublishResult `json:"data"`
}

// TranslateRequest is the body of a translate call.
type TranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// TranslateResponse is the decoded body of a translate call.
type TranslateResponse struct {
	Data struct {
		Translations struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

// RunState describes the outcome of the latest pipeline run.
type RunState string

const (
	RunStateNeverRun RunState = "never_run"
	RunStateRunning  RunState = "running"
	RunStateSuccess  RunState = "success"
	RunStateFailure  RunState = "failure"
)

// RunStatus tracks the latest pipeline run for the status endpoint.
type RunStatus struct {
	LastSuccessfulRun time.Time `json:"last_successful_run"`
	LastAttempt       time.Time `json:"last_attempt"`
	State             RunState  `json:"state"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	Watermark         string    `json:"watermark,omitempty"`
	ItemsFetched      int       `json:"items_fetched"`
	ItemsPublished    int       `json:"items_published"`
}

const createdAtLayout = "2006-01-02T15:04:05.999999999"

// ParseCreatedAt parses the platform timestamp, e.g. "2022-05-10T14:03:21.000Z".
// The trailing Z is dropped and the value is read as UTC.
func ParseCreatedAt(value string) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "Z")
	t, err := time.ParseInLocation(createdAtLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid created_at %q: %w", value, err)
	}
	return t, nil
}

// CompareItemIDs orders platform ids numerically without parsing them:
// a longer id is newer, ids of equal length compare lexically.
func CompareItemIDs(a, b string) int {
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return strings.Compare(a, b)
}
