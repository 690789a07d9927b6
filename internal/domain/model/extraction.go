package model

import (
	"encoding/json"
	"time"
)

// DefaultAgent is recorded when an extraction is saved without an agent name.
const DefaultAgent = "Unassigned"

// ExtractedDocument is the stored result of an AI extraction over one file.
type ExtractedDocument struct {
	ID          int64
	WorkspaceID int64
	FileName    string
	Data        json.RawMessage
	UsageTokens int64
	RawResponse string
	Agent       string
	CreatedAt   time.Time
}
