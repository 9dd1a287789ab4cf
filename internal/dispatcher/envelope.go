package dispatcher

import (
	"encoding/json"

	"github.com/agentmaild/agentmail/internal/errs"
)

// ContentItem is one element of an envelope's content array (spec §4.7).
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Envelope is the stable reply shape every tool call returns, success or
// error, so callers never need a second code path to unwrap a result.
type Envelope struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
	Error   *errs.Error   `json:"error,omitempty"`
}

func successEnvelope(result any) *Envelope {
	text, err := json.Marshal(result)
	if err != nil {
		return errorEnvelope(errs.Newf(errs.InternalError, "encode result: %v", err))
	}
	return &Envelope{Content: []ContentItem{{Type: "text", Text: string(text)}}}
}

func errorEnvelope(e *errs.Error) *Envelope {
	text, _ := json.Marshal(map[string]*errs.Error{"error": e})
	return &Envelope{
		Content: []ContentItem{{Type: "text", Text: string(text)}},
		IsError: true,
		Error:   e,
	}
}
