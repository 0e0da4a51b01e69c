package domain

import "time"

// Event names emitted to the analytics sink
const (
	EventSearchPerformed    = "search_performed"
	EventSavingsAnalysisRun = "savings_analysis_run"
	EventBasketItemAdded    = "basket_item_added"
	EventBasketItemRemoved  = "basket_item_removed"
	EventTemplateSaved      = "template_saved"
	EventTemplateApplied    = "template_applied"
)

// Event is one analytics record, written as a JSON line by file sinks
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Name      string         `json:"event"`
	SessionID string         `json:"session_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// NewEvent stamps an event with the current time
func NewEvent(name, sessionID string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Timestamp: time.Now().UTC(), Name: name, SessionID: sessionID, Payload: payload}
}
