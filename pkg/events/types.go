package events

import "time"

// EventType identifies the kind of event emitted during a run.
type EventType string

const (
	EventRunStart    EventType = "run.start"
	EventRunEnd      EventType = "run.end"
	EventRunError    EventType = "run.error"
	EventBatchStart  EventType = "batch.start"
	EventBatchEnd    EventType = "batch.end"
	EventTestSaved   EventType = "test.saved"
	EventTestDeleted EventType = "test.deleted"
	EventSuiteLoaded EventType = "suite.loaded"
)

// Event represents a single runtime event. Seq is assigned by the bus on
// publish and increases by one per event.
type Event struct {
	Seq       uint64        `json:"seq"`
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Data      any           `json:"data"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// RunInfo identifies the test case a run event belongs to.
type RunInfo struct {
	TestID   string `json:"test_id"`
	TestName string `json:"test_name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SuiteInfo describes a suite imported through the API.
type SuiteInfo struct {
	Tests int      `json:"tests"`
	IDs   []string `json:"ids"`
}

// BatchInfo summarizes a batch run.
type BatchInfo struct {
	Total        int `json:"total"`
	Passed       int `json:"passed,omitempty"`
	Failed       int `json:"failed,omitempty"`
	Inconclusive int `json:"inconclusive,omitempty"`
}
