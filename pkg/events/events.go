// Package events defines the streaming events published while a chat
// request is in flight, so UIs and log pipelines can observe completions
// and tool execution as they happen.
package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"
	EventTypeError             EventType = "error"

	EventTypeToolCall                EventType = "tool-call"
	EventTypeToolCallExecutionResult EventType = "tool-call-execution-result"
)

// EventMetadata identifies one inference run across all of its events.
type EventMetadata struct {
	ID       uuid.UUID `json:"message_id"`
	Model    string    `json:"model,omitempty"`
	Endpoint string    `json:"endpoint,omitempty"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.Endpoint != "" {
		e.Str("endpoint", em.Endpoint)
	}
}

type Event interface {
	Type() EventType
	Metadata() EventMetadata
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`
}

func (e *EventImpl) Type() EventType         { return e.Type_ }
func (e *EventImpl) Metadata() EventMetadata { return e.Metadata_ }

var _ Event = &EventImpl{}

type EventPartialCompletionStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{
		EventImpl: EventImpl{Type_: EventTypeStart, Metadata_: metadata},
	}
}

type EventPartialCompletion struct {
	EventImpl
	Delta string `json:"delta"`
	// Completion is the full text accumulated so far, including Delta.
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl:  EventImpl{Type_: EventTypePartialCompletion, Metadata_: metadata},
		Delta:      delta,
		Completion: completion,
	}
}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{Type_: EventTypeFinal, Metadata_: metadata},
		Text:      text,
	}
}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

type ToolCall struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

type EventToolCall struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCall {
	return &EventToolCall{
		EventImpl: EventImpl{Type_: EventTypeToolCall, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

type ToolResult struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

type EventToolResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolResult {
	return &EventToolResult{
		EventImpl:  EventImpl{Type_: EventTypeToolCallExecutionResult, Metadata_: metadata},
		ToolResult: toolResult,
	}
}
