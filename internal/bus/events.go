// Package bus fans registry change events out to subscribers.
package bus

import (
	"time"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// EventType names a registry change.
type EventType string

const (
	ProviderAdded   EventType = "providerAdded"
	ProviderRemoved EventType = "providerRemoved"
	ToolAdded       EventType = "toolAdded"
	ToolRemoved     EventType = "toolRemoved"
)

// Event is one registry change. Exactly one of Provider and Tool is set.
type Event struct {
	Type     EventType               `json:"type"`
	Time     time.Time               `json:"time"`
	Provider *schema.ProviderSummary `json:"provider,omitempty"`
	Tool     *schema.ToolSummary     `json:"tool,omitempty"`
}

func NewProviderEvent(t EventType, p schema.ProviderSummary) Event {
	return Event{Type: t, Time: time.Now(), Provider: &p}
}

func NewToolEvent(t EventType, s schema.ToolSummary) Event {
	return Event{Type: t, Time: time.Now(), Tool: &s}
}

// Subject is the provider or tool name the event is about.
func (e Event) Subject() string {
	switch {
	case e.Provider != nil:
		return e.Provider.Name
	case e.Tool != nil:
		return e.Tool.Name
	}
	return ""
}
