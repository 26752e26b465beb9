package scanning

import (
	"fmt"
)

// EventType tags a scan progress event.
type EventType string

const (
	EventStatus     EventType = "status"
	EventHostResult EventType = "host_result"
	EventError      EventType = "error"
)

// Event is one item of a scan progress stream. Status and error events carry
// Message; host_result events carry Data.
type Event struct {
	Type    EventType   `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    *HostResult `json:"data,omitempty"`
}

// StatusEvent builds a human-readable progress event.
func StatusEvent(format string, args ...any) Event {
	return Event{Type: EventStatus, Message: fmt.Sprintf(format, args...)}
}

// HostResultEvent builds an event carrying one host's result.
func HostResultEvent(r HostResult) Event {
	return Event{Type: EventHostResult, Data: &r}
}

// ErrorEvent builds a terminal error event.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// Terminal reports whether the event ends a scan's sequence: the completion
// and no-hosts status messages, or any error.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventError:
		return true
	case EventStatus:
		return e.Message == msgCompleted || e.Message == msgNoHosts
	default:
		return false
	}
}

// String renders the event for terminal output.
func (e Event) String() string {
	switch e.Type {
	case EventHostResult:
		if e.Data == nil {
			return "host_result"
		}
		return fmt.Sprintf("host %s (%s) %s, %d ports", e.Data.Host, e.Data.Hostname, e.Data.State, e.Data.PortCount())
	case EventError:
		return "error: " + e.Message
	default:
		return e.Message
	}
}

// Status messages emitted by the orchestrator.
const (
	msgDiscovering  = "Discovering active hosts..."
	msgNoHosts      = "No active hosts found."
	msgFoundHosts   = "Found %d active hosts. Starting detailed scans..."
	msgScanningHost = "[%d/%d] Scanning %s..."
	msgProbeFailed  = "Warning: Detailed scan failed for %s: %v"
	msgCompleted    = "Scan completed."
)
