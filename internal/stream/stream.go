// Package stream delivers scan events to clients as they are produced and
// collects the host results needed for persistence.
package stream

import (
	"iter"

	"github.com/anstrom/netsweep/internal/scanning"
)

// Sink receives events one at a time. Send returns once the event has been
// handed to the transport; an error means the client is gone.
type Sink interface {
	Send(event scanning.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event scanning.Event) error

// Send calls f(event).
func (f SinkFunc) Send(event scanning.Event) error {
	return f(event)
}

// Summary describes a relayed event sequence.
type Summary struct {
	// Results holds host_result payloads in emission order.
	Results []scanning.HostResult
	// Events counts events delivered to the sink.
	Events int
	// Exhausted reports whether the sequence ran to its end. A cancelled
	// scan also ends its sequence, without a terminal event.
	Exhausted bool
	// Completed reports whether a terminal event was delivered.
	Completed bool
	// Failed reports whether the sequence ended with an error event.
	Failed bool
}

// Persistable reports whether the relayed scan should be saved: its terminal
// event reached the sink and it produced at least one host result.
func (s Summary) Persistable() bool {
	return s.Completed && len(s.Results) > 0
}

// Relay pulls events from seq and writes each one to sink before pulling the
// next. It stops at the first failed write, leaving the rest of the sequence
// unproduced, and returns that error.
func Relay(seq iter.Seq[scanning.Event], sink Sink) (Summary, error) {
	var summary Summary

	for event := range seq {
		if err := sink.Send(event); err != nil {
			return summary, err
		}
		summary.Events++

		switch event.Type {
		case scanning.EventHostResult:
			if event.Data != nil {
				summary.Results = append(summary.Results, *event.Data)
			}
		case scanning.EventError:
			summary.Failed = true
		}
		if event.Terminal() {
			summary.Completed = true
		}
	}

	summary.Exhausted = true
	return summary, nil
}
