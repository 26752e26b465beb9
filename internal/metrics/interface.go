// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

//go:generate mockgen -destination=mocks/mock_collector.go -package=mocks github.com/anstrom/netsweep/internal/metrics Collector

// Outcome label values shared by the collectors.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeEmpty     = "empty"
	OutcomeDegraded  = "degraded"
	OutcomeCancelled = "cancelled"
)

// Collector records the operational metrics netsweep components emit.
// This interface allows for easy mocking and testing of metrics functionality.
type Collector interface {
	// ScanStarted marks a scan run as in flight.
	ScanStarted()

	// ScanFinished records the end of a scan run with its outcome.
	ScanFinished(outcome string, duration time.Duration)

	// HostsDiscovered records how many hosts the discovery phase found.
	HostsDiscovered(count int)

	// HostProbed records one detailed host probe.
	HostProbed(outcome string, duration time.Duration)

	// StoreOperation records one history store operation.
	StoreOperation(operation string, duration time.Duration, err error)

	// HTTPRequest records one served HTTP request.
	HTTPRequest(method, route string, status int, duration time.Duration)
}

// Ensure that PrometheusMetrics and Nop implement Collector.
var (
	_ Collector = (*PrometheusMetrics)(nil)
	_ Collector = Nop{}
)

// Nop is a Collector that discards everything.
type Nop struct{}

func (Nop) ScanStarted()                                   {}
func (Nop) ScanFinished(string, time.Duration)             {}
func (Nop) HostsDiscovered(int)                            {}
func (Nop) HostProbed(string, time.Duration)               {}
func (Nop) StoreOperation(string, time.Duration, error)    {}
func (Nop) HTTPRequest(string, string, int, time.Duration) {}
