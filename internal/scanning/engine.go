package scanning

import "context"

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/anstrom/netsweep/internal/scanning Engine,HostnameResolver

// Engine is the scan engine adapter the orchestrator drives.
type Engine interface {
	// Discover returns the hosts of target that answered discovery probes, in
	// engine output order. Errors are engine-level and abort the scan.
	Discover(ctx context.Context, target string) ([]DiscoveredHost, error)

	// Probe runs a detailed service scan against one live host. Errors are
	// host-level; the caller falls back to a degraded record.
	Probe(ctx context.Context, host DiscoveredHost) (*HostResult, error)
}

// HostnameResolver resolves a display name for an address.
type HostnameResolver interface {
	LookupAddr(ctx context.Context, addr string) (string, error)
}

// UnavailableEngine fails every call with Err. It stands in for an engine
// that could not be started, so each scan still ends with an error event.
type UnavailableEngine struct {
	Err error
}

// Discover returns e.Err.
func (e UnavailableEngine) Discover(context.Context, string) ([]DiscoveredHost, error) {
	return nil, e.Err
}

// Probe returns e.Err.
func (e UnavailableEngine) Probe(context.Context, DiscoveredHost) (*HostResult, error) {
	return nil, e.Err
}
