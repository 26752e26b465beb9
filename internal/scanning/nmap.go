package scanning

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
)

const defaultNmapBinary = "nmap"

// Default discovery probe ports.
var (
	DefaultSYNDiscoveryPorts = []string{"22", "80", "443", "3389"}
	DefaultACKDiscoveryPorts = []string{"80", "443"}
)

// Warning fragments nmap prints when it refuses a target specification.
var targetRejectionWarnings = []string{
	"Failed to resolve",
	"Illegal character",
	"Unable to split netmask",
	"Invalid target",
	"No targets were specified",
}

// NmapConfig configures the nmap-backed engine.
type NmapConfig struct {
	// BinaryPath is the nmap executable; empty means look up "nmap" on PATH.
	BinaryPath string
	// SYNPorts and ACKPorts are the TCP discovery probe ports.
	SYNPorts []string
	ACKPorts []string
	// ProbePorts restricts the detailed scan; empty uses nmap's default set.
	ProbePorts string
}

// NmapEngine implements Engine on top of the nmap binary.
type NmapEngine struct {
	binaryPath string
	synPorts   []string
	ackPorts   []string
	probePorts string
	resolver   HostnameResolver
	logger     *logging.Logger
}

// EngineOption customizes an NmapEngine.
type EngineOption func(*NmapEngine)

// WithResolver sets a reverse DNS fallback for hosts nmap could not name.
func WithResolver(r HostnameResolver) EngineOption {
	return func(e *NmapEngine) {
		e.resolver = r
	}
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *logging.Logger) EngineOption {
	return func(e *NmapEngine) {
		e.logger = l
	}
}

// ResolveBinary locates the nmap executable once so a missing engine is
// reported at startup rather than on the first scan.
func ResolveBinary(path string) (string, error) {
	if path == "" {
		path = defaultNmapBinary
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", errors.ErrEngineUnavailable(fmt.Errorf("nmap binary %q: %w", path, err))
	}
	return resolved, nil
}

// NewNmapEngine creates an engine bound to a resolved nmap binary.
func NewNmapEngine(cfg NmapConfig, opts ...EngineOption) (*NmapEngine, error) {
	binary, err := ResolveBinary(cfg.BinaryPath)
	if err != nil {
		return nil, err
	}

	e := &NmapEngine{
		binaryPath: binary,
		synPorts:   cfg.SYNPorts,
		ackPorts:   cfg.ACKPorts,
		probePorts: cfg.ProbePorts,
		logger:     logging.Default().WithComponent("nmap"),
	}
	if len(e.synPorts) == 0 {
		e.synPorts = DefaultSYNDiscoveryPorts
	}
	if len(e.ackPorts) == 0 {
		e.ackPorts = DefaultACKDiscoveryPorts
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// BinaryPath returns the nmap executable the engine runs.
func (e *NmapEngine) BinaryPath() string {
	return e.binaryPath
}

func (e *NmapEngine) discoveryOptions(target string) []nmap.Option {
	return []nmap.Option{
		nmap.WithBinaryPath(e.binaryPath),
		nmap.WithTargets(target),
		nmap.WithPingScan(),
		nmap.WithICMPEchoDiscovery(),
		nmap.WithSYNDiscovery(e.synPorts...),
		nmap.WithACKDiscovery(e.ackPorts...),
		nmap.WithForcedDNSResolution(),
	}
}

func (e *NmapEngine) probeOptions(address string) []nmap.Option {
	options := []nmap.Option{
		nmap.WithBinaryPath(e.binaryPath),
		nmap.WithTargets(address),
		nmap.WithServiceInfo(),
		nmap.WithTimingTemplate(nmap.TimingAggressive),
		nmap.WithSkipHostDiscovery(),
		nmap.WithForcedDNSResolution(),
	}
	if e.probePorts != "" {
		options = append(options, nmap.WithPorts(e.probePorts))
	}
	return options
}

// Discover runs a ping-style sweep with forced reverse DNS.
func (e *NmapEngine) Discover(ctx context.Context, target string) ([]DiscoveredHost, error) {
	scanner, err := nmap.NewScanner(ctx, e.discoveryOptions(target)...)
	if err != nil {
		if stderrors.Is(err, nmap.ErrNmapNotInstalled) {
			return nil, errors.ErrEngineUnavailable(err)
		}
		return nil, errors.WrapScanErrorWithTarget(errors.CodeDiscoveryFailed, "failed to create scanner", target, err)
	}

	result, warnings, err := scanner.Run()
	logWarnings(e.logger, target, warnings)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapScanErrorWithTarget(errors.CodeDiscoveryFailed, "host discovery interrupted", target, ctx.Err())
		}
		if rejected(warnings) {
			return nil, errors.ErrInvalidTarget(target).WithContext("warnings", *warnings)
		}
		return nil, errors.WrapScanErrorWithTarget(errors.CodeDiscoveryFailed, "host discovery failed", target, err)
	}

	hosts := discoveredHostsFromRun(result)
	if len(hosts) == 0 && result != nil && len(result.Hosts) == 0 && rejected(warnings) {
		return nil, errors.ErrInvalidTarget(target).WithContext("warnings", *warnings)
	}
	return hosts, nil
}

// Probe runs a service/version scan against one host, skipping host discovery.
func (e *NmapEngine) Probe(ctx context.Context, host DiscoveredHost) (*HostResult, error) {
	scanner, err := nmap.NewScanner(ctx, e.probeOptions(host.Address)...)
	if err != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeScanFailed, "failed to create scanner", host.Address, err)
	}

	result, warnings, err := scanner.Run()
	logWarnings(e.logger, host.Address, warnings)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.ErrScanTimeout(host.Address, ctx.Err())
		}
		return nil, errors.WrapScanErrorWithTarget(errors.CodeScanFailed, "detailed scan failed", host.Address, err)
	}

	detail, ok := hostResultFromRun(result, host)
	if !ok {
		return nil, errors.ErrHostUnreachable(host.Address)
	}

	if detail.Hostname == "" && e.resolver != nil {
		name, err := e.resolver.LookupAddr(ctx, host.Address)
		if err != nil {
			e.logger.Debug("Reverse lookup failed", "host", host.Address, "error", err)
		} else {
			detail.Hostname = name
		}
	}
	return detail, nil
}

// discoveredHostsFromRun returns the hosts of run reported up, in run order.
func discoveredHostsFromRun(run *nmap.Run) []DiscoveredHost {
	if run == nil {
		return nil
	}

	hosts := make([]DiscoveredHost, 0, len(run.Hosts))
	for i := range run.Hosts {
		h := &run.Hosts[i]
		if h.Status.State != HostStateUp {
			continue
		}
		addr := hostAddress(h)
		if addr == "" {
			continue
		}
		hosts = append(hosts, DiscoveredHost{
			Address:  addr,
			Hostname: bestHostname(h, ""),
			State:    h.Status.State,
		})
	}
	return hosts
}

// hostResultFromRun converts the entry for host in run into a HostResult.
// It reports false when the run does not contain the host.
func hostResultFromRun(run *nmap.Run, host DiscoveredHost) (*HostResult, bool) {
	if run == nil {
		return nil, false
	}

	for i := range run.Hosts {
		h := &run.Hosts[i]
		if hostAddress(h) != host.Address {
			continue
		}

		ports := make(map[string][]PortRecord)
		for j := range h.Ports {
			p := &h.Ports[j]
			ports[p.Protocol] = append(ports[p.Protocol], PortRecord{
				Port:    p.ID,
				State:   p.State.State,
				Service: p.Service.Name,
				Version: serviceVersion(p.Service.Product, p.Service.Version),
			})
		}

		state := h.Status.State
		if state == "" {
			state = HostStateUnknown
		}

		return &HostResult{
			Host:      host.Address,
			Hostname:  bestHostname(h, host.Hostname),
			State:     state,
			Protocols: groupPorts(ports),
		}, true
	}
	return nil, false
}

// hostAddress returns the IP address of h, ignoring MAC entries.
func hostAddress(h *nmap.Host) string {
	for _, a := range h.Addresses {
		if a.AddrType == "ipv4" || a.AddrType == "ipv6" {
			return a.Addr
		}
	}
	if len(h.Addresses) > 0 && h.Addresses[0].AddrType == "" {
		return h.Addresses[0].Addr
	}
	return ""
}

// bestHostname prefers the user-supplied name, then the first non-empty
// name nmap reported, then fallback.
func bestHostname(h *nmap.Host, fallback string) string {
	for _, hn := range h.Hostnames {
		if hn.Type == "user" && hn.Name != "" {
			return hn.Name
		}
	}
	for _, hn := range h.Hostnames {
		if hn.Name != "" {
			return hn.Name
		}
	}
	return fallback
}

func rejected(warnings *[]string) bool {
	if warnings == nil {
		return false
	}
	for _, w := range *warnings {
		for _, fragment := range targetRejectionWarnings {
			if strings.Contains(w, fragment) {
				return true
			}
		}
	}
	return false
}

func logWarnings(logger *logging.Logger, target string, warnings *[]string) {
	if warnings == nil {
		return
	}
	for _, w := range *warnings {
		if w = strings.TrimSpace(w); w != "" {
			logger.Warn("nmap warning", "target", target, "warning", w)
		}
	}
}
