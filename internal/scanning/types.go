package scanning

import (
	"encoding/json"
	"slices"
	"strings"
)

// Host states reported in HostResult.State.
const (
	HostStateUp      = "up"
	HostStateDown    = "down"
	HostStateUnknown = "unknown"
)

// PortRecord describes one scanned port of a host.
type PortRecord struct {
	Port    uint16 `json:"port"`
	State   string `json:"state"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// ProtocolBlock groups the ports of one transport protocol.
type ProtocolBlock struct {
	Protocol string       `json:"protocol"`
	Ports    []PortRecord `json:"ports"`
}

// MarshalJSON always emits ports as an array.
func (b ProtocolBlock) MarshalJSON() ([]byte, error) {
	type alias ProtocolBlock
	if b.Ports == nil {
		b.Ports = []PortRecord{}
	}
	return json.Marshal(alias(b))
}

// HostResult is the detailed outcome for one discovered host. A degraded
// result carries the discovery data with state "up" and no protocols.
type HostResult struct {
	Host      string          `json:"host"`
	Hostname  string          `json:"hostname"`
	State     string          `json:"state"`
	Protocols []ProtocolBlock `json:"protocols"`
}

// MarshalJSON always emits protocols as an array.
func (r HostResult) MarshalJSON() ([]byte, error) {
	type alias HostResult
	if r.Protocols == nil {
		r.Protocols = []ProtocolBlock{}
	}
	return json.Marshal(alias(r))
}

// DiscoveredHost is a host reported up by the discovery phase.
type DiscoveredHost struct {
	Address  string
	Hostname string
	State    string
}

// DegradedResult builds the record used when the detailed probe of h fails.
func DegradedResult(h DiscoveredHost) HostResult {
	return HostResult{
		Host:      h.Address,
		Hostname:  h.Hostname,
		State:     HostStateUp,
		Protocols: []ProtocolBlock{},
	}
}

// PortCount returns the number of ports across all protocol blocks.
func (r HostResult) PortCount() int {
	n := 0
	for _, b := range r.Protocols {
		n += len(b.Ports)
	}
	return n
}

// groupPorts builds protocol blocks ordered by protocol name with ports
// ascending inside each block.
func groupPorts(ports map[string][]PortRecord) []ProtocolBlock {
	blocks := make([]ProtocolBlock, 0, len(ports))
	for proto, records := range ports {
		slices.SortFunc(records, func(a, b PortRecord) int {
			return int(a.Port) - int(b.Port)
		})
		blocks = append(blocks, ProtocolBlock{Protocol: proto, Ports: records})
	}
	slices.SortFunc(blocks, func(a, b ProtocolBlock) int {
		return strings.Compare(a.Protocol, b.Protocol)
	})
	return blocks
}

// serviceVersion joins product and version the way nmap -sV reports them.
func serviceVersion(product, version string) string {
	return strings.TrimSpace(product + " " + version)
}
