package scanning

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/errors"
)

func TestDiscoveredHostsFromRun(t *testing.T) {
	run := &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{{Addr: "192.168.1.10", AddrType: "ipv4"}},
				Hostnames: []nmap.Hostname{{Name: "nas.lan", Type: "PTR"}},
				Status:    nmap.Status{State: "up"},
			},
			{
				Addresses: []nmap.Address{{Addr: "192.168.1.11", AddrType: "ipv4"}},
				Status:    nmap.Status{State: "down"},
			},
			{
				Addresses: []nmap.Address{
					{Addr: "AA:BB:CC:DD:EE:FF", AddrType: "mac"},
					{Addr: "192.168.1.2", AddrType: "ipv4"},
				},
				Status: nmap.Status{State: "up"},
			},
		},
	}

	hosts := discoveredHostsFromRun(run)

	assert.Equal(t, []DiscoveredHost{
		{Address: "192.168.1.10", Hostname: "nas.lan", State: "up"},
		{Address: "192.168.1.2", Hostname: "", State: "up"},
	}, hosts)
}

func TestDiscoveredHostsFromRun_Nil(t *testing.T) {
	assert.Empty(t, discoveredHostsFromRun(nil))
}

func TestHostResultFromRun(t *testing.T) {
	run := &nmap.Run{
		Hosts: []nmap.Host{{
			Addresses: []nmap.Address{{Addr: "10.0.0.5", AddrType: "ipv4"}},
			Status:    nmap.Status{State: "up"},
			Ports: []nmap.Port{
				{ID: 443, Protocol: "tcp", State: nmap.State{State: "open"}, Service: nmap.Service{Name: "https", Product: "nginx"}},
				{ID: 53, Protocol: "udp", State: nmap.State{State: "open|filtered"}, Service: nmap.Service{Name: "domain"}},
				{ID: 22, Protocol: "tcp", State: nmap.State{State: "open"}, Service: nmap.Service{Name: "ssh", Product: "OpenSSH", Version: "8.2"}},
			},
		}},
	}

	result, ok := hostResultFromRun(run, DiscoveredHost{Address: "10.0.0.5", Hostname: "from-discovery"})
	require.True(t, ok)

	assert.Equal(t, &HostResult{
		Host:     "10.0.0.5",
		Hostname: "from-discovery",
		State:    "up",
		Protocols: []ProtocolBlock{
			{Protocol: "tcp", Ports: []PortRecord{
				{Port: 22, State: "open", Service: "ssh", Version: "OpenSSH 8.2"},
				{Port: 443, State: "open", Service: "https", Version: "nginx"},
			}},
			{Protocol: "udp", Ports: []PortRecord{
				{Port: 53, State: "open|filtered", Service: "domain", Version: ""},
			}},
		},
	}, result)
}

func TestHostResultFromRun_HostAbsent(t *testing.T) {
	run := &nmap.Run{Hosts: []nmap.Host{{
		Addresses: []nmap.Address{{Addr: "10.0.0.6", AddrType: "ipv4"}},
		Status:    nmap.Status{State: "up"},
	}}}

	_, ok := hostResultFromRun(run, DiscoveredHost{Address: "10.0.0.5"})
	assert.False(t, ok)
}

func TestHostResultFromRun_NoPorts(t *testing.T) {
	run := &nmap.Run{Hosts: []nmap.Host{{
		Addresses: []nmap.Address{{Addr: "10.0.0.5", AddrType: "ipv4"}},
	}}}

	result, ok := hostResultFromRun(run, DiscoveredHost{Address: "10.0.0.5"})
	require.True(t, ok)
	assert.Equal(t, HostStateUnknown, result.State)
	assert.Empty(t, result.Protocols)
}

func TestBestHostname(t *testing.T) {
	tests := []struct {
		name      string
		hostnames []nmap.Hostname
		fallback  string
		expected  string
	}{
		{
			name:      "user supplied name wins",
			hostnames: []nmap.Hostname{{Name: "ptr.example", Type: "PTR"}, {Name: "web", Type: "user"}},
			expected:  "web",
		},
		{
			name:      "first non-empty name",
			hostnames: []nmap.Hostname{{Name: "", Type: "PTR"}, {Name: "db.lan", Type: "PTR"}},
			expected:  "db.lan",
		},
		{
			name:     "fallback when nmap has none",
			fallback: "from-discovery",
			expected: "from-discovery",
		},
		{
			name:      "empty everywhere",
			hostnames: []nmap.Hostname{{Name: "", Type: "PTR"}},
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &nmap.Host{Hostnames: tt.hostnames}
			assert.Equal(t, tt.expected, bestHostname(h, tt.fallback))
		})
	}
}

func TestServiceVersion(t *testing.T) {
	assert.Equal(t, "OpenSSH 8.2", serviceVersion("OpenSSH", "8.2"))
	assert.Equal(t, "nginx", serviceVersion("nginx", ""))
	assert.Equal(t, "1.2", serviceVersion("", "1.2"))
	assert.Equal(t, "", serviceVersion("", ""))
}

func TestRejected(t *testing.T) {
	assert.False(t, rejected(nil))
	assert.False(t, rejected(&[]string{"Starting Nmap 7.94"}))
	assert.True(t, rejected(&[]string{`Failed to resolve "no-such-host.invalid".`}))
	assert.True(t, rejected(&[]string{"WARNING: No targets were specified, so 0 hosts scanned."}))
}

func TestResolveBinary_Missing(t *testing.T) {
	_, err := ResolveBinary("/nonexistent/path/to/nmap")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEngineUnavailable))
	assert.True(t, errors.IsEngine(err))
}

func TestNmapEngine_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping nmap integration test in short mode")
	}

	engine, err := NewNmapEngine(NmapConfig{})
	if err != nil {
		t.Skipf("nmap not available: %v", err)
	}

	hosts, err := engine.Discover(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "127.0.0.1", hosts[0].Address)
}

func TestHostResultJSON(t *testing.T) {
	t.Run("protocols serialise as array", func(t *testing.T) {
		data, err := json.Marshal(HostResult{Host: "10.0.0.5", State: "up"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"host":"10.0.0.5","hostname":"","state":"up","protocols":[]}`, string(data))
	})

	t.Run("ports serialise as array", func(t *testing.T) {
		data, err := json.Marshal(ProtocolBlock{Protocol: "tcp"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"protocol":"tcp","ports":[]}`, string(data))
	})
}

func TestEventJSON(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected string
	}{
		{
			name:     "status",
			event:    StatusEvent(msgFoundHosts, 3),
			expected: `{"type":"status","message":"Found 3 active hosts. Starting detailed scans..."}`,
		},
		{
			name:     "error",
			event:    ErrorEvent("nmap is not installed"),
			expected: `{"type":"error","message":"nmap is not installed"}`,
		},
		{
			name: "host result",
			event: HostResultEvent(HostResult{
				Host:  "10.0.0.5",
				State: "up",
				Protocols: []ProtocolBlock{{Protocol: "tcp", Ports: []PortRecord{
					{Port: 22, State: "open", Service: "ssh", Version: "OpenSSH 8.2"},
				}}},
			}),
			expected: `{"type":"host_result","data":{"host":"10.0.0.5","hostname":"","state":"up",` +
				`"protocols":[{"protocol":"tcp","ports":[{"port":22,"state":"open","service":"ssh","version":"OpenSSH 8.2"}]}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "Scan completed.", StatusEvent(msgCompleted).String())
	assert.Equal(t, "error: boom", ErrorEvent("boom").String())
	assert.Equal(t, "host 10.0.0.5 () up, 0 ports", HostResultEvent(DegradedResult(DiscoveredHost{Address: "10.0.0.5"})).String())
}

func TestEventTerminal(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		terminal bool
	}{
		{name: "completed", event: StatusEvent(msgCompleted), terminal: true},
		{name: "no hosts", event: StatusEvent(msgNoHosts), terminal: true},
		{name: "error", event: ErrorEvent("nmap is not installed"), terminal: true},
		{name: "discovering", event: StatusEvent(msgDiscovering)},
		{name: "progress", event: StatusEvent(msgScanningHost, 1, 2, "10.0.0.1")},
		{name: "host result", event: HostResultEvent(DegradedResult(DiscoveredHost{Address: "10.0.0.1"}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.event.Terminal())
		})
	}
}
