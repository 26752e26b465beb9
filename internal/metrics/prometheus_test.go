package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_Initialization(t *testing.T) {
	pm := NewPrometheusMetrics()
	if pm == nil {
		t.Fatalf("NewPrometheusMetrics returned nil")
	}
	if pm.GetRegistry() == nil {
		t.Fatalf("GetRegistry returned nil")
	}

	before := pm.GetUptime()
	time.Sleep(10 * time.Millisecond)
	after := pm.GetUptime()
	if before >= after {
		t.Fatalf("expected uptime to increase, before=%v after=%v", before, after)
	}
}

func TestPrometheusMetrics_HandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.ScanStarted()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	pm.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, name := range []string{"netsweep_uptime_seconds", "netsweep_scan_active", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestPrometheusMetrics_ScanMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ScanStarted()
	pm.ScanStarted()
	if got := testutil.ToFloat64(pm.activeScans); got != 2 {
		t.Errorf("expected 2 active scans, got %v", got)
	}

	pm.ScanFinished(OutcomeSuccess, 3*time.Second)
	pm.ScanFinished(OutcomeEmpty, time.Second)
	if got := testutil.ToFloat64(pm.activeScans); got != 0 {
		t.Errorf("expected 0 active scans, got %v", got)
	}
	if count := testutil.CollectAndCount(pm.scansTotal); count != 2 {
		t.Errorf("expected 2 outcome labels, got %d", count)
	}
	if got := testutil.ToFloat64(pm.scansTotal.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Errorf("expected 1 successful scan, got %v", got)
	}

	pm.HostsDiscovered(3)
	pm.HostsDiscovered(2)
	if got := testutil.ToFloat64(pm.hostsDiscovered); got != 5 {
		t.Errorf("expected 5 discovered hosts, got %v", got)
	}

	pm.HostProbed(OutcomeSuccess, time.Second)
	pm.HostProbed(OutcomeSuccess, 2*time.Second)
	pm.HostProbed(OutcomeDegraded, 5*time.Minute)
	if got := testutil.ToFloat64(pm.hostsProbed.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("expected 2 successful probes, got %v", got)
	}
	if got := testutil.ToFloat64(pm.hostsProbed.WithLabelValues(OutcomeDegraded)); got != 1 {
		t.Errorf("expected 1 degraded probe, got %v", got)
	}
}

func TestPrometheusMetrics_StoreMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.StoreOperation("append", 5*time.Millisecond, nil)
	pm.StoreOperation("append", 5*time.Millisecond, errors.New("disk full"))
	pm.StoreOperation("list", time.Millisecond, nil)

	if count := testutil.CollectAndCount(pm.storeOps); count != 3 {
		t.Errorf("expected 3 operation/status combinations, got %d", count)
	}
	if got := testutil.ToFloat64(pm.storeOps.WithLabelValues("append", OutcomeError)); got != 1 {
		t.Errorf("expected 1 failed append, got %v", got)
	}
	if count := testutil.CollectAndCount(pm.storeDuration); count != 2 {
		t.Errorf("expected 2 operation histograms, got %d", count)
	}
}

func TestPrometheusMetrics_HTTPMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.HTTPRequest(http.MethodGet, "/api/history", http.StatusOK, 10*time.Millisecond)
	pm.HTTPRequest(http.MethodGet, "/api/history", http.StatusOK, 10*time.Millisecond)
	pm.HTTPRequest(http.MethodDelete, "/api/history/{scanId}", http.StatusNotFound, time.Millisecond)

	if got := testutil.ToFloat64(pm.httpRequests.WithLabelValues(http.MethodGet, "/api/history", "200")); got != 2 {
		t.Errorf("expected 2 requests, got %v", got)
	}
	if count := testutil.CollectAndCount(pm.httpDuration); count != 2 {
		t.Errorf("expected 2 method/route histograms, got %d", count)
	}
}

func TestGetGlobalMetrics(t *testing.T) {
	if GetGlobalMetrics() != GetGlobalMetrics() {
		t.Error("expected the same global instance")
	}
}

func TestNopCollector(t *testing.T) {
	var c Collector = Nop{}
	c.ScanStarted()
	c.ScanFinished(OutcomeSuccess, time.Second)
	c.HostsDiscovered(1)
	c.HostProbed(OutcomeSuccess, time.Second)
	c.StoreOperation("append", time.Millisecond, nil)
	c.HTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
}
