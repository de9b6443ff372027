package output

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/pkg/model"
)

func sampleResult() model.MultiHostScanResult {
	rt := 12.5
	return model.MultiHostScanResult{
		RunID:      "run-1",
		TargetSpec: "10.0.0.1",
		ScanKind:   model.ScanConnect,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		EndedAt:    time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC),
		TotalHosts: 1,
		TotalPorts: 2,
		Hosts: []model.HostScanResult{
			{
				TargetDisplay: "10.0.0.1",
				Address:       net.ParseIP("10.0.0.1"),
				ScanKind:      model.ScanConnect,
				Ports: []model.PortResult{
					{Port: 22, Status: model.StatusClosed},
					{
						Port: 80, Status: model.StatusOpen, ResponseTimeMS: &rt,
						Service: &model.ServiceInfo{Name: "HTTP", Confidence: 0.9, Extra: map[string]string{"server": "nginx"}},
					},
				},
			},
		},
	}
}

func emptyResult() model.MultiHostScanResult {
	return model.MultiHostScanResult{RunID: "run-empty", ScanKind: model.ScanConnect}
}

func TestJSONRenderer_FieldNamesMatchSpec(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (JSONRenderer{}).Render(&buf, sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	for _, key := range []string{"run_id", "target_spec", "scan_kind", "started_at", "ended_at", "total_hosts", "total_ports", "hosts"} {
		assert.Contains(t, decoded, key)
	}

	hosts := decoded["hosts"].([]interface{})
	require.Len(t, hosts, 1)
	host := hosts[0].(map[string]interface{})
	for _, key := range []string{"target_display", "address", "scan_kind", "ports"} {
		assert.Contains(t, host, key)
	}

	ports := host["ports"].([]interface{})
	require.Len(t, ports, 2)
	openPort := ports[1].(map[string]interface{})
	assert.Contains(t, openPort, "response_time_ms")
	assert.Contains(t, openPort, "service")
	service := openPort["service"].(map[string]interface{})
	assert.Equal(t, "HTTP", service["name"])
	assert.Equal(t, "nginx", service["extra"].(map[string]interface{})["server"])

	closedPort := ports[0].(map[string]interface{})
	assert.NotContains(t, closedPort, "response_time_ms")
	assert.NotContains(t, closedPort, "service")
}
