package output

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderer_HeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (CSVRenderer{}).Render(&buf, sampleResult()))

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"target", "target_ip", "port", "status", "scan_type"}, records[0])
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.1", "22", "closed", "connect"}, records[1])
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.1", "80", "open", "connect"}, records[2])
}

func TestCSVRenderer_EmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (CSVRenderer{}).Render(&buf, emptyResult()))

	r := csv.NewReader(&buf)
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}
