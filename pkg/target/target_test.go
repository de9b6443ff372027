package target

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	hosts map[string][]string
}

func (f *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	addrs, ok := f.hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

func TestExpandCIDR_SlashThirty(t *testing.T) {
	e := NewExpander()
	targets, warnings, err := e.Expand(context.Background(), "192.168.1.0/30")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, targets, 2)
	assert.Equal(t, "192.168.1.1", targets[0].Address.String())
	assert.Equal(t, "192.168.1.2", targets[1].Address.String())
}

func TestExpandCIDR_SlashThirtyOneIncludesBoth(t *testing.T) {
	e := NewExpander()
	targets, _, err := e.Expand(context.Background(), "192.168.1.0/31")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "192.168.1.0", targets[0].Address.String())
	assert.Equal(t, "192.168.1.1", targets[1].Address.String())
}

func TestExpandDashRange(t *testing.T) {
	e := NewExpander()
	targets, _, err := e.Expand(context.Background(), "192.168.1.10-192.168.1.12")
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "192.168.1.10", targets[0].Address.String())
	assert.Equal(t, "192.168.1.12", targets[2].Address.String())
}

func TestExpandDashRange_LastOctetShorthand(t *testing.T) {
	e := NewExpander()
	targets, _, err := e.Expand(context.Background(), "192.168.1.10-12")
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "192.168.1.11", targets[1].Address.String())
}

func TestExpandDashRange_StartGreaterThanEndFails(t *testing.T) {
	e := NewExpander()
	_, _, err := e.Expand(context.Background(), "192.168.1.20-192.168.1.10")
	assert.Error(t, err)
}

func TestExpandLiteral(t *testing.T) {
	e := NewExpander()
	targets, _, err := e.Expand(context.Background(), "10.0.0.1,10.0.0.2")
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestExpandDeduplicatesPreservingOrder(t *testing.T) {
	e := NewExpander()
	targets, _, err := e.Expand(context.Background(), "10.0.0.1,10.0.0.2,10.0.0.1")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "10.0.0.1", targets[0].Address.String())
	assert.Equal(t, "10.0.0.2", targets[1].Address.String())
}

func TestExpandHostname(t *testing.T) {
	e := NewExpanderWithResolver(&fakeResolver{hosts: map[string][]string{
		"scanme.example": {"93.184.216.34"},
	}})
	targets, warnings, err := e.Expand(context.Background(), "scanme.example")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, targets, 1)
	assert.Equal(t, "93.184.216.34", targets[0].Address.String())
	assert.Equal(t, "scanme.example", targets[0].Display)
	assert.Equal(t, "scanme.example", targets[0].String())
}

func TestExpandHostname_NXDOMAINIsNonFatal(t *testing.T) {
	e := NewExpanderWithResolver(&fakeResolver{hosts: map[string][]string{}})
	targets, warnings, err := e.Expand(context.Background(), "nosuch.example,10.0.0.1")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Len(t, targets, 1)
	assert.Equal(t, "10.0.0.1", targets[0].Address.String())
}

func TestExpandIdempotent(t *testing.T) {
	e := NewExpander()
	targets, _, err := e.Expand(context.Background(), "192.168.1.0/30")
	require.NoError(t, err)

	var rendered string
	for i, tgt := range targets {
		if i > 0 {
			rendered += ","
		}
		rendered += tgt.Address.String()
	}

	targets2, _, err := e.Expand(context.Background(), rendered)
	require.NoError(t, err)
	require.Len(t, targets2, len(targets))
	for i := range targets {
		assert.Equal(t, targets[i].Address.String(), targets2[i].Address.String())
	}
}

func TestExpandMalformedCIDRIsSpecError(t *testing.T) {
	e := NewExpander()
	_, _, err := e.Expand(context.Background(), "10.0.0.0/abc")
	assert.Error(t, err)
}
