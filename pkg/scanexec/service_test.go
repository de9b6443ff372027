package scanexec

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/pkg/adaptive"
	"github.com/scanforge/scanforge/pkg/model"
	"github.com/scanforge/scanforge/pkg/probe"
	"github.com/scanforge/scanforge/pkg/scanerr"
	"github.com/scanforge/scanforge/pkg/target"
)

// fakeDiscoverer lets tests script the live/unreachable split without
// touching real ICMP sockets.
type fakeDiscoverer struct {
	live, unreachable []model.Target
	err               error
	calls             int
}

func (f *fakeDiscoverer) Probe(ctx context.Context, targets []model.Target) ([]model.Target, []model.Target, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.live, f.unreachable, nil
}

// recordingSink captures emitted phases for assertions.
type recordingSink struct {
	events []ProgressEvent
}

func (r *recordingSink) OnEvent(e ProgressEvent) { r.events = append(r.events, e) }

func baseParams() Params {
	return Params{
		TargetSpec:    "127.0.0.1",
		PortSpec:      "1",
		ScanKind:      model.ScanConnect,
		TimeoutMS:     200,
		RateMS:        0,
		Parallelism:   4,
		ParallelHosts: 2,
		SkipDiscovery: true,
	}
}

func newTestService() *Service {
	return &Service{
		Expander:         target.NewExpander(),
		Adaptive:         adaptive.NewState(0.1, 5),
		AdaptiveDefaults: adaptive.Params{TimeoutMS: 200, RateMS: 0, Parallelism: 4},
		discoveryFactory: func() discoverer { return &fakeDiscoverer{} },
	}
}

func TestRun_RejectsInvalidParams(t *testing.T) {
	s := newTestService()
	params := baseParams()
	params.TargetSpec = ""

	_, err := s.Run(context.Background(), params)
	require.Error(t, err)
	assert.Equal(t, scanerr.CodeSpec, scanerr.GetCode(err))
}

func TestRun_RejectsInvalidPortSpec(t *testing.T) {
	s := newTestService()
	params := baseParams()
	params.PortSpec = "99999"

	_, err := s.Run(context.Background(), params)
	require.Error(t, err)
	assert.Equal(t, scanerr.CodeSpec, scanerr.GetCode(err))
}

func TestRun_NoTargetsAfterExpansionIsSpecError(t *testing.T) {
	s := newTestService()
	s.Expander = target.NewExpanderWithResolver(&failingResolver{})

	params := baseParams()
	params.TargetSpec = "no-such-host.invalid"

	_, err := s.Run(context.Background(), params)
	require.Error(t, err)
	assert.Equal(t, scanerr.CodeSpec, scanerr.GetCode(err))
}

func TestRun_RawKindWithoutPrivilegeReturnsPrivilegeError(t *testing.T) {
	s := newTestService()
	s.transportFactory = func() (probe.RawTransport, error) {
		return nil, assert.AnError
	}

	params := baseParams()
	params.ScanKind = model.ScanSYN

	_, err := s.Run(context.Background(), params)
	require.Error(t, err)
	assert.Equal(t, scanerr.CodePrivilege, scanerr.GetCode(err))
}

func TestRun_SkipDiscoveryNeverCallsDiscoverer(t *testing.T) {
	disc := &fakeDiscoverer{}
	s := newTestService()
	s.discoveryFactory = func() discoverer { return disc }

	params := baseParams()
	params.SkipDiscovery = true

	result, err := s.Run(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 0, disc.calls)
	require.Len(t, result.Hosts, 1)
	assert.Equal(t, "127.0.0.1", result.Hosts[0].TargetDisplay)
}

func TestRun_UnreachableHostsRecordedAsErrorPorts(t *testing.T) {
	liveTarget := model.Target{Address: net.ParseIP("127.0.0.1")}
	unreachableTarget := model.Target{Address: net.ParseIP("10.255.255.1"), Display: "ghost"}

	disc := &fakeDiscoverer{live: []model.Target{liveTarget}, unreachable: []model.Target{unreachableTarget}}
	s := newTestService()
	s.Expander = target.NewExpanderWithResolver(nil)
	s.discoveryFactory = func() discoverer { return disc }

	params := baseParams()
	params.TargetSpec = "127.0.0.1,10.255.255.1"
	params.SkipDiscovery = false
	params.PortSpec = "1,2"

	result, err := s.Run(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hosts, 2)

	assert.Equal(t, "127.0.0.1", result.Hosts[0].TargetDisplay)
	assert.Equal(t, "ghost", result.Hosts[1].TargetDisplay)

	for _, pr := range result.Hosts[1].Ports {
		assert.Equal(t, model.StatusError, pr.Status)
	}
	assert.Equal(t, 1, disc.calls)
}

func TestRun_AllHostsUnreachableSkipsSchedulerEntirely(t *testing.T) {
	unreachableTarget := model.Target{Address: net.ParseIP("10.255.255.2")}
	disc := &fakeDiscoverer{unreachable: []model.Target{unreachableTarget}}

	s := newTestService()
	s.discoveryFactory = func() discoverer { return disc }

	params := baseParams()
	params.TargetSpec = "10.255.255.2"
	params.SkipDiscovery = false

	result, err := s.Run(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hosts, 1)
	assert.Equal(t, model.StatusError, result.Hosts[0].Ports[0].Status)
}

func TestRun_DiscoveryCancellationReturnsCancelledError(t *testing.T) {
	s := newTestService()
	s.discoveryFactory = func() discoverer { return &fakeDiscoverer{err: context.Canceled} }

	params := baseParams()
	params.SkipDiscovery = false

	_, err := s.Run(context.Background(), params)
	require.Error(t, err)
	assert.Equal(t, scanerr.CodeCancelled, scanerr.GetCode(err))
}

func TestRun_EmitsProgressEvents(t *testing.T) {
	sink := &recordingSink{}
	s := newTestService()
	s.ProgressSink = sink

	_, err := s.Run(context.Background(), baseParams())
	require.NoError(t, err)

	var phases []string
	for _, e := range sink.events {
		phases = append(phases, e.Phase)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Contains(t, phases, "expand")
	assert.Contains(t, phases, "scan")
}

func TestRun_ConnectScanAgainstLoopbackClosedPort(t *testing.T) {
	s := newTestService()
	params := baseParams()
	params.PortSpec = "1"
	params.TimeoutMS = 300

	start := time.Now()
	result, err := s.Run(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Hosts, 1)
	require.Len(t, result.Hosts[0].Ports, 1)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, []model.PortStatus{model.StatusClosed, model.StatusFiltered}, result.Hosts[0].Ports[0].Status)
}

func TestMergeHosts_PreservesOriginalOrder(t *testing.T) {
	original := []model.Target{
		{Address: net.ParseIP("10.0.0.1")},
		{Address: net.ParseIP("10.0.0.2")},
		{Address: net.ParseIP("10.0.0.3")},
	}
	live := []model.Target{original[0], original[2]}
	scanned := []model.HostScanResult{
		{TargetDisplay: "10.0.0.1"},
		{TargetDisplay: "10.0.0.3"},
	}

	merged := mergeHosts(original, live, scanned, []uint16{80}, model.ScanConnect)
	require.Len(t, merged, 3)
	assert.Equal(t, "10.0.0.1", merged[0].TargetDisplay)
	assert.Equal(t, model.StatusError, merged[1].Ports[0].Status)
	assert.Equal(t, "10.0.0.3", merged[2].TargetDisplay)
}

// failingResolver always fails lookups, so every hostname token becomes a
// non-fatal ResolveError and expansion yields zero targets.
type failingResolver struct{}

func (f *failingResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}
