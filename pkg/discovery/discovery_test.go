package discovery

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-ping/ping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/pkg/model"
)

// fakePinger lets tests control Statistics() without opening real sockets.
type fakePinger struct {
	recv    int
	runErr  error
	timeout time.Duration
	delay   time.Duration
	stopped bool
	mu      sync.Mutex
}

func (f *fakePinger) Run() error {
	if f.delay > 0 {
		wait := f.delay
		if f.timeout > 0 && f.timeout < wait {
			wait = f.timeout
		}
		time.Sleep(wait)
	}
	return f.runErr
}
func (f *fakePinger) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

// Statistics simulates go-ping's real behavior: a pinger whose Timeout
// elapses before the (simulated) reply arrives reports no received packets.
func (f *fakePinger) Statistics() *ping.Statistics {
	recv := f.recv
	if f.delay > 0 && f.timeout > 0 && f.delay > f.timeout {
		recv = 0
	}
	return &ping.Statistics{PacketsRecv: recv}
}
func (f *fakePinger) SetPrivileged(bool)           {}
func (f *fakePinger) SetCount(int)                 {}
func (f *fakePinger) SetInterval(time.Duration)    {}
func (f *fakePinger) SetTimeout(t time.Duration)   { f.timeout = t }
func (f *fakePinger) GetTimeout() time.Duration    { return f.timeout }

func newTestProber(byAddr map[string]*fakePinger) *Prober {
	return &Prober{
		Count:         1,
		Interval:      time.Millisecond,
		PacketTimeout: 50 * time.Millisecond,
		Concurrency:   4,
		pingerFactory: func(addr string) (Pinger, error) {
			p, ok := byAddr[addr]
			if !ok {
				p = &fakePinger{recv: 0}
			}
			return p, nil
		},
	}
}

func targetsFor(addrs ...string) []model.Target {
	out := make([]model.Target, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, model.Target{Address: net.ParseIP(a)})
	}
	return out
}

func TestProbe_SplitsLiveAndUnreachable(t *testing.T) {
	byAddr := map[string]*fakePinger{
		"10.0.0.1": {recv: 1},
		"10.0.0.2": {recv: 0},
		"10.0.0.3": {recv: 2},
	}
	p := newTestProber(byAddr)

	live, unreachable, err := p.Probe(context.Background(), targetsFor("10.0.0.1", "10.0.0.2", "10.0.0.3"))
	require.NoError(t, err)

	liveAddrs := addrStrings(live)
	unreachableAddrs := addrStrings(unreachable)

	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.3"}, liveAddrs)
	assert.ElementsMatch(t, []string{"10.0.0.2"}, unreachableAddrs)
}

func TestProbe_EmptyTargetsReturnsEmpty(t *testing.T) {
	p := newTestProber(nil)
	live, unreachable, err := p.Probe(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Empty(t, unreachable)
}

func TestProbe_FactoryErrorCountsAsUnreachable(t *testing.T) {
	p := &Prober{
		Count: 1, Interval: time.Millisecond, PacketTimeout: 10 * time.Millisecond, Concurrency: 2,
		pingerFactory: func(addr string) (Pinger, error) {
			return nil, assert.AnError
		},
	}
	live, unreachable, err := p.Probe(context.Background(), targetsFor("10.0.0.1"))
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Len(t, unreachable, 1)
}

func TestProbe_PreservesDisplayHostname(t *testing.T) {
	byAddr := map[string]*fakePinger{"10.0.0.1": {recv: 1}}
	p := newTestProber(byAddr)

	targets := []model.Target{{Address: net.ParseIP("10.0.0.1"), Display: "db.internal"}}
	live, _, err := p.Probe(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "db.internal", live[0].Display)
}

func TestProbe_CancelledContextReturnsError(t *testing.T) {
	p := newTestProber(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	live, unreachable, err := p.Probe(ctx, targetsFor("10.0.0.1"))
	require.Error(t, err)
	assert.Nil(t, live)
	assert.Nil(t, unreachable)
}

func TestProbe_SlowHostTimesOutAsUnreachable(t *testing.T) {
	byAddr := map[string]*fakePinger{
		"10.0.0.9": {recv: 1, delay: 200 * time.Millisecond},
	}
	p := newTestProber(byAddr)
	p.PacketTimeout = 20 * time.Millisecond

	live, unreachable, err := p.Probe(context.Background(), targetsFor("10.0.0.9"))
	require.NoError(t, err)
	assert.Empty(t, live)
	assert.Len(t, unreachable, 1)
}

func TestNew_DefaultsAndPrivilegedFlag(t *testing.T) {
	p := New(true)
	assert.True(t, p.Privileged)
	assert.Equal(t, DefaultCount, p.Count)
	assert.Equal(t, DefaultConcurrency, p.Concurrency)
	assert.NotNil(t, p.pingerFactory)
}

func addrStrings(targets []model.Target) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.Address.String())
	}
	return out
}
