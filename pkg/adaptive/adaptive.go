// Package adaptive implements the per-network-class learning controller of
// spec.md §4.4: an EWMA over observed response time and timeout rate, folded
// in once per completed host, deriving the timeout/pacing/parallelism
// parameters future scans against that network class should use.
package adaptive

import (
	"sync"

	"github.com/scanforge/scanforge/pkg/model"
)

// Params is the set of scan parameters either derived by the controller or
// supplied as operator defaults before enough scans have been folded.
type Params struct {
	TimeoutMS   int64
	RateMS      int64
	Parallelism int
}

// HostProfile is the adaptive state kept for one NetworkClass (spec.md §3).
type HostProfile struct {
	SeenCount       int
	EWMAResponseMS  float64
	EWMATimeoutRate float64
	Optimal         Params
}

// State is the learning controller's full state: one HostProfile per
// NetworkClass plus the learning rate applied to every fold. The scheduler
// owns one State exclusively for the duration of a multi-host scan
// (spec.md §3 "Ownership"); per-task workers only ever read immutable Params
// snapshots derived from it.
type State struct {
	mu              sync.RWMutex
	Profiles        map[model.NetworkClass]*HostProfile `json:"profiles"`
	LearningRate    float64                             `json:"learning_rate"`
	MinScansToAdapt int                                 `json:"min_scans_to_adapt"`
}

// NewState constructs an empty State with the given learning rate and the
// minimum fold count required before a class's derived Params are trusted
// over operator defaults (spec.md §4.4 default: 5).
func NewState(learningRate float64, minScansToAdapt int) *State {
	return &State{
		Profiles:        make(map[model.NetworkClass]*HostProfile),
		LearningRate:    learningRate,
		MinScansToAdapt: minScansToAdapt,
	}
}

// HostObservation is the per-host telemetry the scheduler folds into the
// controller once a host's scan completes (spec.md §4.4 "Inputs").
type HostObservation struct {
	Class model.NetworkClass
	Ports []model.PortResult
}

// estimatedResponseMS is used when a probe didn't record a measured response
// time (spec.md §4.4 "estimated as 50ms for Open and 25ms for Closed when
// not measured directly").
const (
	estimatedOpenMS   = 50.0
	estimatedClosedMS = 25.0
)

// Params returns the parameters to use for a host of the given class: the
// controller's derived Params once MinScansToAdapt folds have occurred for
// that class, otherwise defaults unchanged (spec.md §4.4 "Profiles are
// emitted only after min_scans_for_optimization folds; before that,
// operator defaults are used unchanged").
func (s *State) Params(class model.NetworkClass, defaults Params) Params {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.Profiles[class]
	if !ok || p.SeenCount < s.MinScansToAdapt {
		return defaults
	}
	return p.Optimal
}

// Record folds one host's observation into the class's profile: computes
// the observed mean response time and timeout rate, updates the EWMA, and
// re-derives Params. defaults seeds a profile's Optimal the first time the
// class is observed, so the first derivation step has a baseline to step
// from rather than starting at the zero value.
func (s *State) Record(obs HostObservation, defaults Params) {
	meanMS, timeoutRate := observedStats(obs.Ports)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Profiles[obs.Class]
	if !ok {
		p = &HostProfile{Optimal: defaults}
		s.Profiles[obs.Class] = p
	}

	if p.SeenCount == 0 {
		p.EWMAResponseMS = meanMS
		p.EWMATimeoutRate = timeoutRate
	} else {
		alpha := s.LearningRate
		p.EWMAResponseMS = alpha*meanMS + (1-alpha)*p.EWMAResponseMS
		p.EWMATimeoutRate = alpha*timeoutRate + (1-alpha)*p.EWMATimeoutRate
	}
	p.SeenCount++

	derive(p, obs.Class)
}

// observedStats computes the mean response time over non-timeout outcomes
// and the timeout rate over all outcomes, per spec.md §4.4 "Derived
// statistics".
func observedStats(ports []model.PortResult) (meanMS, timeoutRate float64) {
	if len(ports) == 0 {
		return 0, 0
	}

	var sum float64
	var measured int
	var timedOut int

	for _, pr := range ports {
		switch pr.Status {
		case model.StatusOpen:
			if pr.ResponseTimeMS != nil {
				sum += *pr.ResponseTimeMS
			} else {
				sum += estimatedOpenMS
			}
			measured++
		case model.StatusClosed:
			if pr.ResponseTimeMS != nil {
				sum += *pr.ResponseTimeMS
			} else {
				sum += estimatedClosedMS
			}
			measured++
		case model.StatusFiltered, model.StatusError:
			timedOut++
		}
	}

	if measured > 0 {
		meanMS = sum / float64(measured)
	}
	timeoutRate = float64(timedOut) / float64(len(ports))
	return meanMS, timeoutRate
}

// timeoutBounds returns (T_floor, T_ceil) in milliseconds for a network
// class, per spec.md §4.4.
func timeoutBounds(class model.NetworkClass) (floor, ceil int64) {
	switch class {
	case model.ClassPublic:
		return 250, 5000
	default: // Loopback, LinkLocal, Private
		return 100, 500
	}
}

const (
	rateStepCeilMS        = 200
	parallelismGrowStep   = 8
	parallelismCeiling    = 512
	parallelismFloor      = 8
	highTimeoutThreshold  = 0.2
	lowTimeoutThreshold   = 0.05
)

// derive recomputes p.Optimal from its current EWMA values, per spec.md
// §4.4 "Parameter derivation".
func derive(p *HostProfile, class model.NetworkClass) {
	floor, ceil := timeoutBounds(class)
	p.Optimal.TimeoutMS = clamp(int64(2*p.EWMAResponseMS), floor, ceil)

	switch {
	case p.EWMATimeoutRate > highTimeoutThreshold:
		next := p.Optimal.RateMS * 2
		if next == 0 {
			next = 1
		}
		if next > rateStepCeilMS {
			next = rateStepCeilMS
		}
		p.Optimal.RateMS = next
	case p.EWMATimeoutRate < lowTimeoutThreshold:
		p.Optimal.RateMS /= 2
	}

	switch {
	case p.EWMATimeoutRate < lowTimeoutThreshold && (class == model.ClassLoopback || class == model.ClassPrivate):
		p.Optimal.Parallelism += parallelismGrowStep
		if p.Optimal.Parallelism > parallelismCeiling {
			p.Optimal.Parallelism = parallelismCeiling
		}
	case p.EWMATimeoutRate > highTimeoutThreshold:
		p.Optimal.Parallelism /= 2
		if p.Optimal.Parallelism < parallelismFloor {
			p.Optimal.Parallelism = parallelismFloor
		}
	}
}

func clamp(v, floor, ceil int64) int64 {
	if v < floor {
		return floor
	}
	if v > ceil {
		return ceil
	}
	return v
}

// Snapshot returns a deep copy of the current profiles, safe to serialize or
// inspect without holding the controller's lock.
func (s *State) Snapshot() map[model.NetworkClass]HostProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.NetworkClass]HostProfile, len(s.Profiles))
	for class, p := range s.Profiles {
		out[class] = *p
	}
	return out
}
