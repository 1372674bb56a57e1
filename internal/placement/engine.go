/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package placement implements the swarm-intelligence placement engine:
// classification-driven co-location of elastic workloads onto rigid
// hosts' slack, falling back to plain rigid bin-packing.
package placement

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/host"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/metrics"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/resources"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

// Method selects the placement algorithm.
type Method string

const (
	// RND uniformly picks any host, ignoring demand. A diagnostic
	// baseline, not used in production placement decisions.
	RND Method = "RND"
	// SWARM classifies the workload first, then runs elastic or rigid
	// placement depending on its kind.
	SWARM Method = "SWARM"
)

// Params are the swarm-tuning coefficients fetched from telemetry.
type Params struct {
	Alpha float64
	Beta  float64
	Gamma float64
}

var (
	// ErrNoCandidate is returned when the elastic bucket has no entries.
	ErrNoCandidate = errors.New("placement: no candidate in bucket")
	// ErrDemandExceedsSlack is returned when the chosen elastic
	// candidate's slack cannot cover the workload's demand and no
	// fallback to rigid placement occurred.
	ErrDemandExceedsSlack = errors.New("placement: demand exceeds candidate slack")
	// ErrDemandExceedsCapacity is returned when the host rigid placement
	// picked at random lacks enough available capacity; other hosts are
	// not tried.
	ErrDemandExceedsCapacity = errors.New("placement: demand exceeds host capacity")
	// ErrParamsUnavailable is returned when elastic placement is
	// attempted before tuning parameters have ever been loaded.
	ErrParamsUnavailable = errors.New("placement: tuning parameters unavailable")
)

// bucket is a coarse (L|H, L|H) discretization of a (cpu, memory) pair.
type bucket [2]string

var allBuckets = []bucket{{"L", "L"}, {"L", "H"}, {"H", "L"}, {"H", "H"}}

func bucketOf(x, y, alpha, beta float64) bucket {
	b := bucket{"H", "H"}
	if x < alpha {
		b[0] = "L"
	}
	if y < beta {
		b[1] = "L"
	}
	return b
}

// Rand is the subset of *rand.Rand the engine draws from. Tests inject a
// deterministic source; production uses the default global-seeded one.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Engine is the placement engine. It is pure with respect to the
// (workload, hosts, params) triple it is invoked with on every call;
// the only state it owns is the cached tuning parameters and the shared
// random source.
type Engine struct {
	slackEstimationError float64

	params atomic.Pointer[Params]

	randMu sync.Mutex
	rand   Rand
}

// New constructs an Engine with the default slack estimation error and a
// process-seeded random source.
func New() *Engine {
	return NewWithRand(rand.New(rand.NewSource(rand.Int63())), 0.2)
}

// NewWithRand constructs an Engine with an injected random source and
// slack estimation error, for deterministic tests.
func NewWithRand(r Rand, slackEstimationError float64) *Engine {
	return &Engine{rand: r, slackEstimationError: slackEstimationError}
}

// SetParams atomically publishes a fresh tuning-parameter snapshot.
// Readers always see a complete parameter set or the previous one.
func (e *Engine) SetParams(p Params) {
	cp := p
	e.params.Store(&cp)
}

// Params returns the currently cached tuning parameters, or ok=false if
// none have ever been loaded.
func (e *Engine) Params() (Params, bool) {
	p := e.params.Load()
	if p == nil {
		return Params{}, false
	}
	return *p, true
}

func (e *Engine) float64() float64 {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Float64()
}

func (e *Engine) intn(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Intn(n)
}

// key computes the bucket for (x,y) against (alpha,beta), replacing it
// with a uniformly random bucket with probability slack_estimation_error.
func (e *Engine) key(x, y, alpha, beta float64) bucket {
	if e.float64() < e.slackEstimationError {
		return allBuckets[e.intn(len(allBuckets))]
	}
	return bucketOf(x, y, alpha, beta)
}

type candidate struct {
	host        string
	workloadKey string
	slack       resources.R
}

// Place runs the requested method and returns the chosen host name.
// kind and demand must already reflect workload.Classify/workload.Demand
// for the workload under consideration. hosts must be non-empty; the
// caller raises NoHosts before invoking Place.
func (e *Engine) Place(method Method, kind workload.Kind, demand resources.R, hosts []host.Host) (string, error) {
	if len(hosts) == 0 {
		return "", fmt.Errorf("placement: Place called with no hosts")
	}

	if method == RND {
		return hosts[e.intn(len(hosts))].Name, nil
	}

	switch kind {
	case workload.Elastic:
		return e.placeElastic(demand, hosts)
	default:
		return e.placeRigid(demand, hosts)
	}
}

func (e *Engine) placeElastic(demand resources.R, hosts []host.Host) (string, error) {
	params, ok := e.Params()
	if !ok {
		return "", ErrParamsUnavailable
	}

	// Slack entries are visited in sorted key order so that each entry
	// receives the same random draw for a given seed; ranging the map
	// directly would let Go's randomized iteration order, not the
	// injected source, decide which entries get misclassified.
	table := make(map[bucket][]candidate)
	for _, h := range hosts {
		keys := make([]string, 0, len(h.Slack))
		for wlKey := range h.Slack {
			keys = append(keys, wlKey)
		}
		sort.Strings(keys)
		for _, wlKey := range keys {
			slack := h.Slack[wlKey]
			b := e.key(slack.CPU, slack.Memory, params.Alpha, params.Beta)
			table[b] = append(table[b], candidate{host: h.Name, workloadKey: wlKey, slack: slack})
		}
	}

	b := e.key(demand.CPU, demand.Memory, params.Alpha, params.Beta)
	metrics.PlacementBucketTotal.WithLabelValues(b[0], b[1]).Inc()
	cands := table[b]
	if len(cands) == 0 {
		return "", ErrNoCandidate
	}

	chosen := cands[e.intn(len(cands))]
	if demand.LessEq(chosen.slack) {
		return chosen.host, nil
	}

	if e.float64() < params.Gamma {
		return e.placeRigid(demand, hosts)
	}
	return "", ErrDemandExceedsSlack
}

func (e *Engine) placeRigid(demand resources.R, hosts []host.Host) (string, error) {
	h := hosts[e.intn(len(hosts))]
	if demand.LessEq(h.Available()) {
		return h.Name, nil
	}
	return "", ErrDemandExceedsCapacity
}
