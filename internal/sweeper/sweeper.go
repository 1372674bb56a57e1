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

// Package sweeper runs the retry sweep: a cooperative background task
// that re-examines still-pending workloads the watch stream may have
// missed or that failed a prior attempt.
package sweeper

import (
	"context"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/metrics"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

type lister interface {
	ListPendingWorkloads(ctx context.Context) ([]workload.Workload, error)
}

type runner interface {
	Run(ctx context.Context, w workload.Workload) error
}

// Sweeper periodically re-invokes the decision loop over every unbound,
// pending workload addressed to this scheduler.
type Sweeper struct {
	platform lister
	decision runner
	interval time.Duration
}

// New constructs a Sweeper with the given sweep interval.
func New(platform lister, decision runner, interval time.Duration) *Sweeper {
	return &Sweeper{platform: platform, decision: decision, interval: interval}
}

// Run blocks, sweeping at the configured interval until ctx is canceled.
// A single workload's failure is caught at the sweep boundary and never
// stops subsequent sweeps.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	logger := log.FromContext(ctx)
	start := time.Now()
	defer func() { metrics.SweepDurationSeconds.Observe(time.Since(start).Seconds()) }()

	pending, err := s.platform.ListPendingWorkloads(ctx)
	if err != nil {
		logger.Error(err, "sweep: failed to list pending workloads")
		return
	}
	metrics.PendingWorkloads.Set(float64(len(pending)))

	for _, w := range pending {
		if err := s.runOne(ctx, w); err != nil {
			logger.Error(err, "sweep: decision attempt failed", "namespace", w.Namespace, "name", w.Name)
		}
	}
}

// runOne isolates a single workload's decision attempt so a panic or
// error from one workload can never abort the rest of the sweep.
func (s *Sweeper) runOne(ctx context.Context, w workload.Workload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.FromContext(ctx).Error(nil, "sweep: recovered from panic in decision attempt", "panic", r)
		}
	}()
	return s.decision.Run(ctx, w)
}
