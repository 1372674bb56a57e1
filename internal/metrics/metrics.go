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

// Package metrics defines the scheduler's Prometheus instrumentation and
// the HTTP surface (metrics, health, readiness) the operator exposes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

const subsystem = "scheduler"

var (
	// DecisionsTotal counts every completed decision attempt, labeled by
	// outcome so dashboards can track each failure mode directly.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "decisions_total",
			Help:      "Total number of scheduling decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// DecisionDurationSeconds observes the wall-clock span of one decision
	// attempt, from the start of the attempt until bind returns or the
	// failure annotation has been patched.
	DecisionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "decision_duration_seconds",
			Help:      "Duration of a full decision-loop attempt, in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// PlacementBucketTotal counts elastic placement attempts by the swarm
	// bucket computed for the workload's demand (whether or not that bucket
	// held a candidate), for tuning alpha/beta/gamma against observed traffic.
	PlacementBucketTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "placement_bucket_total",
			Help:      "Total number of elastic placements by (cpu,memory) bucket.",
		},
		[]string{"cpu_bucket", "memory_bucket"},
	)

	// SweepDurationSeconds observes how long a full sweep cycle takes.
	SweepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a single retry-sweeper pass, in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PendingWorkloads gauges the size of the unbound, pending set as of
	// the last sweep.
	PendingWorkloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "pending_workloads",
			Help:      "Number of unbound, pending workloads observed in the last sweep.",
		},
	)
)

// Registry is a dedicated Prometheus registry carrying only this
// scheduler's metrics plus the standard process/Go collectors, so the
// exposed /metrics surface never accidentally carries another library's
// globally-registered series.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		DecisionsTotal,
		DecisionDurationSeconds,
		PlacementBucketTotal,
		SweepDurationSeconds,
		PendingWorkloads,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	// Pre-create every known label combination so each declared family is
	// exported (at zero) from startup, not only after its first use.
	for _, o := range []string{OutcomeBound, OutcomeAlreadyDone, OutcomeNoHosts, OutcomeNoCandidate, OutcomeDemandExceedsSlack,
		OutcomeDemandExceedsCapacity, OutcomeParamsUnavailable, OutcomeBindError, OutcomeInconsistentStart, OutcomeOther} {
		DecisionsTotal.WithLabelValues(o)
	}
	for _, k := range []workload.Kind{workload.Rigid, workload.Elastic} {
		DecisionDurationSeconds.WithLabelValues(string(k))
	}
	for _, cpu := range []string{"L", "H"} {
		for _, mem := range []string{"L", "H"} {
			PlacementBucketTotal.WithLabelValues(cpu, mem)
		}
	}
}

// Outcome labels for DecisionsTotal: one per failure mode plus the two
// success paths.
const (
	OutcomeBound                 = "bound"
	OutcomeAlreadyDone           = "already_done"
	OutcomeNoHosts               = "no_hosts"
	OutcomeNoCandidate           = "no_candidate"
	OutcomeDemandExceedsSlack    = "demand_exceeds_slack"
	OutcomeDemandExceedsCapacity = "demand_exceeds_capacity"
	OutcomeParamsUnavailable     = "params_unavailable"
	OutcomeBindError             = "bind_error"
	OutcomeInconsistentStart     = "inconsistent_start_time"
	OutcomeOther                 = "other"
)
