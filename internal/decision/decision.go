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

// Package decision implements the per-workload state machine: discover,
// mark-start, classify, place, record, bind, mark-result. It is driven by
// both the watch task and the retry sweeper; a single Loop is shared by
// both and is safe for concurrent use across independent workloads.
package decision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/host"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/metrics"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/placement"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/resources"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/telemetry"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

// Annotation keys, part of the external contract; other tooling may read
// them.
const (
	AnnotationDecisionStartTime   = "decision-start-time"
	AnnotationSchedulingAttempted = "scheduling-attempted"
	AnnotationSchedulingSuccess   = "scheduling-success"
	AnnotationSchedulingRetries   = "scheduling-retries"
	AnnotationLastAttempt         = "last-scheduling-attempt"
)

var (
	// ErrNoHosts is raised when the platform reports an empty host
	// inventory for an attempt.
	ErrNoHosts = errors.New("decision: no hosts available")
	// ErrInconsistentStartTime is raised when a prior attempt is recorded
	// (scheduling-attempted=true) but no decision-start-time survives;
	// the loop aborts rather than inventing one.
	ErrInconsistentStartTime = errors.New("decision: scheduling-attempted=true but decision-start-time is missing")
)

// platformClient is the subset of *platform.Client the loop depends on,
// narrow enough to fake in tests without standing up a clientset.
type platformClient interface {
	ListHosts(ctx context.Context) ([]host.Host, error)
	ResolveOwner(ctx context.Context, w workload.Workload) (workload.Owner, error)
	PatchAnnotations(ctx context.Context, w workload.Workload, annotations map[string]string) error
	Bind(ctx context.Context, w workload.Workload, hostName string) error
}

type decisionSink interface {
	PostDecisionLogged(ctx context.Context, rec telemetry.DecisionRecord)
}

// Loop runs the per-workload decision state machine.
type Loop struct {
	platform  platformClient
	engine    *placement.Engine
	telemetry decisionSink
	method    placement.Method
	now       func() time.Time
}

// New constructs a Loop using the wall clock.
func New(platform platformClient, engine *placement.Engine, sink decisionSink, method placement.Method) *Loop {
	return NewWithClock(platform, engine, sink, method, time.Now)
}

// NewWithClock constructs a Loop with an injected clock, for deterministic
// tests of decision-start-time adoption and decision record timestamps.
func NewWithClock(platform platformClient, engine *placement.Engine, sink decisionSink, method placement.Method, now func() time.Time) *Loop {
	return &Loop{platform: platform, engine: engine, telemetry: sink, method: method, now: now}
}

// Run executes one attempt for w. It returns nil when the workload was
// bound successfully or was already DONE from a prior attempt; any other
// outcome is returned as an error after the relevant annotations have
// already been written. The one exception is a missing or unparseable
// decision-start-time, which aborts the attempt without writing anything.
func (l *Loop) Run(ctx context.Context, w workload.Workload) error {
	logger := log.FromContext(ctx).WithValues("workload", klog.KObj(w.Pod))
	ann := w.Annotations
	attemptStart := l.now()

	if ann[AnnotationSchedulingAttempted] == "true" && ann[AnnotationSchedulingSuccess] == "true" {
		metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeAlreadyDone).Inc()
		return nil
	}

	kind := workload.Classify(w)

	startTime, err := l.resolveStartTime(ctx, w, ann)
	if err != nil {
		logger.Error(err, "aborting attempt")
		metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeInconsistentStart).Inc()
		return err
	}

	retries := parseRetries(ann[AnnotationSchedulingRetries])
	demand := workload.Demand(w)

	hosts, err := l.platform.ListHosts(ctx)
	if err != nil {
		return l.fail(ctx, w, retries, fmt.Errorf("fetch hosts: %w", err), metrics.OutcomeOther, kind, attemptStart)
	}
	if len(hosts) == 0 {
		return l.fail(ctx, w, retries, ErrNoHosts, metrics.OutcomeNoHosts, kind, attemptStart)
	}

	hostName, err := l.engine.Place(l.method, kind, demand, hosts)
	if err != nil {
		return l.fail(ctx, w, retries, err, placementOutcome(err), kind, attemptStart)
	}

	owner, err := l.platform.ResolveOwner(ctx, w)
	if err != nil {
		logger.Error(err, "resolve owner failed, recording decision without parent info")
	}

	decisionEnd := l.now()
	l.telemetry.PostDecisionLogged(ctx, buildRecord(w, kind, demand, hostName, findHostID(hosts, hostName), owner, startTime, decisionEnd))

	// Annotate success before bind: the annotation, not the bind RPC's
	// response, is the durable idempotence key.
	successAnn := map[string]string{
		AnnotationSchedulingAttempted: "true",
		AnnotationSchedulingSuccess:   "true",
		AnnotationSchedulingRetries:   strconv.Itoa(retries),
		AnnotationLastAttempt:         formatTime(l.now()),
	}
	if err := l.platform.PatchAnnotations(ctx, w, successAnn); err != nil {
		logger.Error(err, "failed to patch success annotation before bind")
	}

	if err := l.platform.Bind(ctx, w, hostName); err != nil {
		// The success annotation persisted above is the single-winner flag
		// and is never rolled back: the bind RPC may have been applied
		// remotely despite the error, and retracting success here would
		// let a re-observation issue a second bind. The workload stays
		// marked success=true; the platform's reconciliation repairs an
		// unbound one.
		return l.failKeepSuccess(ctx, w, retries, fmt.Errorf("bind: %w", err), metrics.OutcomeBindError, kind, attemptStart)
	}

	metrics.DecisionsTotal.WithLabelValues(metrics.OutcomeBound).Inc()
	metrics.DecisionDurationSeconds.WithLabelValues(string(kind)).Observe(l.now().Sub(attemptStart).Seconds())
	return nil
}

func placementOutcome(err error) string {
	switch {
	case errors.Is(err, placement.ErrNoCandidate):
		return metrics.OutcomeNoCandidate
	case errors.Is(err, placement.ErrDemandExceedsSlack):
		return metrics.OutcomeDemandExceedsSlack
	case errors.Is(err, placement.ErrDemandExceedsCapacity):
		return metrics.OutcomeDemandExceedsCapacity
	case errors.Is(err, placement.ErrParamsUnavailable):
		return metrics.OutcomeParamsUnavailable
	default:
		return metrics.OutcomeOther
	}
}

func (l *Loop) resolveStartTime(ctx context.Context, w workload.Workload, ann map[string]string) (time.Time, error) {
	if v := ann[AnnotationDecisionStartTime]; v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse decision-start-time %q: %w", v, err)
		}
		return t, nil
	}

	if ann[AnnotationSchedulingAttempted] == "true" {
		return time.Time{}, ErrInconsistentStartTime
	}

	now := l.now()
	if err := l.platform.PatchAnnotations(ctx, w, map[string]string{AnnotationDecisionStartTime: formatTime(now)}); err != nil {
		log.FromContext(ctx).Error(err, "failed to patch decision-start-time")
	}
	return now, nil
}

// fail writes the failure annotation set and returns cause. Patch
// failures here are themselves logged but not retried within this
// attempt; the sweeper's next pass covers them.
func (l *Loop) fail(ctx context.Context, w workload.Workload, retries int, cause error, outcome string, kind workload.Kind, attemptStart time.Time) error {
	return l.annotateFailure(ctx, w, retries, cause, outcome, kind, attemptStart, false)
}

// failKeepSuccess is fail for causes arising after the success annotation
// was persisted: it records the failed attempt without touching
// scheduling-success, so the already-written "true" survives as the
// idempotence barrier against a double bind.
func (l *Loop) failKeepSuccess(ctx context.Context, w workload.Workload, retries int, cause error, outcome string, kind workload.Kind, attemptStart time.Time) error {
	return l.annotateFailure(ctx, w, retries, cause, outcome, kind, attemptStart, true)
}

func (l *Loop) annotateFailure(ctx context.Context, w workload.Workload, retries int, cause error, outcome string, kind workload.Kind, attemptStart time.Time, keepSuccess bool) error {
	logger := log.FromContext(ctx).WithValues("workload", klog.KObj(w.Pod))
	logger.Error(cause, "scheduling attempt failed")

	failAnn := map[string]string{
		AnnotationSchedulingAttempted: "true",
		AnnotationSchedulingRetries:   strconv.Itoa(retries + 1),
		AnnotationLastAttempt:         formatTime(l.now()),
	}
	if !keepSuccess {
		failAnn[AnnotationSchedulingSuccess] = "false"
	}
	if err := l.platform.PatchAnnotations(ctx, w, failAnn); err != nil {
		logger.Error(err, "failed to patch failure annotation")
	}

	metrics.DecisionsTotal.WithLabelValues(outcome).Inc()
	metrics.DecisionDurationSeconds.WithLabelValues(string(kind)).Observe(l.now().Sub(attemptStart).Seconds())
	return cause
}

func parseRetries(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func findHostID(hosts []host.Host, name string) string {
	h, ok := lo.Find(hosts, func(h host.Host) bool { return h.Name == name })
	if !ok {
		return ""
	}
	return h.ID
}

// buildRecord assembles the decision telemetry record. queue_name and the
// demand_slack_* fields have no defined source in the external contract:
// queue_name is always empty and the slack fields are always zero.
func buildRecord(w workload.Workload, kind workload.Kind, demand resources.R, hostName, nodeID string, owner workload.Owner, start, end time.Time) telemetry.DecisionRecord {
	return telemetry.DecisionRecord{
		IsElastic:      kind == workload.Elastic,
		QueueName:      "",
		DemandCPU:      demand.CPU,
		DemandMemory:   demand.Memory,
		DemandSlackCPU: 0,
		DemandSlackMem: 0,
		PodID:          string(w.UID),
		PodName:        w.Name,
		Namespace:      w.Namespace,
		NodeID:         nodeID,
		NodeName:       hostName,
		ActionType:     "bind",
		DecisionStatus: "pending",
		PodParentID:    owner.UID,
		PodParentName:  owner.Name,
		PodParentKind:  strings.ToLower(owner.Kind),
		DecisionStart:  start,
		DecisionEnd:    end,
	}
}
