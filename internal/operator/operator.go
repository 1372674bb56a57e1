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

// Package operator wires the scheduler's components into a running
// process: the Kubernetes client, the platform adapter, the telemetry
// sink, the placement engine, the decision loop, the watch task, the
// retry sweeper, and the metrics/health HTTP surface.
package operator

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/util/flowcontrol"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/decision"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/metrics"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/placement"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/platform"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/sweeper"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/telemetry"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

// telemetryRefreshInterval governs how often tuning parameters are
// refreshed from the orchestration API.
const telemetryRefreshInterval = 30 * time.Second

// telemetryFetchLimit bounds how many recent parameter records are
// requested per refresh.
const telemetryFetchLimit = 1

// Operator owns every long-running task of the scheduler process.
type Operator struct {
	opts      Options
	platform  *platform.Client
	telemetry *telemetry.Sink
	engine    *placement.Engine
	decision  *decision.Loop
	sweeper   *sweeper.Sweeper

	ready atomic.Bool
}

// New constructs an Operator from Options, building the REST client,
// HTTP client, and every internal component. opts must already satisfy
// Options.Validate.
func New(restConfig *rest.Config, opts Options) (*Operator, error) {
	restConfig.RateLimiter = flowcontrol.NewTokenBucketRateLimiter(float32(opts.KubeClientQPS), opts.KubeClientBurst)
	kube, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	platformClient := platform.New(kube, httpClient, opts.WAMURL, opts.OrchestrationAPIURL)
	telemetrySink := telemetry.New(httpClient, opts.OrchestrationAPIURL)
	engine := placement.New()
	decisionLoop := decision.New(platformClient, engine, telemetrySink, placement.SWARM)
	sweep := sweeper.New(platformClient, decisionLoop, opts.SweepInterval())

	return &Operator{
		opts:      opts,
		platform:  platformClient,
		telemetry: telemetrySink,
		engine:    engine,
		decision:  decisionLoop,
		sweeper:   sweep,
	}, nil
}

// Start runs the watch task, the sweep task, the telemetry refresh task,
// and the HTTP surface tasks until ctx is canceled (or one of them fails),
// then waits for all of them to return. Start applies no deadline of its
// own; the shutdown grace period is enforced by cmd/scheduler.
func (o *Operator) Start(ctx context.Context) error {
	logger := log.FromContext(ctx)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return o.runWatch(ctx) })
	g.Go(func() error { return o.sweeper.Run(ctx) })
	g.Go(func() error { return o.runTelemetryRefresh(ctx) })
	o.ready.Store(true)
	g.Go(func() error {
		srv := metrics.NewServer(fmt.Sprintf(":%d", o.opts.MetricsPort), o.ready.Load)
		return metrics.Serve(ctx, srv)
	})
	g.Go(func() error {
		srv := metrics.NewHealthServer(fmt.Sprintf(":%d", o.opts.HealthProbePort), o.ready.Load)
		return metrics.Serve(ctx, srv)
	})

	err := g.Wait()
	logger.Info("operator shutting down")
	return err
}

func (o *Operator) runWatch(ctx context.Context) error {
	logger := log.FromContext(ctx)
	events := o.platform.WatchWorkloads(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind == platform.EventDeleted {
				continue
			}
			if !workload.Unassigned(ev.Workload) || !workload.Pending(ev.Workload) {
				continue
			}
			if err := o.decision.Run(ctx, ev.Workload); err != nil {
				logger.Error(err, "decision attempt failed", "namespace", ev.Workload.Namespace, "name", ev.Workload.Name)
			}
		}
	}
}

func (o *Operator) runTelemetryRefresh(ctx context.Context) error {
	logger := log.FromContext(ctx)
	ticker := time.NewTicker(telemetryRefreshInterval)
	defer ticker.Stop()

	refresh := func() {
		params, ok, err := o.telemetry.FetchParams(ctx, telemetryFetchLimit)
		if err != nil {
			logger.Error(err, "failed to refresh tuning parameters")
			return
		}
		if !ok {
			return
		}
		o.engine.SetParams(params)
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		}
	}
}
