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

// Command scheduler is the process entrypoint: it parses flags, builds
// the logger and Kubernetes REST config, constructs the operator, and
// runs it until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	controllerruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/operator"
)

func main() {
	opts := operator.Options{}
	opts.AddFlags(flag.CommandLine)
	flag.Parse()

	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %s\n", err.Error())
		os.Exit(1)
	}

	logger := zapr.NewLogger(newZapLogger(opts.Verbose))
	ctx := log.IntoContext(context.Background(), logger)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	restConfig := controllerruntime.GetConfigOrDie()
	op, err := operator.New(restConfig, opts)
	if err != nil {
		logger.Error(err, "failed to construct operator")
		os.Exit(1)
	}

	logger.Info("starting resource-management-scheduler",
		"metricsPort", opts.MetricsPort,
		"healthProbePort", opts.HealthProbePort,
		"sweepInterval", opts.SweepInterval().String(),
	)

	done := make(chan error, 1)
	go func() { done <- op.Start(ctx) }()

	select {
	case runErr := <-done:
		if runErr != nil && ctx.Err() == nil {
			logger.Error(runErr, "operator exited unexpectedly")
			os.Exit(1)
		}
	case <-ctx.Done():
		select {
		case runErr := <-done:
			if runErr != nil {
				logger.Error(runErr, "operator shutdown reported error")
			}
		case <-time.After(opts.ShutdownGrace()):
			logger.Info("shutdown grace period elapsed, exiting")
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newZapLogger(verbose bool) *zap.Logger {
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return l
	}
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}
