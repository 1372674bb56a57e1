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

package operator

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
)

// Options are the flags and environment variables that configure the
// scheduler process. Defaults mirror the flag/env-var pairing convention
// of this codebase's controller entrypoint.
type Options struct {
	WAMURL               string
	OrchestrationAPIURL  string
	RetryEverySeconds    int
	SweepIntervalSeconds int
	MetricsPort          int
	HealthProbePort      int
	KubeClientQPS        int
	KubeClientBurst      int
	ShutdownGraceSeconds int
	Verbose              bool
}

// AddFlags registers the command-line flags backing o, with defaults
// sourced from environment variables where one is defined.
func (o *Options) AddFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.WAMURL, "wam-url", withDefaultString("WAM_URL", ""), "The workload action manager URL the bind RPC is sent to.")
	fs.StringVar(&o.OrchestrationAPIURL, "orchestration-api-url", withDefaultString("ORCHESTRATION_API_URL", ""), "The orchestration API base URL for host inventory, owner lookup, and telemetry.")
	fs.IntVar(&o.RetryEverySeconds, "retry-every-seconds", withDefaultInt("RETRY_EVERY_SECONDS", 5), "Environment-configurable retry cadence reserved for future fine-grained policy.")
	fs.IntVar(&o.SweepIntervalSeconds, "sweep-interval-seconds", withDefaultInt("SWEEP_INTERVAL_SECONDS", 30), "Interval between retry-sweeper passes.")
	fs.IntVar(&o.MetricsPort, "metrics-port", withDefaultInt("METRICS_PORT", 8080), "The port the metrics endpoint binds to.")
	fs.IntVar(&o.HealthProbePort, "health-probe-port", withDefaultInt("HEALTH_PROBE_PORT", 8081), "The port the health/readiness endpoint binds to.")
	fs.IntVar(&o.KubeClientQPS, "kube-client-qps", withDefaultInt("KUBE_CLIENT_QPS", 50), "The smoothed rate of qps to kube-apiserver.")
	fs.IntVar(&o.KubeClientBurst, "kube-client-burst", withDefaultInt("KUBE_CLIENT_BURST", 100), "The maximum allowed burst of queries to the kube-apiserver.")
	fs.IntVar(&o.ShutdownGraceSeconds, "shutdown-grace-seconds", withDefaultInt("SHUTDOWN_GRACE_SECONDS", 10), "Grace period for in-flight work to finish after a shutdown signal.")
	fs.BoolVar(&o.Verbose, "verbose", withDefaultBool("VERBOSE", false), "Enable verbose (development-mode) logging.")
}

// Validate checks that o is well-formed. There is no struct-tag
// validator in this module's dependency surface, so field checks are
// hand-written and accumulated with multierr, matching this codebase's
// use of multierr elsewhere for validation-error aggregation.
func (o *Options) Validate() error {
	var errs error
	if o.WAMURL == "" {
		errs = multierr.Append(errs, fmt.Errorf("wam-url (or WAM_URL) must be set"))
	}
	if o.OrchestrationAPIURL == "" {
		errs = multierr.Append(errs, fmt.Errorf("orchestration-api-url (or ORCHESTRATION_API_URL) must be set"))
	}
	if o.SweepIntervalSeconds <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("sweep-interval-seconds must be positive, got %d", o.SweepIntervalSeconds))
	}
	if o.RetryEverySeconds <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("retry-every-seconds must be positive, got %d", o.RetryEverySeconds))
	}
	if o.KubeClientQPS <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("kube-client-qps must be positive, got %d", o.KubeClientQPS))
	}
	if o.KubeClientBurst <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("kube-client-burst must be positive, got %d", o.KubeClientBurst))
	}
	if o.ShutdownGraceSeconds <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("shutdown-grace-seconds must be positive, got %d", o.ShutdownGraceSeconds))
	}
	return errs
}

// SweepInterval is SweepIntervalSeconds as a time.Duration.
func (o *Options) SweepInterval() time.Duration {
	return time.Duration(o.SweepIntervalSeconds) * time.Second
}

// ShutdownGrace is ShutdownGraceSeconds as a time.Duration.
func (o *Options) ShutdownGrace() time.Duration {
	return time.Duration(o.ShutdownGraceSeconds) * time.Second
}

func withDefaultString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func withDefaultInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func withDefaultBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
