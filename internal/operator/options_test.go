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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validOptions() Options {
	return Options{
		WAMURL:               "http://wam.local",
		OrchestrationAPIURL:  "http://api.local",
		RetryEverySeconds:    5,
		SweepIntervalSeconds: 30,
		MetricsPort:          8080,
		HealthProbePort:      8081,
		KubeClientQPS:        50,
		KubeClientBurst:      100,
		ShutdownGraceSeconds: 10,
	}
}

var _ = Describe("Options", func() {
	It("validates a fully-populated set", func() {
		opts := validOptions()
		Expect(opts.Validate()).To(Succeed())
	})

	It("accumulates every missing required field", func() {
		opts := validOptions()
		opts.WAMURL = ""
		opts.OrchestrationAPIURL = ""
		err := opts.Validate()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("wam-url"))
		Expect(err.Error()).To(ContainSubstring("orchestration-api-url"))
	})

	It("rejects non-positive intervals", func() {
		opts := validOptions()
		opts.SweepIntervalSeconds = 0
		Expect(opts.Validate()).To(HaveOccurred())
	})

	It("binds flag defaults", func() {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		var opts Options
		opts.AddFlags(fs)
		Expect(fs.Parse([]string{"--wam-url", "http://wam.local"})).To(Succeed())
		Expect(opts.WAMURL).To(Equal("http://wam.local"))
		Expect(opts.SweepInterval()).To(Equal(30 * time.Second))
		Expect(opts.ShutdownGrace()).To(Equal(10 * time.Second))
	})
})
