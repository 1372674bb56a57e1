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

package host

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/resources"
)

func r(cpu, mem float64) resources.R {
	return resources.R{CPU: cpu, Memory: mem}
}

var _ = Describe("Host JSON unmarshaling", func() {
	It("parses a well-formed host and preserves unknown fields", func() {
		raw := `{
			"name": "node-a",
			"id": "abc-123",
			"usage": {"cpu": "1", "memory": "1Gi"},
			"capacity": {"cpu": "4", "memory": "4Gi"},
			"allocatable": {"cpu": "4", "memory": "4Gi"},
			"slack": {"ns;wl1": {"cpu": "500m", "memory": "512Mi"}},
			"zone": "us-east-1a"
		}`
		var h Host
		Expect(json.Unmarshal([]byte(raw), &h)).To(Succeed())

		Expect(h.Name).To(Equal("node-a"))
		Expect(h.ID).To(Equal("abc-123"))
		Expect(h.Usage).To(Equal(r(1, 1024)))
		Expect(h.Capacity).To(Equal(r(4, 4096)))

		slack, ok := h.Slack["ns;wl1"]
		Expect(ok).To(BeTrue(), "missing slack entry, got %+v", h.Slack)
		Expect(slack).To(Equal(r(0.5, 512)))

		Expect(string(h.Extra["zone"])).To(Equal(`"us-east-1a"`))
	})

	It("fails only the offending field on an unknown suffix, keeping the host admissible", func() {
		raw := `{
			"name": "node-b",
			"usage": {"cpu": "1", "memory": "1Gi"},
			"capacity": {"cpu": "4Q", "memory": "4Gi"},
			"allocatable": {"cpu": "4", "memory": "4Gi"}
		}`
		var h Host
		Expect(json.Unmarshal([]byte(raw), &h)).To(Succeed(), "unmarshal should not fail host-wide")
		Expect(h.Name).To(Equal("node-b"))
		Expect(h.Capacity.CPU).To(BeZero(), "unparsed field should remain zero")
	})
})

var _ = Describe("CheckInvariant", func() {
	It("passes when usage <= allocatable <= capacity", func() {
		good := Host{Usage: r(1, 1024), Allocatable: r(4, 4096), Capacity: r(4, 4096)}
		Expect(good.CheckInvariant()).To(Succeed())
	})

	It("fails when usage exceeds allocatable", func() {
		bad := Host{Name: "bad", Usage: r(5, 1024), Allocatable: r(4, 4096), Capacity: r(4, 4096)}
		Expect(bad.CheckInvariant()).To(HaveOccurred())
	})
})

var _ = Describe("Available", func() {
	It("returns allocatable minus usage", func() {
		h := Host{Usage: r(1, 1024), Allocatable: r(4, 4096)}
		Expect(h.Available()).To(Equal(r(3, 3072)))
	})
})
