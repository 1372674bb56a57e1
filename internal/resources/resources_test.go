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

package resources

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseCPU", func() {
	DescribeTable("converts quantity strings to whole cores",
		func(in string, want float64) {
			got, err := ParseCPU(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("nanocores", "1000000000n", 1.0),
		Entry("millicores", "500m", 0.5),
		Entry("bare cores", "2", 2.0),
		Entry("zero", "0", 0.0),
	)

	It("fails the field on an unknown suffix", func() {
		_, err := ParseCPU("5Q")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ParseMemory", func() {
	DescribeTable("converts quantity strings to mebibytes",
		func(in string, want float64) {
			got, err := ParseMemory(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("Ki", "1024Ki", 1.0),
		Entry("Mi", "1Mi", 1.0),
		Entry("Gi", "1Gi", 1024.0),
		Entry("Ti", "1Ti", 1024.0*1024.0),
		Entry("bare bytes", "1048576", 1.0),
	)
})

var _ = Describe("round trip", func() {
	It("round-trips CPU cores through FormatCPU/ParseCPU", func() {
		for _, cores := range []float64{0, 1, 2, 0.5, 16} {
			got, err := ParseCPU(FormatCPU(cores))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(cores))
		}
	})

	It("round-trips memory mebibytes through FormatMemory/ParseMemory", func() {
		for _, mib := range []float64{0, 1, 1024, 512, 4096} {
			got, err := ParseMemory(FormatMemory(mib))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(mib))
		}
	})
})

var _ = Describe("R", func() {
	It("LessEq is componentwise", func() {
		Expect((R{CPU: 1, Memory: 100}).LessEq(R{CPU: 1, Memory: 100})).To(BeTrue())
		Expect((R{CPU: 2, Memory: 100}).LessEq(R{CPU: 1, Memory: 100})).To(BeFalse())
	})

	It("Sub clamps each component at zero", func() {
		got := R{CPU: 1, Memory: 1}.Sub(R{CPU: 2, Memory: 0.5})
		Expect(got).To(Equal(R{CPU: 0, Memory: 0.5}))
	})
})
