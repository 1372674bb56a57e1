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

package workload_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/resources"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

func podWithContainer(limits, requests corev1.ResourceList) workload.Workload {
	return workload.Workload{&corev1.Pod{
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{Resources: corev1.ResourceRequirements{Limits: limits, Requests: requests}},
			},
		},
	}}
}

var _ = Describe("Classify", func() {
	It("returns rigid when any container specifies a limit", func() {
		w := podWithContainer(corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("2")}, nil)
		Expect(workload.Classify(w)).To(Equal(workload.Rigid))
	})

	It("returns elastic when no container specifies a limit", func() {
		w := podWithContainer(nil, corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("1")})
		Expect(workload.Classify(w)).To(Equal(workload.Elastic))
	})

	It("returns elastic with zero demand for a workload with no containers", func() {
		w := workload.Workload{&corev1.Pod{}}
		Expect(workload.Classify(w)).To(Equal(workload.Elastic))
		Expect(workload.Demand(w).Zero()).To(BeTrue(), "expected zero demand for no containers")
	})
})

var _ = Describe("Demand", func() {
	It("prefers limits over requests", func() {
		w := podWithContainer(
			corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("2"), corev1.ResourceMemory: resource.MustParse("1Gi")},
			corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("1"), corev1.ResourceMemory: resource.MustParse("512Mi")},
		)
		Expect(workload.Demand(w)).To(Equal(resources.R{CPU: 2, Memory: 1024}))
	})

	It("falls back to requests when limits are absent", func() {
		w := podWithContainer(nil, corev1.ResourceList{corev1.ResourceCPU: resource.MustParse("1"), corev1.ResourceMemory: resource.MustParse("512Mi")})
		Expect(workload.Demand(w)).To(Equal(resources.R{CPU: 1, Memory: 512}))
	})
})

var _ = Describe("Unassigned and Pending", func() {
	It("reports unassigned-and-pending until a node is set", func() {
		w := workload.Workload{&corev1.Pod{
			Spec:   corev1.PodSpec{SchedulerName: workload.SchedulerName},
			Status: corev1.PodStatus{Phase: corev1.PodPending},
		}}
		Expect(workload.Unassigned(w)).To(BeTrue())
		Expect(workload.Pending(w)).To(BeTrue())

		w.Spec.NodeName = "node-a"
		Expect(workload.Unassigned(w)).To(BeFalse(), "expected assigned once node-name is set")
	})
})
