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

// Package workload classifies pending workloads as rigid or elastic and
// computes their resource demand.
package workload

import (
	corev1 "k8s.io/api/core/v1"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/resources"
)

// SchedulerName is the spec.schedulerName this scheduler claims from the
// platform's workload queue.
const SchedulerName = "resource-management-service"

// Kind distinguishes rigid (has a resource limit) from elastic (no limit)
// workloads.
type Kind string

const (
	Rigid   Kind = "rigid"
	Elastic Kind = "elastic"
)

// Owner is the controlling parent of a workload, e.g. a replica set.
type Owner struct {
	UID  string
	Name string
	Kind string
}

// Workload is a pending workload as observed on the platform's queue.
type Workload struct {
	*corev1.Pod
}

// Key returns the "namespace;name" identity, the form in which a host's
// slack map keys its hosted rigid workloads.
func Key(namespace, name string) string {
	return namespace + ";" + name
}

// Classify returns Rigid if any container specifies a limits entry (CPU or
// memory); Elastic otherwise.
func Classify(w Workload) Kind {
	for _, c := range w.Spec.Containers {
		if _, ok := c.Resources.Limits[corev1.ResourceCPU]; ok {
			return Rigid
		}
		if _, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			return Rigid
		}
	}
	return Elastic
}

// Demand sums, over every container, the limits if present else requests
// else zero, componentwise. A workload with no containers has demand
// (0,0).
func Demand(w Workload) resources.R {
	var total resources.R
	for _, c := range w.Spec.Containers {
		list := c.Resources.Limits
		if list == nil {
			list = c.Resources.Requests
		}
		var cpu, mem float64
		if q, ok := list[corev1.ResourceCPU]; ok {
			cpu = resources.CoresFromQuantity(q)
		}
		if q, ok := list[corev1.ResourceMemory]; ok {
			mem = resources.MiBFromQuantity(q)
		}
		total = total.Add(resources.R{CPU: cpu, Memory: mem})
	}
	return total
}

// Unassigned reports whether this workload has not yet been bound to a
// host and was addressed to this scheduler.
func Unassigned(w Workload) bool {
	return w.Spec.SchedulerName == SchedulerName && w.Spec.NodeName == ""
}

// Pending reports whether the workload is still in the Pending phase.
func Pending(w Workload) bool {
	return w.Status.Phase == corev1.PodPending || w.Status.Phase == ""
}
