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

package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

type fakeLister struct {
	workloads []workload.Workload
}

func (f *fakeLister) ListPendingWorkloads(ctx context.Context) ([]workload.Workload, error) {
	return f.workloads, nil
}

type countingRunner struct {
	calls int32
	fail  bool
}

func (r *countingRunner) Run(ctx context.Context, w workload.Workload) error {
	atomic.AddInt32(&r.calls, 1)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func podNamed(name string) workload.Workload {
	return workload.Workload{Pod: &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: name}}}
}

var _ = Describe("sweepOnce", func() {
	It("invokes the decision runner for each pending workload", func() {
		lister := &fakeLister{workloads: []workload.Workload{podNamed("a"), podNamed("b")}}
		runner := &countingRunner{}
		s := New(lister, runner, 10*time.Millisecond)

		s.sweepOnce(context.Background())

		Expect(atomic.LoadInt32(&runner.calls)).To(Equal(int32(2)))
	})

	It("survives individual failures and still attempts every workload", func() {
		lister := &fakeLister{workloads: []workload.Workload{podNamed("a"), podNamed("b")}}
		runner := &countingRunner{fail: true}
		s := New(lister, runner, 10*time.Millisecond)

		// must not panic or abort early.
		s.sweepOnce(context.Background())

		Expect(atomic.LoadInt32(&runner.calls)).To(Equal(int32(2)))
	})
})

var _ = Describe("Run", func() {
	It("stops on context cancellation", func() {
		lister := &fakeLister{}
		runner := &countingRunner{}
		s := New(lister, runner, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		Expect(s.Run(ctx)).To(HaveOccurred(), "expected Run to return an error on context cancellation")
	})
})
