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

package platform

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

var _ = Describe("WatchWorkloads", func() {
	It("forwards pod events", func() {
		kube := fake.NewSimpleClientset()
		c := New(kube, http.DefaultClient, "", "")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events := c.WatchWorkloads(ctx)

		pod := pendingPod("default", "p1")
		_, err := kube.CoreV1().Pods("default").Create(ctx, pod, metav1.CreateOptions{})
		Expect(err).NotTo(HaveOccurred())

		Eventually(events, 2*time.Second).Should(Receive(WithTransform(
			func(ev Event) string { return ev.Workload.Name },
			Equal("p1"),
		)))
	})
})

var _ = Describe("nextBackoff", func() {
	It("doubles and caps at the maximum reconnect backoff", func() {
		cur := minReconnectBackoff
		for i := 0; i < 10; i++ {
			cur = nextBackoff(cur)
		}
		Expect(cur).To(Equal(maxReconnectBackoff))
	})
})

var _ = Describe("sleep", func() {
	It("returns false on a canceled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(sleep(ctx, time.Second)).To(BeFalse())
	})
})
