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
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

const (
	minReconnectBackoff = time.Second
	maxReconnectBackoff = 30 * time.Second
)

// WatchWorkloads returns a channel of workload events addressed to this
// scheduler. A stream that ends is reopened immediately; a failure to open
// the watch is retried with exponential backoff (1s doubling to a 30s
// cap). The stream never terminates except when ctx is canceled, i.e.
// when the process is shutting down.
func (c *Client) WatchWorkloads(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go c.watchLoop(ctx, out)
	return out
}

func (c *Client) watchLoop(ctx context.Context, out chan<- Event) {
	defer close(out)
	logger := log.FromContext(ctx)
	backoff := minReconnectBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		w, err := c.kube.CoreV1().Pods(metav1.NamespaceAll).Watch(ctx, metav1.ListOptions{
			FieldSelector: fieldSelector().String(),
		})
		if err != nil {
			logger.Error(err, "failed to open workload watch, retrying", "backoff", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = minReconnectBackoff
		drained := c.drain(ctx, w, out)
		w.Stop()
		if !drained {
			return
		}
		// stream ended naturally (server closed it); reconnect immediately.
	}
}

// drain forwards events until the watch channel closes or ctx is
// canceled. Returns false when ctx cancellation caused the exit.
func (c *Client) drain(ctx context.Context, w watch.Interface, out chan<- Event) bool {
	logger := log.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-w.ResultChan():
			if !ok {
				return true
			}
			pod, ok := ev.Object.(*corev1.Pod)
			if !ok {
				logger.Info("ignoring non-pod watch event", "type", ev.Type)
				continue
			}
			kind := EventKind(ev.Type)
			select {
			case out <- Event{Kind: kind, Workload: workload.Workload{Pod: pod}}:
			case <-ctx.Done():
				return false
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxReconnectBackoff {
		return maxReconnectBackoff
	}
	return next
}
