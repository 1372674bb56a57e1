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

// Package platform is the narrow adapter over the orchestration
// platform's watch stream, annotation patches, bind RPC, and owner
// resolution. It is the only package that speaks client-go or raw HTTP
// to the platform; other components depend on *Client directly or
// through narrow interfaces they declare themselves.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/host"
	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

// ownerCacheTTL bounds how long a resolved owner reference is trusted
// before the platform's parent lookup is consulted again.
const ownerCacheTTL = 5 * time.Minute

// Client is the platform adapter. Construct with New.
type Client struct {
	kube       kubernetes.Interface
	httpClient *http.Client

	wamURL              string
	orchestrationAPIURL string

	ownerCache *gocache.Cache
}

// New builds a Client. httpClient should carry a bounded timeout; callers
// typically share one Client across the watch, sweep, and telemetry
// tasks.
func New(kube kubernetes.Interface, httpClient *http.Client, wamURL, orchestrationAPIURL string) *Client {
	return &Client{
		kube:                kube,
		httpClient:          httpClient,
		wamURL:              wamURL,
		orchestrationAPIURL: orchestrationAPIURL,
		ownerCache:          gocache.New(ownerCacheTTL, ownerCacheTTL),
	}
}

// EventKind mirrors the watch API's event verbs.
type EventKind string

const (
	EventAdded    EventKind = "ADDED"
	EventModified EventKind = "MODIFIED"
	EventDeleted  EventKind = "DELETED"
)

// Event is a single watch notification.
type Event struct {
	Kind     EventKind
	Workload workload.Workload
}

// fieldSelector narrows both the watch stream and the list call to
// workloads addressed to this scheduler.
func fieldSelector() fields.Selector {
	return fields.OneTermEqualSelector("spec.schedulerName", workload.SchedulerName)
}

// ListPendingWorkloads returns workloads addressed to this scheduler
// that are unassigned and still Pending.
func (c *Client) ListPendingWorkloads(ctx context.Context) ([]workload.Workload, error) {
	list, err := c.kube.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: fieldSelector().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list pending workloads: %w", err)
	}
	all := make([]workload.Workload, len(list.Items))
	for i := range list.Items {
		all[i] = workload.Workload{Pod: &list.Items[i]}
	}
	return lo.Filter(all, func(w workload.Workload, _ int) bool {
		return workload.Unassigned(w) && workload.Pending(w)
	}), nil
}

// PatchAnnotations applies an idempotent merge-patch to the workload's
// metadata.annotations sub-object. It tolerates concurrent patches by
// other actors: a merge patch, not a CAS.
func (c *Client) PatchAnnotations(ctx context.Context, w workload.Workload, annotations map[string]string) error {
	patch := map[string]any{
		"metadata": map[string]any{
			"annotations": annotations,
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal annotation patch: %w", err)
	}
	_, err = c.kube.CoreV1().Pods(w.Namespace).Patch(ctx, w.Name, types.MergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patch annotations for %s/%s: %w", w.Namespace, w.Name, err)
	}
	return nil
}

// ResolveOwner returns the controlling owner reference if present on the
// workload; otherwise it queries the platform's parent lookup. uid may be
// empty when synthesized from that lookup.
func (c *Client) ResolveOwner(ctx context.Context, w workload.Workload) (workload.Owner, error) {
	for _, ref := range w.OwnerReferences {
		if ref.Controller != nil && *ref.Controller {
			return workload.Owner{UID: string(ref.UID), Name: ref.Name, Kind: ref.Kind}, nil
		}
	}

	cacheKey := string(w.UID)
	if cacheKey != "" {
		if cached, ok := c.ownerCache.Get(cacheKey); ok {
			return cached.(workload.Owner), nil
		}
	}

	owner, err := c.lookupParent(ctx, w.Namespace, w.Name)
	if err != nil {
		return workload.Owner{}, err
	}
	if cacheKey != "" {
		c.ownerCache.SetDefault(cacheKey, owner)
	}
	return owner, nil
}

func (c *Client) lookupParent(ctx context.Context, namespace, name string) (workload.Owner, error) {
	url := fmt.Sprintf("%s/k8s_pod_parent?namespace=%s&name=%s", c.orchestrationAPIURL, namespace, name)
	var parent struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	err := c.getJSON(ctx, url, &parent)
	if err != nil {
		return workload.Owner{}, fmt.Errorf("resolve owner for %s/%s: %w", namespace, name, err)
	}
	return workload.Owner{Name: parent.Name, Kind: parent.Kind}, nil
}

// ListHosts fetches the current host inventory from the orchestration
// API. Hosts that violate the usage<=allocatable<=capacity invariant are
// logged but still returned; violations don't abort scheduling.
func (c *Client) ListHosts(ctx context.Context) ([]host.Host, error) {
	url := fmt.Sprintf("%s/k8s_node", c.orchestrationAPIURL)
	var hosts []host.Host
	if err := c.getJSON(ctx, url, &hosts); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	logger := log.FromContext(ctx)
	for _, h := range hosts {
		if err := h.CheckInvariant(); err != nil {
			logger.Error(err, "host resource invariant violated", "host", h.Name)
		}
	}
	return hosts, nil
}

// getJSON performs a GET and decodes the JSON body, retrying transient
// failures since list/fetch calls are idempotent.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
			}
			return json.NewDecoder(resp.Body).Decode(out)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
	)
}

// IsNotFound reports whether err indicates the workload no longer exists
// on the platform (e.g. raced with deletion between watch and patch).
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}
