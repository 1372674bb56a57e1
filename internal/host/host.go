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

// Package host models the orchestration platform's execution hosts:
// their capacity/usage/allocatable vectors and, for rigid-workload hosts,
// the per-workload slack the placement engine can co-locate against.
package host

import (
	"context"
	"encoding/json"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/resources"
)

// Host is a single execution host as reported by the orchestration API's
// /k8s_node endpoint.
type Host struct {
	Name string
	ID   string

	Usage       resources.R
	Capacity    resources.R
	Allocatable resources.R

	// Slack maps a hosted rigid workload's key ("namespace;name") to the
	// headroom it is not currently consuming. Nil or empty means no known
	// headroom.
	Slack map[string]resources.R

	// Extra preserves any fields the platform sends that this scheduler
	// does not model, so round-tripping a host through this type never
	// silently drops forward-compatible data.
	Extra map[string]json.RawMessage
}

type quantityPair struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

func (q quantityPair) toR() (resources.R, error) {
	cpu, err := resources.ParseCPU(q.CPU)
	if err != nil {
		return resources.R{}, fmt.Errorf("cpu: %w", err)
	}
	mem, err := resources.ParseMemory(q.Memory)
	if err != nil {
		return resources.R{}, fmt.Errorf("memory: %w", err)
	}
	return resources.R{CPU: cpu, Memory: mem}, nil
}

// UnmarshalJSON parses a host record, tolerating a failure on any single
// field: an unknown suffix on one quantity does not prevent the rest of
// the host from being admissible for scheduling.
func (h *Host) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := map[string]bool{
		"name": true, "id": true, "usage": true, "capacity": true,
		"allocatable": true, "slack": true,
	}

	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &h.Name)
	}
	if v, ok := raw["id"]; ok {
		_ = json.Unmarshal(v, &h.ID)
	}

	ctx := context.Background()
	for _, field := range []struct {
		key string
		dst *resources.R
	}{
		{"usage", &h.Usage},
		{"capacity", &h.Capacity},
		{"allocatable", &h.Allocatable},
	} {
		v, ok := raw[field.key]
		if !ok {
			continue
		}
		var pair quantityPair
		if err := json.Unmarshal(v, &pair); err != nil {
			log.FromContext(ctx).Error(err, "failed to parse host resource field", "host", h.Name, "field", field.key)
			continue
		}
		r, err := pair.toR()
		if err != nil {
			log.FromContext(ctx).Error(err, "failed to parse host resource field", "host", h.Name, "field", field.key)
			continue
		}
		*field.dst = r
	}

	if v, ok := raw["slack"]; ok {
		var rawSlack map[string]quantityPair
		if err := json.Unmarshal(v, &rawSlack); err != nil {
			log.FromContext(ctx).Error(err, "failed to parse host slack", "host", h.Name)
		} else {
			h.Slack = make(map[string]resources.R, len(rawSlack))
			for k, pair := range rawSlack {
				r, err := pair.toR()
				if err != nil {
					log.FromContext(ctx).Error(err, "failed to parse slack entry", "host", h.Name, "workload", k)
					continue
				}
				h.Slack[k] = r
			}
		}
	}

	h.Extra = make(map[string]json.RawMessage)
	for k, v := range raw {
		if !known[k] {
			h.Extra[k] = v
		}
	}

	return nil
}

// CheckInvariant reports whether 0 <= usage <= allocatable <= capacity
// componentwise. Violations are logged by the caller but never abort
// scheduling; the host is still considered.
func (h Host) CheckInvariant() error {
	if h.Usage.CPU < 0 || h.Usage.Memory < 0 {
		return fmt.Errorf("host %s: negative usage %+v", h.Name, h.Usage)
	}
	if !h.Usage.LessEq(h.Allocatable) {
		return fmt.Errorf("host %s: usage %+v exceeds allocatable %+v", h.Name, h.Usage, h.Allocatable)
	}
	if !h.Allocatable.LessEq(h.Capacity) {
		return fmt.Errorf("host %s: allocatable %+v exceeds capacity %+v", h.Name, h.Allocatable, h.Capacity)
	}
	return nil
}

// Available returns host.allocatable - host.usage, clamped at zero.
func (h Host) Available() resources.R {
	return h.Allocatable.Sub(h.Usage)
}
