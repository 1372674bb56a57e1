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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/workload"
)

// BindError carries the HTTP status and body of a failed bind RPC.
type BindError struct {
	Status int
	Body   string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind failed: status %d: %s", e.Status, e.Body)
}

type bindRequest struct {
	Method string       `json:"method"`
	Params []bindParams `json:"params"`
	ID     string       `json:"id"`
}

type bindParams struct {
	Pod  bindPodRef  `json:"pod"`
	Node bindNodeRef `json:"node"`
}

type bindPodRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

type bindNodeRef struct {
	Name string `json:"name"`
}

// Bind invokes the external binding RPC to commit w to hostName. Success
// is HTTP 200; any other status is a *BindError carrying status and body.
// Never retried by this layer: a failed bind is recovered by the
// decision loop's next attempt, not by blind resending of a
// non-idempotent RPC.
func (c *Client) Bind(ctx context.Context, w workload.Workload, hostName string) error {
	reqBody := bindRequest{
		Method: "action.Bind",
		Params: []bindParams{{
			Pod:  bindPodRef{Namespace: w.Namespace, Name: w.Name},
			Node: bindNodeRef{Name: hostName},
		}},
		ID: uuid.NewString(),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal bind request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.wamURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build bind request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bind request for %s/%s: %w", w.Namespace, w.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &BindError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
