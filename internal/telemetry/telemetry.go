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

// Package telemetry fetches placement tuning parameters and posts
// decision records to the orchestration API. Failures on the record-post
// path are logged, not propagated; the post itself runs synchronously in
// the caller's goroutine.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/hiro-microdatacenters/resource-management-scheduler/internal/placement"
)

// Sink posts decision telemetry and fetches tuning parameters from the
// orchestration API.
type Sink struct {
	httpClient          *http.Client
	orchestrationAPIURL string
}

// New constructs a Sink.
func New(httpClient *http.Client, orchestrationAPIURL string) *Sink {
	return &Sink{httpClient: httpClient, orchestrationAPIURL: orchestrationAPIURL}
}

type paramRecord struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// FetchParams retrieves the `limit` most recent tuning-parameter records
// and returns the newest one. If the platform returns an empty list, ok is
// false and the caller should retain whatever parameters it already has;
// there is no built-in default.
func (s *Sink) FetchParams(ctx context.Context, limit int) (placement.Params, bool, error) {
	url := fmt.Sprintf("%s/tuning_parameters/latest/%d", s.orchestrationAPIURL, limit)
	var records []paramRecord

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := s.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
			}
			return json.NewDecoder(resp.Body).Decode(&records)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
	)
	if err != nil {
		return placement.Params{}, false, fmt.Errorf("fetch tuning parameters: %w", err)
	}
	if len(records) == 0 {
		return placement.Params{}, false, nil
	}

	latest := records[0]
	return placement.Params{Alpha: latest.Alpha, Beta: latest.Beta, Gamma: latest.Gamma}, true, nil
}

// DecisionRecord is the exact field set posted to
// $ORCHESTRATION_API_URL/workload_request_decision.
type DecisionRecord struct {
	IsElastic        bool      `json:"is_elastic"`
	QueueName        string    `json:"queue_name"`
	DemandCPU        float64   `json:"demand_cpu"`
	DemandMemory     float64   `json:"demand_memory"`
	DemandSlackCPU   float64   `json:"demand_slack_cpu"`
	DemandSlackMem   float64   `json:"demand_slack_memory"`
	PodID            string    `json:"pod_id"`
	PodName          string    `json:"pod_name"`
	Namespace        string    `json:"namespace"`
	NodeID           string    `json:"node_id"`
	NodeName         string    `json:"node_name"`
	ActionType       string    `json:"action_type"`
	DecisionStatus   string    `json:"decision_status"`
	PodParentID      string    `json:"pod_parent_id"`
	PodParentName    string    `json:"pod_parent_name"`
	PodParentKind    string    `json:"pod_parent_kind"`
	DecisionStart    time.Time `json:"decision_start_time"`
	DecisionEnd      time.Time `json:"decision_end_time"`
}

// PostDecision fire-and-forget POSTs a decision record. Non-2xx responses
// and transport errors are returned for the caller to log; the decision
// loop never treats this as fatal.
func (s *Sink) PostDecision(ctx context.Context, rec DecisionRecord) error {
	url := fmt.Sprintf("%s/workload_request_decision", s.orchestrationAPIURL)
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build decision record request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post decision record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("decision record post returned status %d", resp.StatusCode)
	}
	return nil
}

// PostDecisionLogged wraps PostDecision, logging failures instead of
// returning them. The caller waits for the POST to complete, but its
// outcome never fails a bind.
func (s *Sink) PostDecisionLogged(ctx context.Context, rec DecisionRecord) {
	if err := s.PostDecision(ctx, rec); err != nil {
		log.FromContext(ctx).Error(err, "failed to post decision record", "pod", rec.PodName, "namespace", rec.Namespace)
	}
}
