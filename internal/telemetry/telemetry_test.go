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

package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FetchParams", func() {
	It("returns the latest parameter record", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([]paramRecord{{Alpha: 2, Beta: 1024, Gamma: 0.1}})
		}))
		defer srv.Close()

		s := New(http.DefaultClient, srv.URL)
		params, ok, err := s.FetchParams(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(params.Alpha).To(Equal(2.0))
		Expect(params.Beta).To(Equal(1024.0))
		Expect(params.Gamma).To(Equal(0.1))
	})

	It("returns not-ok on an empty parameter list", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([]paramRecord{})
		}))
		defer srv.Close()

		s := New(http.DefaultClient, srv.URL)
		_, ok, err := s.FetchParams(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("PostDecision", func() {
	It("sends the expected fields", func() {
		var captured DecisionRecord
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&captured)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		s := New(http.DefaultClient, srv.URL)
		now := time.Unix(1700000000, 0).UTC()
		rec := DecisionRecord{
			IsElastic:      true,
			PodName:        "p1",
			Namespace:      "default",
			NodeName:       "host-a",
			ActionType:     "bind",
			DecisionStatus: "pending",
			PodParentKind:  "replicaset",
			DecisionStart:  now,
			DecisionEnd:    now.Add(time.Millisecond),
		}
		Expect(s.PostDecision(context.Background(), rec)).To(Succeed())
		Expect(captured.PodName).To(Equal("p1"))
		Expect(captured.NodeName).To(Equal("host-a"))
		Expect(captured.ActionType).To(Equal("bind"))
	})

	It("returns an error on a non-success status", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		s := New(http.DefaultClient, srv.URL)
		Expect(s.PostDecision(context.Background(), DecisionRecord{})).To(HaveOccurred())
	})
})

var _ = Describe("PostDecisionLogged", func() {
	It("never panics on failure", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		s := New(http.DefaultClient, srv.URL)
		Expect(func() { s.PostDecisionLogged(context.Background(), DecisionRecord{}) }).NotTo(Panic())
	})
})
