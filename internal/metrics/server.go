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

package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// openAPIDocument is a minimal, static OpenAPI description of the
// scheduler's operational surface. The scheduler exposes no REST API of
// its own beyond these probe and exposition routes.
var openAPIDocument = map[string]any{
	"openapi": "3.0.3",
	"info": map[string]any{
		"title":   "resource-management-scheduler",
		"version": "1.0.0",
	},
	"paths": map[string]any{
		"/metrics": map[string]any{
			"get": map[string]any{"summary": "Prometheus exposition"},
		},
		"/healthz": map[string]any{
			"get": map[string]any{"summary": "Liveness probe"},
		},
		"/readyz": map[string]any{
			"get": map[string]any{"summary": "Readiness probe"},
		},
	},
}

// NewServer builds the embedded HTTP surface: Prometheus exposition,
// liveness, readiness, and a static OpenAPI document. ready is polled on
// every /readyz request so the caller can flip it once the watch and
// sweep tasks have started.
func NewServer(addr string, ready func() bool) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openAPIDocument)
	})

	return &http.Server{Addr: addr, Handler: mux}
}

// NewHealthServer builds the dedicated probe surface, serving only
// liveness and readiness. It binds separately from the metrics server so
// probe traffic and scrape traffic never share a listener.
func NewHealthServer(addr string, ready func() bool) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

// Serve runs srv until ctx is canceled, then shuts it down. A shutdown
// error distinct from http.ErrServerClosed is returned to the caller.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
