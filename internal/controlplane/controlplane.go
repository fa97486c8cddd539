// Package controlplane implements the HTTP façade (C7) described in
// spec.md §4.7: a thin gorilla/mux router mapping /job and /elastic onto
// the orchestrator's ingress queue and "current job" slot. Adapted from
// the teacher's internal/app/handlers.go: same mux.Router + panic-recovery
// middleware shape, same structured-error-logging-then-500 pattern.
package controlplane

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"ulp/internal/orchestrator"
)

// MaxBodyBytes is the request body cap spec §4.7 mandates for every
// route on this façade.
const MaxBodyBytes = 16 * 1024

// ControlPlane binds the HTTP routes to an Orchestrator.
type ControlPlane struct {
	orch   *orchestrator.Orchestrator
	logger *logrus.Logger
	router *mux.Router
}

// New builds a ControlPlane and registers its routes. Call Router to
// obtain the http.Handler to serve.
func New(orch *orchestrator.Orchestrator, logger *logrus.Logger) *ControlPlane {
	cp := &ControlPlane{orch: orch, logger: logger}
	r := mux.NewRouter()
	r.Use(cp.recoveryMiddleware)
	r.HandleFunc("/job", cp.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/job", cp.handlePostJob).Methods(http.MethodPost)
	r.HandleFunc("/job", cp.handleDeleteJob).Methods(http.MethodDelete)
	r.HandleFunc("/elastic", cp.handlePostJob).Methods(http.MethodPost)
	cp.router = r
	return cp
}

// Router returns the http.Handler the caller should pass to
// http.Server.Handler / ListenAndServe.
func (cp *ControlPlane) Router() http.Handler {
	return cp.router
}

// recoveryMiddleware catches a panic in any handler, logs it, and
// responds 500, matching the teacher's metricsMiddleware recovery path.
func (cp *ControlPlane) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				cp.logger.WithField("recovered", rec).Error("controlplane: handler panic")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleGetJob implements GET /job, per spec §4.7: 200 + JSON snapshot of
// the current job, or 204 if there is none.
func (cp *ControlPlane) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job := cp.orch.CurrentJob()
	if job == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		cp.logger.WithError(err).Error("controlplane: marshal current job failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handlePostJob implements POST /job and POST /elastic, per spec §4.7:
// the body is a bare JSON string, either a UUID (→ Ingress::Ship) or any
// other text (→ Ingress::Job(glob)).
func (cp *ControlPlane) handlePostJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		cp.logger.WithError(err).Warn("controlplane: request body read failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var body string
	if err := json.Unmarshal(raw, &body); err != nil {
		// Not a JSON string literal; treat the raw bytes as the glob/UUID
		// text directly, matching clients that POST a bare unquoted value.
		body = string(raw)
	}

	cp.orch.SubmitIngress(orchestrator.ParseUUIDOrGlob(body))
	w.WriteHeader(http.StatusOK)
}

// handleDeleteJob implements DELETE /job, per spec §4.7.
func (cp *ControlPlane) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	cp.orch.ClearCurrentJob()
	w.WriteHeader(http.StatusOK)
}
