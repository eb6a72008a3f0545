package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalkwerk/konsil/internal/adapter/litellm"
	"github.com/kalkwerk/konsil/internal/domain/consult"
	"github.com/kalkwerk/konsil/internal/port/eventbus"
	"github.com/kalkwerk/konsil/internal/port/knowledge"
	"github.com/kalkwerk/konsil/internal/resilience"
	"github.com/kalkwerk/konsil/internal/service"
)

// healthCheckTimeout bounds each subsystem probe in the health handler.
const healthCheckTimeout = 2 * time.Second

// Engine is the consultation surface the handlers call.
type Engine interface {
	Consult(ctx context.Context, req consult.CreateRequest) (*consult.FinalOutput, error)
	Classify(ctx context.Context, req consult.CreateRequest) (*consult.Classification, error)
}

// Handlers holds the HTTP handler dependencies. Knowledge and Bus are
// optional; absent subsystems report as "off" in the health endpoint.
type Handlers struct {
	Engine       Engine
	Classifier   *service.Classifier
	Registry     *service.Registry
	LLM          *litellm.Client
	Knowledge    knowledge.Base
	Bus          eventbus.Bus
	CacheEnabled bool
}

// CreateConsultation handles POST /api/v1/consultations. The consultation
// runs synchronously; the response is the full synthesized output. An RFI
// outcome is a 200 with requires_rfi set, not an error.
func (h *Handlers) CreateConsultation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[consult.CreateRequest](w, r)
	if !ok {
		return
	}

	out, err := h.Engine.Consult(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "consultation not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ClassifyTask handles POST /api/v1/classify. It runs the classifier only,
// without executing any roles.
func (h *Handlers) ClassifyTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[consult.CreateRequest](w, r)
	if !ok {
		return
	}

	cls, err := h.Engine.Classify(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "classification not found")
		return
	}
	writeJSON(w, http.StatusOK, cls)
}

// ListRoles handles GET /api/v1/roles
func (h *Handlers) ListRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.List())
}

// GetRole handles GET /api/v1/roles/{id}
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rl, err := h.Registry.Get(id)
	if err != nil {
		writeDomainError(w, err, "role not found")
		return
	}
	writeJSON(w, http.StatusOK, rl)
}

type domainEntry struct {
	Domain   consult.Domain `json:"domain"`
	Keywords []string       `json:"keywords"`
}

// ListDomains handles GET /api/v1/domains. Domains come back in canonical
// consultation order with their trigger keywords.
func (h *Handlers) ListDomains(w http.ResponseWriter, _ *http.Request) {
	vocab := h.Classifier.Vocabulary()
	entries := make([]domainEntry, 0, len(consult.AllDomains))
	for _, d := range consult.AllDomains {
		entries = append(entries, domainEntry{Domain: d, Keywords: vocab[d]})
	}
	writeJSON(w, http.StatusOK, entries)
}

type healthResponse struct {
	Status    string `json:"status"`
	LLM       string `json:"llm"`
	Knowledge string `json:"knowledge"`
	Bus       string `json:"bus"`
	Cache     string `json:"cache"`
}

// Health handles GET /health. The endpoint always answers 200; subsystem
// fields tell operators what is degraded.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", LLM: "ok", Knowledge: "off", Bus: "off", Cache: "off"}

	if err := h.LLM.Health(ctx); err != nil {
		resp.LLM = "unreachable"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			resp.LLM = "circuit_open"
		}
		resp.Status = "degraded"
	}
	if h.Knowledge != nil {
		resp.Knowledge = "ok"
		if err := h.Knowledge.Healthy(ctx); err != nil {
			resp.Knowledge = "unreachable"
			resp.Status = "degraded"
		}
	}
	if h.Bus != nil {
		resp.Bus = "ok"
		if !h.Bus.IsConnected() {
			resp.Bus = "disconnected"
			resp.Status = "degraded"
		}
	}
	if h.CacheEnabled {
		resp.Cache = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}
