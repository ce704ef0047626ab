package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
)

// Renderer is the external HTML templating collaborator (out of scope per
// spec.md §1, specified only at this interface): it renders an ePI document
// to an HTML page when the client negotiates text/html.
type Renderer interface {
	RenderHTML(doc epi.Document) (string, error)
}

// wantsHTML implements the Accept-header negotiation from spec.md §4.10:
// unknown/absent content types default to JSON.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// respondJSON writes v as application/json with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes a uniform JSON error envelope. Per spec.md §4.10,
// only orchestrator-level errors reach this path; sub-stage errors are
// collected as warnings instead.
func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFor maps an errorkind.Kind to the HTTP status the orchestrator
// should set, per spec.md §7's propagation policy.
func statusFor(kind errorkind.Kind) int {
	switch kind {
	case errorkind.RequestMalformed:
		return http.StatusBadRequest
	case errorkind.UpstreamNotFound:
		return http.StatusNotFound
	case errorkind.UpstreamUnavailable:
		return http.StatusBadGateway
	case errorkind.DiscoveryFailure:
		return http.StatusInternalServerError
	case errorkind.TemplatingFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeWarnings attaches the GH-Focusing-Warnings header (spec.md §6) when
// warnings is non-empty.
func writeWarnings(w http.ResponseWriter, warnings []errorkind.StageError) {
	if len(warnings) == 0 {
		return
	}
	b, err := json.Marshal(warnings)
	if err != nil {
		return
	}
	w.Header().Set("GH-Focusing-Warnings", string(b))
}

// renderOrJSON writes doc as HTML via renderer when the client negotiated
// text/html and a renderer is configured, else as JSON. A rendering
// failure is a TemplatingFailure: the response is a 500 with the JSON
// error envelope.
func renderOrJSON(w http.ResponseWriter, r *http.Request, renderer Renderer, doc epi.Document, warnings []errorkind.StageError) {
	if wantsHTML(r) && renderer != nil {
		html, err := renderer.RenderHTML(doc)
		if err == nil {
			writeWarnings(w, warnings)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(html))
			return
		}
		writeWarnings(w, warnings)
		respondError(w, statusFor(errorkind.TemplatingFailure), errorkind.New(errorkind.TemplatingFailure, err.Error()))
		return
	}
	writeWarnings(w, warnings)
	respondJSON(w, http.StatusOK, doc)
}
