package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cache"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cachekey"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/ips"
)

func (s *Server) handleListLenses(w http.ResponseWriter, r *http.Request) {
	names, err := s.Lenses.Refresh(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"lenses": names})
}

func (s *Server) handleListPreprocessors(w http.ResponseWriter, r *http.Request) {
	names, err := s.Preprocessors.Refresh(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"preprocessors": names})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("detail") == "1" {
		if composite, ok := s.Cache.(*cache.Composite); ok {
			respondJSON(w, http.StatusOK, map[string]any{"cacheStats": composite.DetailedStats()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"cacheStats": s.Cache.Stats()})
}

func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	epiID := r.PathValue("epiId")

	doc, err := s.FHIR.FetchEpi(ctx, epiID)
	if err != nil {
		s.writeUpstreamErr(w, err)
		return
	}

	steps, err := s.resolveSteps(ctx, r)
	if err != nil {
		respondError(w, statusFor(errorkind.DiscoveryFailure), err)
		return
	}

	result, stageErrs := s.Pipeline.Run(ctx, doc, steps)
	renderOrJSON(w, r, s.Renderer, result, stageErrs)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var warnings []errorkind.StageError

	var body struct {
		Epi epi.Document   `json:"epi"`
		Ips ips.Document   `json:"ips"`
		Pv  map[string]any `json:"pv"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	doc, err := s.resolveEpi(ctx, r, body.Epi)
	if err != nil {
		s.writeUpstreamErr(w, err)
		return
	}

	ipsDoc, err := s.resolveIps(ctx, r, body.Ips)
	if err != nil {
		s.writeUpstreamErr(w, err)
		return
	}

	pv, pvErr := s.resolvePV(ctx, r, body.Pv)
	if pvErr != nil {
		warnings = append(warnings, errorkind.StageError{Stage: "pv", Code: errorkind.UpstreamUnavailable, Detail: pvErr.Error()})
	}

	// Category-skip: if doc is already P or E, preprocessing is skipped
	// entirely (spec.md §4.9, testable property 5, scenario S3).
	category, _ := epi.GetCategoryCode(doc)
	if category != epi.CategoryPreprocessed && category != epi.CategoryEnhanced {
		steps, serr := s.resolveSteps(ctx, r)
		if serr != nil {
			warnings = append(warnings, errorkind.StageError{Stage: "preprocess", Code: errorkind.DiscoveryFailure, Detail: serr.Error()})
		} else {
			var stageErrs []errorkind.StageError
			doc, stageErrs = s.Pipeline.Run(ctx, doc, steps)
			warnings = append(warnings, stageErrs...)
		}
	}

	lensNames, lerr := s.resolveLensNames(ctx, r)
	if lerr != nil {
		warnings = append(warnings, errorkind.StageError{Stage: "lens", Code: errorkind.DiscoveryFailure, Detail: lerr.Error()})
		lensNames = nil
	}
	for _, name := range lensNames {
		baseURL, actualName, rerr := s.Lenses.ResolveWithRefresh(ctx, name)
		if rerr != nil {
			warnings = append(warnings, errorkind.StageError{Stage: "lens", Code: errorkind.UnknownService, Detail: name})
			continue
		}
		l, ferr := s.LensClient.FetchLens(ctx, baseURL, actualName)
		if ferr != nil {
			warnings = append(warnings, stageErrorFrom("lens", name, ferr))
			continue
		}
		if aerr := s.LensRuntime.Apply(l, doc, ipsDoc, pv); aerr != nil {
			warnings = append(warnings, stageErrorFrom("lens", name, aerr))
			continue
		}
	}

	renderOrJSON(w, r, s.Renderer, doc, warnings)
}

func stageErrorFrom(stage, detail string, err error) errorkind.StageError {
	if ke, ok := err.(*errorkind.Error); ok {
		return errorkind.StageError{Stage: stage, Code: ke.Kind, Detail: detail}
	}
	return errorkind.StageError{Stage: stage, Code: errorkind.Internal, Detail: detail}
}

func (s *Server) writeUpstreamErr(w http.ResponseWriter, err error) {
	if ke, ok := err.(*errorkind.Error); ok {
		respondError(w, statusFor(ke.Kind), err)
		return
	}
	respondError(w, http.StatusBadGateway, err)
}

func (s *Server) resolveEpi(ctx context.Context, r *http.Request, inline epi.Document) (epi.Document, error) {
	if id := r.PathValue("epiId"); id != "" {
		return s.FHIR.FetchEpi(ctx, id)
	}
	if inline != nil {
		return inline, nil
	}
	return nil, errorkind.New(errorkind.RequestMalformed, "focus: neither epi body nor :epiId path provided")
}

func (s *Server) resolveIps(ctx context.Context, r *http.Request, inline ips.Document) (ips.Document, error) {
	if pid := r.URL.Query().Get("patientIdentifier"); pid != "" {
		return s.FHIR.FetchIpsByIdentifier(ctx, pid)
	}
	if inline != nil {
		return inline, nil
	}
	return nil, errorkind.New(errorkind.RequestMalformed, "focus: neither ips body nor patientIdentifier query provided")
}

func (s *Server) resolvePV(ctx context.Context, r *http.Request, inline map[string]any) (map[string]any, error) {
	if pvID := r.URL.Query().Get("pvId"); pvID != "" {
		return s.FHIR.FetchPV(ctx, pvID)
	}
	return inline, nil
}

func (s *Server) resolveSteps(ctx context.Context, r *http.Request) ([]cachekey.Step, error) {
	names := queryList(r, "preprocessors")
	if len(names) == 0 {
		if _, err := s.Preprocessors.Refresh(ctx); err != nil {
			return nil, err
		}
		names = s.Preprocessors.List()
	}
	steps := make([]cachekey.Step, len(names))
	for i, n := range names {
		steps[i] = cachekey.Step{Name: n}
	}
	return steps, nil
}

func (s *Server) resolveLensNames(ctx context.Context, r *http.Request) ([]string, error) {
	names := queryList(r, "lenses")
	if len(names) > 0 {
		return names, nil
	}
	return s.Lenses.Refresh(ctx)
}

// queryList reads a repeated-key query param under both "name" and
// "name[]" spellings (spec.md §6 writes them as "preprocessors[]?" /
// "lenses[]?", but plain Go query strings commonly drop the brackets), and
// a single comma-separated value under either spelling.
func queryList(r *http.Request, name string) []string {
	q := r.URL.Query()
	var out []string
	for _, key := range []string{name, name + "[]"} {
		for _, v := range q[key] {
			for _, part := range strings.Split(v, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}
