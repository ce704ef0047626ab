package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/cache"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/fhirclient"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/lens"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/pipeline"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/registry"
)

// fakeDiscovery implements discovery.Backend by returning a fixed URL list
// regardless of label, so tests don't need a real cluster/container backend.
type fakeDiscovery struct {
	urls []string
}

func (f *fakeDiscovery) ListByLabel(_ context.Context, _ string) ([]string, error) {
	return f.urls, nil
}

func echoPreprocessor(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc epi.Document
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
}

// stampLensSelector serves a single lens named "stamp" whose script
// inserts the literal sentence from spec.md scenario S1 before the
// leaflet's last closing tag.
func stampLensSelector(t *testing.T) *httptest.Server {
	t.Helper()
	script := `({
		enhance: function() {
			var marker = "</div>";
			var idx = html.lastIndexOf(marker);
			return html.slice(0, idx) + "<p>This ePI has been enhanced with the stamp lens.</p>" + html.slice(idx);
		}
	})`
	encoded := base64.StdEncoding.EncodeToString([]byte(script))

	mux := http.NewServeMux()
	mux.HandleFunc("/lenses", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"lenses": []string{"stamp.js"}})
	})
	mux.HandleFunc("/lenses/stamp", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"identifier": "stamp",
			"content":    []any{map[string]any{"data": encoded}},
		})
	})
	return httptest.NewServer(mux)
}

func inlineDoc(category string) epi.Document {
	return epi.Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "Composition",
				"language":     "en",
				"category": []any{map[string]any{
					"coding": []any{map[string]any{"code": category}},
				}},
				"section": []any{
					map[string]any{
						"title": "leaflet",
						"section": []any{
							map[string]any{
								"title": "Section 1",
								"text":  map[string]any{"div": `<div xmlns="http://www.w3.org/1999/xhtml"><p>orig</p></div>`},
							},
						},
					},
				},
			}},
		},
	}
}

func newTestServer(t *testing.T, preprocessorURLs []string, lensSelectorURLs []string) (*Server, *int) {
	t.Helper()

	preprocessors := registry.NewPreprocessorRegistry(&fakeDiscovery{urls: preprocessorURLs}, "sel", nil)
	lensClient := lens.NewSelectorClient(http.DefaultClient)
	lenses := registry.NewLensRegistry(&fakeDiscovery{urls: lensSelectorURLs}, "sel", lensClient)

	memCache, err := cache.NewMemoryBackend(100, time.Minute)
	require.NoError(t, err)

	p := pipeline.New(memCache, preprocessors, http.DefaultClient, "v1")
	rt := lens.New(nil)

	var calls int
	fhirMux := http.NewServeMux()
	fhirMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})
	fhirStub := httptest.NewServer(fhirMux)
	t.Cleanup(fhirStub.Close)
	fhir := fhirclient.New(http.DefaultClient, fhirStub.URL, fhirStub.URL, fhirStub.URL)

	s := NewServer(&Server{
		Preprocessors: preprocessors,
		Lenses:        lenses,
		LensClient:    lensClient,
		LensRuntime:   rt,
		Pipeline:      p,
		FHIR:          fhir,
		Cache:         memCache,
	})
	return s, &calls
}

func TestHandleFocus_InlineWithOneLens(t *testing.T) {
	selector := stampLensSelector(t)
	defer selector.Close()

	s, _ := newTestServer(t, nil, []string{selector.URL})

	body := map[string]any{"epi": inlineDoc(epi.CategoryRaw), "ips": map[string]any{}}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/focus", strings.NewReader(string(raw)))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "This ePI has been enhanced with the stamp lens.")

	var doc epi.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	cat, err := epi.GetCategoryCode(doc)
	require.NoError(t, err)
	require.Equal(t, epi.CategoryEnhanced, cat)
}

func TestHandleFocus_PreprocessedCategorySkipsPipeline(t *testing.T) {
	var preprocessorCalls int
	pre := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		preprocessorCalls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer pre.Close()

	selector := stampLensSelector(t)
	defer selector.Close()

	s, _ := newTestServer(t, []string{pre.URL}, []string{selector.URL})

	body := map[string]any{"epi": inlineDoc(epi.CategoryPreprocessed), "ips": map[string]any{}}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/focus", strings.NewReader(string(raw)))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0, preprocessorCalls)

	var doc epi.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	cat, err := epi.GetCategoryCode(doc)
	require.NoError(t, err)
	require.Equal(t, epi.CategoryEnhanced, cat)
}

func TestHandleFocus_MissingEpiSourceIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/focus", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePreprocess_UpstreamNotFoundPropagates(t *testing.T) {
	s, calls := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/preprocessing/missing-epi", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 1, *calls)
}

func TestHandleListLenses_ReturnsDiscoveredNames(t *testing.T) {
	selector := stampLensSelector(t)
	defer selector.Close()

	s, _ := newTestServer(t, nil, []string{selector.URL})

	req := httptest.NewRequest(http.MethodGet, "/lenses", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, []string{"stamp"}, out["lenses"])
}

func TestHandleCacheStats_ReturnsCounters(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/preprocessing/cache/stats", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "hits")
}
