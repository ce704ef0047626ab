// Package lens implements the Lens Runtime (C7): fetching a lens from its
// owning selector, compiling its script body into a sandboxed callable
// (github.com/robertkrimen/otto, the only JS interpreter anywhere in the
// retrieved pack), invoking it per leaflet section, re-segmenting the
// enhanced xhtml, and stamping provenance via internal/epi.
package lens

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
)

// Lens is a fetched, not-yet-compiled lens: identifier, base64-decoded
// script body, and the metadata returned alongside it (spec.md §3).
type Lens struct {
	Identifier string
	Script     string
	Metadata   map[string]any
}

// SelectorClient is the outbound HTTP collaborator for a lens-selector
// service: GET {baseUrl}/lenses for listing, GET {baseUrl}/lenses/{name}
// for fetch (spec.md §6).
type SelectorClient struct {
	http *http.Client
}

// NewSelectorClient wraps an *http.Client (normally one instrumented by
// observability.NewHTTPClient).
func NewSelectorClient(client *http.Client) *SelectorClient {
	return &SelectorClient{http: client}
}

type listLensesResponse struct {
	Lenses []string `json:"lenses"`
}

// ListLensNames implements registry.SelectorLister: it lists the lens names
// exposed by one selector, stripping any trailing ".js" suffix.
func (c *SelectorClient) ListLensNames(ctx context.Context, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/lenses", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errorkind.New(errorkind.UpstreamUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, errorkind.New(errorkind.UpstreamUnavailable, fmt.Sprintf("selector %s: status %d", baseURL, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, errorkind.New(errorkind.UpstreamNotFound, fmt.Sprintf("selector %s: status %d", baseURL, resp.StatusCode))
	}
	var decoded listLensesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errorkind.New(errorkind.UpstreamUnavailable, err.Error())
	}
	out := make([]string, len(decoded.Lenses))
	for i, name := range decoded.Lenses {
		out[i] = strings.TrimSuffix(name, ".js")
	}
	return out, nil
}

type lensContentBlock struct {
	Data string `json:"data"`
}

type fetchLensResponse struct {
	Identifier string             `json:"identifier"`
	Content    []lensContentBlock `json:"content"`
	Metadata   map[string]any     `json:"metadata"`
}

// FetchLens fetches a lens record and decodes its content[0].data base64
// body, per spec.md §6. A decode or empty-body failure maps to
// LensDecodeFailure/EmptyScript so the caller can record it per-lens
// without aborting the rest of the request (spec.md §4.7).
func (c *SelectorClient) FetchLens(ctx context.Context, baseURL, name string) (Lens, error) {
	url := strings.TrimRight(baseURL, "/") + "/lenses/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Lens{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Lens{}, errorkind.New(errorkind.UpstreamUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Lens{}, errorkind.New(errorkind.UpstreamNotFound, "lens not found: "+name)
	}
	if resp.StatusCode >= 400 {
		return Lens{}, errorkind.New(errorkind.UpstreamUnavailable, fmt.Sprintf("selector %s: status %d", url, resp.StatusCode))
	}
	var decoded fetchLensResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Lens{}, errorkind.New(errorkind.UpstreamUnavailable, err.Error())
	}
	if len(decoded.Content) == 0 || decoded.Content[0].Data == "" {
		return Lens{}, errorkind.New(errorkind.EmptyScript, "lens "+name+" has no content body")
	}
	raw, err := base64.StdEncoding.DecodeString(decoded.Content[0].Data)
	if err != nil {
		return Lens{}, errorkind.New(errorkind.LensDecodeFailure, err.Error())
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Lens{}, errorkind.New(errorkind.EmptyScript, "lens "+name+" decoded to an empty script")
	}
	identifier := decoded.Identifier
	if identifier == "" {
		identifier = name
	}
	return Lens{Identifier: identifier, Script: string(raw), Metadata: decoded.Metadata}, nil
}
