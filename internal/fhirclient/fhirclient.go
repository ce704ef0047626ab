// Package fhirclient implements the outbound FHIR collaborators the
// orchestrator (C9) calls to resolve ePI/IPS/PV by identifier (spec.md §6):
// GET {fhirEpiUrl}/Bundle/{id}, GET/POST against {fhirIpsUrl} for an IPS
// $summary, and GET {profileUrl}/{id} for a persona vector. These are
// out-of-scope collaborators per spec.md §1; this package is only the thin
// client interface the core drives them through.
package fhirclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/ips"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/observability"
)

// Client fetches ePI Bundles, IPS summaries, and persona vectors from the
// configured FHIR endpoints.
type Client struct {
	HTTP       *http.Client
	EpiBaseURL string
	IpsBaseURL string
	ProfileURL string
}

// New builds a Client.
func New(httpClient *http.Client, epiBaseURL, ipsBaseURL, profileURL string) *Client {
	return &Client{HTTP: httpClient, EpiBaseURL: epiBaseURL, IpsBaseURL: ipsBaseURL, ProfileURL: profileURL}
}

// FetchEpi resolves GET {fhirEpiUrl}/Bundle/{id}. A 404 maps to
// UpstreamNotFound so the orchestrator can propagate it as an HTTP 404
// (spec.md §4.9).
func (c *Client) FetchEpi(ctx context.Context, id string) (epi.Document, error) {
	url := strings.TrimRight(c.EpiBaseURL, "/") + "/Bundle/" + url.PathEscape(id)
	var doc epi.Document
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FetchIpsBySummary resolves GET {fhirIpsUrl}/Patient/{id}/$summary.
func (c *Client) FetchIpsBySummary(ctx context.Context, patientID string) (ips.Document, error) {
	url := strings.TrimRight(c.IpsBaseURL, "/") + "/Patient/" + url.PathEscape(patientID) + "/$summary"
	var doc ips.Document
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return nil, err
	}
	logRedactedBody(ctx, "ips", doc)
	return doc, nil
}

// FetchIpsByIdentifier resolves GET {fhirIpsUrl}/Patient?identifier=... when
// no Patient.id is known, only a business identifier (spec.md §6).
func (c *Client) FetchIpsByIdentifier(ctx context.Context, identifier string) (ips.Document, error) {
	u := strings.TrimRight(c.IpsBaseURL, "/") + "/Patient?identifier=" + url.QueryEscape(identifier)
	var doc ips.Document
	if err := c.getJSON(ctx, u, &doc); err != nil {
		return nil, err
	}
	logRedactedBody(ctx, "ips", doc)
	return doc, nil
}

// FetchIpsByParameters POSTs a Parameters resource carrying
// valueIdentifier.value = identifier, the third IPS-by-identifier form
// spec.md §6 lists.
func (c *Client) FetchIpsByParameters(ctx context.Context, identifier string) (ips.Document, error) {
	u := strings.TrimRight(c.IpsBaseURL, "/") + "/Patient/$summary"
	body := map[string]any{
		"resourceType": "Parameters",
		"parameter": []any{
			map[string]any{
				"name":            "patient.identifier",
				"valueIdentifier": map[string]any{"value": identifier},
			},
		},
	}
	var doc ips.Document
	if err := c.postJSON(ctx, u, body, &doc); err != nil {
		return nil, err
	}
	logRedactedBody(ctx, "ips", doc)
	return doc, nil
}

// FetchPV resolves GET {profileUrl}/{id}.
func (c *Client) FetchPV(ctx context.Context, id string) (map[string]any, error) {
	u := strings.TrimRight(c.ProfileURL, "/") + "/" + url.PathEscape(id)
	var pv map[string]any
	if err := c.getJSON(ctx, u, &pv); err != nil {
		return nil, err
	}
	logRedactedBody(ctx, "pv", pv)
	return pv, nil
}

// logRedactedBody logs a fetched patient-data body at debug level with
// sensitive-looking keys redacted (spec.md's AMBIENT STACK logging note).
func logRedactedBody(ctx context.Context, label string, body any) {
	logger := observability.LoggerWithTrace(ctx)
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	logger.Debug().RawJSON(label, observability.RedactJSON(raw)).Msg("fetched patient data body")
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errorkind.New(errorkind.UpstreamUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errorkind.New(errorkind.UpstreamNotFound, fmt.Sprintf("%s %s: not found", req.Method, req.URL))
	}
	if resp.StatusCode >= 400 {
		return errorkind.New(errorkind.UpstreamUnavailable, fmt.Sprintf("%s %s: status %d", req.Method, req.URL, resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
