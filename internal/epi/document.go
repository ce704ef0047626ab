// Package epi implements the Document View (C1): locating the Composition
// inside an ePI Bundle, reading/writing leaflet sections, and stamping
// category codes and lens-provenance extensions. Documents are kept as
// untyped JSON (map[string]any) at the boundary, per the redesign note in
// spec.md §9 ("any-shaped JSON documents") — we narrow access through this
// package's views instead of introducing a rigid struct model, so unknown
// fields on a resource always round-trip unchanged.
package epi

import (
	"errors"
	"sort"
)

// Category codes, monotonically advanced R -> P -> E by the pipeline/lens phases.
const (
	CategoryRaw          = "R"
	CategoryPreprocessed = "P"
	CategoryEnhanced     = "E"
)

// LensesAppliedExtensionURL is the fixed extension URL for lens provenance.
const LensesAppliedExtensionURL = "http://hl7.eu/fhir/ig/gravitate-health/StructureDefinition/LensesApplied"

// SectionCodeSystem is used to synthesize a section code when a lens omits one.
const SectionCodeSystem = "http://hl7.org/fhir/CodeSystem/section-code"

// ErrMissingComposition and ErrMalformedSection are recoverable: callers may
// return the input document unchanged when either is returned.
var (
	ErrMissingComposition = errors.New("epi: document has no Composition resource")
	ErrMalformedSection   = errors.New("epi: section subtree is malformed")
)

// Document is an ePI Bundle represented as untyped JSON.
type Document = map[string]any

// FindResource returns every Bundle entry whose resource has the given
// resourceType, in entry order.
func FindResource(doc Document, resourceType string) []map[string]any {
	var out []map[string]any
	entries, _ := doc["entry"].([]any)
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		res, ok := entry["resource"].(map[string]any)
		if !ok {
			continue
		}
		if rt, _ := res["resourceType"].(string); rt == resourceType {
			out = append(out, res)
		}
	}
	return out
}

// GetComposition returns the document's single Composition resource.
// Invariant (i): at most one Composition; the first match wins.
func GetComposition(doc Document) (map[string]any, error) {
	matches := FindResource(doc, "Composition")
	if len(matches) == 0 {
		return nil, ErrMissingComposition
	}
	return matches[0], nil
}

// GetLanguage returns the Composition's language, or "en" when absent.
func GetLanguage(doc Document) string {
	comp, err := GetComposition(doc)
	if err != nil {
		return "en"
	}
	if lang, ok := comp["language"].(string); ok && lang != "" {
		return lang
	}
	return "en"
}

// GetPatientIdentifier returns the value of the subject's identifier when a
// Patient resource is resolvable in the Bundle, falling back to the bare
// subject reference string. Returns "" when neither is present.
func GetPatientIdentifier(doc Document) string {
	comp, err := GetComposition(doc)
	if err != nil {
		return ""
	}
	subject, _ := comp["subject"].(map[string]any)
	ref, _ := subject["reference"].(string)
	if ref == "" {
		return ""
	}
	for _, patient := range FindResource(doc, "Patient") {
		id, _ := patient["id"].(string)
		if id == "" {
			continue
		}
		if ref == "Patient/"+id || ref == id {
			if ident := firstIdentifierValue(patient); ident != "" {
				return ident
			}
		}
	}
	return ref
}

func firstIdentifierValue(resource map[string]any) string {
	idents, _ := resource["identifier"].([]any)
	for _, raw := range idents {
		ident, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := ident["value"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// GetCategoryCode reads Composition.category[0].coding[0].code.
func GetCategoryCode(doc Document) (string, error) {
	comp, err := GetComposition(doc)
	if err != nil {
		return "", err
	}
	categories, _ := comp["category"].([]any)
	if len(categories) == 0 {
		return "", ErrMalformedSection
	}
	cat, ok := categories[0].(map[string]any)
	if !ok {
		return "", ErrMalformedSection
	}
	codings, _ := cat["coding"].([]any)
	if len(codings) == 0 {
		return "", ErrMalformedSection
	}
	coding, ok := codings[0].(map[string]any)
	if !ok {
		return "", ErrMalformedSection
	}
	code, _ := coding["code"].(string)
	return code, nil
}

// SetCategoryCode writes Composition.category[0].coding[0].code, creating the
// category/coding structure if absent.
func SetCategoryCode(doc Document, code string) error {
	comp, err := GetComposition(doc)
	if err != nil {
		return err
	}
	categories, _ := comp["category"].([]any)
	var cat map[string]any
	if len(categories) > 0 {
		cat, _ = categories[0].(map[string]any)
	}
	if cat == nil {
		cat = map[string]any{}
		categories = []any{cat}
	}
	codings, _ := cat["coding"].([]any)
	var coding map[string]any
	if len(codings) > 0 {
		coding, _ = codings[0].(map[string]any)
	}
	if coding == nil {
		coding = map[string]any{}
		codings = []any{coding}
	}
	coding["code"] = code
	cat["coding"] = codings
	comp["category"] = categories
	return nil
}

// CanAdvanceCategory reports whether from->to is a legal monotonic
// transition (invariant ii: R -> P -> E only).
func CanAdvanceCategory(from, to string) bool {
	order := map[string]int{CategoryRaw: 0, CategoryPreprocessed: 1, CategoryEnhanced: 2}
	f, fok := order[from]
	t, tok := order[to]
	if !fok || !tok {
		return false
	}
	return t >= f
}

// CanonicalSections returns the Composition's section array with map keys
// recursively sorted, for use as fingerprint input (C2). It does not mutate doc.
func CanonicalSections(doc Document) (any, error) {
	comp, err := GetComposition(doc)
	if err != nil {
		return nil, err
	}
	sections, _ := comp["section"]
	return canonicalize(sections), nil
}

func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			out[k] = canonicalize(val[k])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}
