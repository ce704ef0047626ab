// Package ips provides the narrow accessors the core needs into an
// International Patient Summary document: it is otherwise opaque to the
// core (spec.md §3), used only for a patient identifier and for
// condition/allergy display strings fed into the Explanation Builder (C8).
package ips

// Document is an IPS Bundle, kept as untyped JSON at the boundary like the
// ePI (spec.md §9's "any-shaped JSON documents" redesign note applies here
// too).
type Document = map[string]any

// Allergy is the {type, causalAgent} pair the Explanation Builder fills
// allergy templates from (spec.md §4.8).
type Allergy struct {
	Type        string
	CausalAgent string
}

// PatientIdentifier returns the IPS's subject identifier, or "" if absent.
func PatientIdentifier(doc Document) string {
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
		if rt, _ := res["resourceType"].(string); rt != "Patient" {
			continue
		}
		idents, _ := res["identifier"].([]any)
		for _, raw := range idents {
			ident, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := ident["value"].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

// ConditionDisplays returns the display strings of every Condition resource
// in the IPS, in entry order.
func ConditionDisplays(doc Document) []string {
	var out []string
	for _, res := range resourcesOfType(doc, "Condition") {
		if d := codeDisplay(res); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// AllergyPairs returns {type, causalAgent} for every AllergyIntolerance
// resource in the IPS, in entry order.
func AllergyPairs(doc Document) []Allergy {
	var out []Allergy
	for _, res := range resourcesOfType(doc, "AllergyIntolerance") {
		typ, _ := res["type"].(string)
		agent := codeDisplay(res)
		if agent == "" {
			if code, ok := res["code"].(map[string]any); ok {
				if text, ok := code["text"].(string); ok {
					agent = text
				}
			}
		}
		out = append(out, Allergy{Type: typ, CausalAgent: agent})
	}
	return out
}

func resourcesOfType(doc Document, resourceType string) []map[string]any {
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

func codeDisplay(res map[string]any) string {
	code, ok := res["code"].(map[string]any)
	if !ok {
		return ""
	}
	codings, _ := code["coding"].([]any)
	for _, raw := range codings {
		coding, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if d, ok := coding["display"].(string); ok && d != "" {
			return d
		}
	}
	if text, ok := code["text"].(string); ok {
		return text
	}
	return ""
}
