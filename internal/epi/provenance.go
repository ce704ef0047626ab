package epi

// AppendLensProvenance appends a record to Composition.extension documenting
// a lens application. It never deduplicates: two independent applications of
// the same lens produce two entries, ordered by application time (invariant
// 4, testable property 4 in spec.md §8).
func AppendLensProvenance(doc Document, lensID, explanation string) error {
	comp, err := GetComposition(doc)
	if err != nil {
		return err
	}
	extensions, _ := comp["extension"].([]any)
	extensions = append(extensions, map[string]any{
		"url": LensesAppliedExtensionURL,
		"extension": []any{
			map[string]any{"url": "lens", "valueReference": map[string]any{"reference": "Library/" + lensID}},
			map[string]any{"url": "elementClass", "valueString": lensID},
			map[string]any{"url": "explanation", "valueString": explanation},
		},
	})
	comp["extension"] = extensions
	return nil
}

// LensProvenanceEntries returns the ordered list of lens ids recorded via
// AppendLensProvenance, for tests asserting non-interference (testable
// property 4).
func LensProvenanceEntries(doc Document) []string {
	comp, err := GetComposition(doc)
	if err != nil {
		return nil
	}
	var out []string
	extensions, _ := comp["extension"].([]any)
	for _, raw := range extensions {
		ext, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if url, _ := ext["url"].(string); url != LensesAppliedExtensionURL {
			continue
		}
		subs, _ := ext["extension"].([]any)
		for _, sraw := range subs {
			sub, ok := sraw.(map[string]any)
			if !ok {
				continue
			}
			if subURL, _ := sub["url"].(string); subURL != "elementClass" {
				continue
			}
			if v, ok := sub["valueString"].(string); ok {
				out = append(out, v)
			}
		}
	}
	return out
}
