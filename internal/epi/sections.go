package epi

// GetLeafletSections returns the section array of the first Composition
// section that itself has subsections. If none of the top-level sections
// have subsections, it falls back to the first section's subsections (which
// may be empty) and reports a warning, matching spec.md §4.1.
func GetLeafletSections(doc Document) ([]any, string, error) {
	comp, err := GetComposition(doc)
	if err != nil {
		return nil, "", err
	}
	sections, _ := comp["section"].([]any)
	if len(sections) == 0 {
		return nil, "", ErrMalformedSection
	}

	if idx, ok := leafletParentIndex(sections); ok {
		sec, _ := sections[idx].(map[string]any)
		sub, _ := sec["section"].([]any)
		return sub, "", nil
	}

	first, ok := sections[0].(map[string]any)
	if !ok {
		return nil, "", ErrMalformedSection
	}
	sub, _ := first["section"].([]any)
	return sub, "no top-level section has subsections; falling back to the first section's subsections", nil
}

// WriteLeafletSections writes sections back into the same top-level section
// index that GetLeafletSections would have read from. If that location
// cannot be re-derived (e.g. the Composition lost its section array), it
// falls back to index 0.
func WriteLeafletSections(doc Document, sections []any) error {
	comp, err := GetComposition(doc)
	if err != nil {
		return err
	}
	top, _ := comp["section"].([]any)
	if len(top) == 0 {
		comp["section"] = []any{map[string]any{"section": sections}}
		return nil
	}

	idx, ok := leafletParentIndex(top)
	if !ok {
		idx = 0
	}
	sec, ok := top[idx].(map[string]any)
	if !ok {
		sec = map[string]any{}
		top[idx] = sec
	}
	sec["section"] = sections
	comp["section"] = top
	return nil
}

// leafletParentIndex returns the index of the first top-level section that
// itself has a non-empty "section" (subsection) array.
func leafletParentIndex(sections []any) (int, bool) {
	for i, raw := range sections {
		sec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if sub, ok := sec["section"].([]any); ok && len(sub) > 0 {
			return i, true
		}
	}
	return 0, false
}

// ConcatenateLeafletHTML concatenates the text.div fragment of every section,
// parent or leaf, into a single xhtml string, recursing through subsections and through
// entry.resource.section/text.div, per spec.md §4.7 step 1.
func ConcatenateLeafletHTML(sections []any) string {
	var out string
	var walk func([]any)
	walk = func(secs []any) {
		for _, raw := range secs {
			sec, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := sec["text"].(map[string]any); ok {
				if div, ok := text["div"].(string); ok {
					out += div
				}
			}
			if sub, ok := sec["section"].([]any); ok {
				walk(sub)
			}
			if entries, ok := sec["entry"].([]any); ok {
				for _, e := range entries {
					entry, ok := e.(map[string]any)
					if !ok {
						continue
					}
					res, ok := entry["resource"].(map[string]any)
					if !ok {
						continue
					}
					if resSections, ok := res["section"].([]any); ok {
						walk(resSections)
					}
				}
			}
		}
	}
	walk(sections)
	return out
}
