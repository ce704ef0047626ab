package lens

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
)

func leafletDoc() epi.Document {
	return epi.Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "Composition",
				"language":     "en",
				"section": []any{
					map[string]any{
						"title": "top",
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

func TestRuntime_Apply_EnhancesAndStampsProvenance(t *testing.T) {
	rt := New(nil)
	doc := leafletDoc()
	l := Lens{
		Identifier: "pregnancy-warning",
		Script: `({
			enhance: function() {
				return '<div xmlns="http://www.w3.org/1999/xhtml"><p>enhanced</p></div>';
			},
			explanation: function() {
				return "shown because patient is pregnant";
			}
		})`,
	}

	err := rt.Apply(l, doc, nil, nil)
	require.NoError(t, err)

	sections, _, err := epi.GetLeafletSections(doc)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	sec := sections[0].(map[string]any)
	text := sec["text"].(map[string]any)
	require.Contains(t, text["div"].(string), "enhanced")

	cat, err := epi.GetCategoryCode(doc)
	require.NoError(t, err)
	require.Equal(t, epi.CategoryEnhanced, cat)

	require.Equal(t, []string{"pregnancy-warning"}, epi.LensProvenanceEntries(doc))
}

func TestRuntime_Apply_EmptyLeafletFails(t *testing.T) {
	rt := New(nil)
	doc := epi.Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "Composition",
				"section":      []any{},
			}},
		},
	}
	err := rt.Apply(Lens{Identifier: "x", Script: "({enhance: function(){return html;}})"}, doc, nil, nil)
	require.Error(t, err)
}

func TestRuntime_Apply_EmptyScriptFails(t *testing.T) {
	rt := New(nil)
	doc := leafletDoc()
	err := rt.Apply(Lens{Identifier: "x", Script: "   "}, doc, nil, nil)
	require.Error(t, err)
}

func TestRuntime_Apply_MissingEnhanceFunctionIsRuntimeFailure(t *testing.T) {
	rt := New(nil)
	doc := leafletDoc()
	err := rt.Apply(Lens{Identifier: "x", Script: "({foo: 1})"}, doc, nil, nil)
	require.ErrorIs(t, err, errorkind.New(errorkind.LensRuntimeFailure, ""))
}

func TestRuntime_Apply_FallsBackToDefaultExplanationWhenScriptOmitsIt(t *testing.T) {
	rt := New(nil)
	doc := leafletDoc()
	l := Lens{
		Identifier: "allergy-warning",
		Script:     `({enhance: function(){ return html; }})`,
	}
	require.NoError(t, rt.Apply(l, doc, nil, nil))
	require.Equal(t, []string{"allergy-warning"}, epi.LensProvenanceEntries(doc))
}
