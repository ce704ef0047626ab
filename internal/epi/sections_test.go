package epi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetLeafletSections(t *testing.T) {
	doc := sampleDoc()
	sections, warning, err := GetLeafletSections(doc)
	require.NoError(t, err)
	require.Empty(t, warning)
	require.Len(t, sections, 1)
}

func TestGetLeafletSections_FallbackWarns(t *testing.T) {
	doc := Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "Composition",
				"section": []any{
					map[string]any{"title": "Flat section with no subsections"},
				},
			}},
		},
	}
	sections, warning, err := GetLeafletSections(doc)
	require.NoError(t, err)
	require.NotEmpty(t, warning)
	require.Empty(t, sections)
}

func TestWriteLeafletSections_Roundtrip(t *testing.T) {
	doc := sampleDoc()
	newSections := []any{map[string]any{"title": "New", "text": map[string]any{"div": "<div xmlns=\"http://www.w3.org/1999/xhtml\">new</div>"}}}
	require.NoError(t, WriteLeafletSections(doc, newSections))

	got, _, err := GetLeafletSections(doc)
	require.NoError(t, err)
	require.Equal(t, newSections, got)
}

func TestWriteLeafletSections_FallsBackToIndexZero(t *testing.T) {
	doc := Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "Composition",
				"section":      []any{map[string]any{"title": "only"}},
			}},
		},
	}
	newSections := []any{map[string]any{"title": "x"}}
	require.NoError(t, WriteLeafletSections(doc, newSections))
	comp, _ := GetComposition(doc)
	top := comp["section"].([]any)
	sec := top[0].(map[string]any)
	require.Equal(t, newSections, sec["section"])
}

func TestConcatenateLeafletHTML(t *testing.T) {
	sections := []any{
		map[string]any{"text": map[string]any{"div": "<div xmlns=\"http://www.w3.org/1999/xhtml\">a</div>"}},
		map[string]any{"section": []any{
			map[string]any{"text": map[string]any{"div": "<div xmlns=\"http://www.w3.org/1999/xhtml\">b</div>"}},
		}},
	}
	got := ConcatenateLeafletHTML(sections)
	require.Contains(t, got, ">a<")
	require.Contains(t, got, ">b<")
}
