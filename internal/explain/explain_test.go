package explain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/ips"
)

func TestDefault_StaticTemplate(t *testing.T) {
	require.Equal(t, "This section has been adapted because you are pregnant.", Default(nil, LensPregnancy, "en"))
	require.Equal(t, "Esta sección se ha adaptado porque está embarazada.", Default(nil, LensPregnancy, "es"))
}

func TestDefault_UnknownLensFallsBackToDefault(t *testing.T) {
	require.Equal(t, "This section has been enhanced for you.", Default(nil, "something-unrecognized", "en"))
}

func TestDefault_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	require.Equal(t, "This section has been adapted because you are pregnant.", Default(nil, LensPregnancy, "fr"))
}

func TestDefault_ConditionsListTemplate_WithData(t *testing.T) {
	doc := ips.Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "Condition",
				"code":         map[string]any{"coding": []any{map[string]any{"display": "Hypertension"}}},
			}},
		},
	}
	got := Default(doc, LensConditions, "en")
	require.Equal(t, "This section has been adapted considering your condition(s): Hypertension.", got)
}

func TestDefault_ConditionsListTemplate_NoData(t *testing.T) {
	got := Default(ips.Document{}, LensConditions, "en")
	require.Equal(t, "This section has been adapted considering your condition(s): your medical conditions (condition).", got)
}

func TestDefault_AllergiesListTemplate_WithData(t *testing.T) {
	doc := ips.Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "AllergyIntolerance",
				"code":         map[string]any{"coding": []any{map[string]any{"display": "Penicillin"}}},
			}},
		},
	}
	got := Default(doc, LensAllergies, "en")
	require.Equal(t, "This section has been adapted considering your allergies: Penicillin.", got)
}
