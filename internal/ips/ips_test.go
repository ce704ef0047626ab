package ips

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ipsDoc() Document {
	return Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "Patient",
				"identifier":   []any{map[string]any{"value": "patient-123"}},
			}},
			map[string]any{"resource": map[string]any{
				"resourceType": "Condition",
				"code": map[string]any{
					"coding": []any{map[string]any{"display": "Gestational diabetes"}},
				},
			}},
			map[string]any{"resource": map[string]any{
				"resourceType": "AllergyIntolerance",
				"type":         "allergy",
				"code": map[string]any{
					"coding": []any{map[string]any{"display": "Penicillin"}},
				},
			}},
		},
	}
}

func TestPatientIdentifier(t *testing.T) {
	require.Equal(t, "patient-123", PatientIdentifier(ipsDoc()))
}

func TestPatientIdentifier_Absent(t *testing.T) {
	require.Equal(t, "", PatientIdentifier(Document{}))
}

func TestConditionDisplays(t *testing.T) {
	require.Equal(t, []string{"Gestational diabetes"}, ConditionDisplays(ipsDoc()))
}

func TestAllergyPairs(t *testing.T) {
	pairs := AllergyPairs(ipsDoc())
	require.Equal(t, []Allergy{{Type: "allergy", CausalAgent: "Penicillin"}}, pairs)
}

func TestAllergyPairs_FallsBackToCodeText(t *testing.T) {
	doc := Document{
		"entry": []any{
			map[string]any{"resource": map[string]any{
				"resourceType": "AllergyIntolerance",
				"type":         "intolerance",
				"code":         map[string]any{"text": "Shellfish"},
			}},
		},
	}
	require.Equal(t, []Allergy{{Type: "intolerance", CausalAgent: "Shellfish"}}, AllergyPairs(doc))
}
