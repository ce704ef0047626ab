// Package explain implements the Explanation Builder (C8): a closed
// template table keyed by lens identifier and language, filled from
// IPS-derived condition/allergy lists when a lens doesn't supply its own
// explanation() (spec.md §4.8).
package explain

import (
	"strings"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/ips"
)

// Known lens identifiers and languages the template table covers; anything
// else falls back to "default"/"en" respectively (spec.md §4.8).
const (
	LensPregnancy   = "pregnancy"
	LensConditions  = "conditions"
	LensAllergies   = "allergies"
	LensInteraction = "interaction"
	LensDefault     = "default"
)

var knownLanguages = map[string]bool{"en": true, "es": true, "pt": true, "da": true}

// listTemplate fills from an IPS-derived list: prefix + glue-joined items,
// or prefix + defaultNoun/defaultFiller when the list is empty or IPS
// lookup failed.
type listTemplate struct {
	prefix        string
	glue          string
	defaultNoun   string
	defaultFiller string
}

var staticTemplates = map[string]map[string]string{
	LensPregnancy: {
		"en": "This section has been adapted because you are pregnant.",
		"es": "Esta sección se ha adaptado porque está embarazada.",
		"pt": "Esta secção foi adaptada porque está grávida.",
		"da": "Dette afsnit er blevet tilpasset, fordi du er gravid.",
	},
	LensDefault: {
		"en": "This section has been enhanced for you.",
		"es": "Esta sección ha sido mejorada para usted.",
		"pt": "Esta secção foi melhorada para si.",
		"da": "Dette afsnit er blevet forbedret til dig.",
	},
}

var listTemplates = map[string]map[string]listTemplate{
	LensConditions: {
		"en": {"This section has been adapted considering your condition(s): ", ", ", "condition", "your medical conditions"},
		"es": {"Esta sección se ha adaptado considerando su(s) afección(es): ", ", ", "afección", "sus afecciones médicas"},
		"pt": {"Esta secção foi adaptada considerando a(s) sua(s) condição(ões): ", ", ", "condição", "as suas condições médicas"},
		"da": {"Dette afsnit er blevet tilpasset på baggrund af din(e) tilstand(e): ", ", ", "tilstand", "dine helbredstilstande"},
	},
	LensAllergies: {
		"en": {"This section has been adapted considering your allergies: ", ", ", "allergy", "your known allergies"},
		"es": {"Esta sección se ha adaptado considerando sus alergias: ", ", ", "alergia", "sus alergias conocidas"},
		"pt": {"Esta secção foi adaptada considerando as suas alergias: ", ", ", "alergia", "as suas alergias conhecidas"},
		"da": {"Dette afsnit er blevet tilpasset på baggrund af dine allergier: ", ", ", "allergi", "dine kendte allergier"},
	},
	LensInteraction: {
		"en": {"This section has been adapted considering interactions with: ", ", ", "interaction", "your other medicines"},
		"es": {"Esta sección se ha adaptado considerando interacciones con: ", ", ", "interacción", "sus otros medicamentos"},
		"pt": {"Esta secção foi adaptada considerando interações com: ", ", ", "interação", "os seus outros medicamentos"},
		"da": {"Dette afsnit er blevet tilpasset på baggrund af interaktioner med: ", ", ", "interaktion", "din øvrige medicin"},
	},
}

// Default returns the localized explanation for lensIdentifier/language,
// querying doc (the IPS) for condition/allergy display strings when the
// template needs them. Unknown lens identifiers fall back to "default";
// unknown languages fall back to "en" (spec.md §4.8).
func Default(doc ips.Document, lensIdentifier, language string) string {
	lensIdentifier = normalizeLens(lensIdentifier)
	language = normalizeLanguage(language)

	if lt, ok := listTemplates[lensIdentifier][language]; ok {
		return fillListTemplate(doc, lensIdentifier, lt)
	}
	if tmpl, ok := staticTemplates[lensIdentifier][language]; ok {
		return tmpl
	}
	return staticTemplates[LensDefault][language]
}

func normalizeLens(id string) string {
	switch id {
	case LensPregnancy, LensConditions, LensAllergies, LensInteraction:
		return id
	default:
		return LensDefault
	}
}

func normalizeLanguage(lang string) string {
	if knownLanguages[lang] {
		return lang
	}
	return "en"
}

func fillListTemplate(doc ips.Document, lensIdentifier string, lt listTemplate) string {
	var items []string
	switch lensIdentifier {
	case LensConditions:
		items = ips.ConditionDisplays(doc)
	case LensAllergies, LensInteraction:
		for _, a := range ips.AllergyPairs(doc) {
			if a.CausalAgent != "" {
				items = append(items, a.CausalAgent)
			}
		}
	}
	if len(items) == 0 {
		return lt.prefix + lt.defaultFiller + " (" + lt.defaultNoun + ")."
	}
	return lt.prefix + strings.Join(items, lt.glue) + "."
}
