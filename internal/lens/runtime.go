package lens

import (
	"strings"

	"github.com/robertkrimen/otto"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/explain"
	"github.com/Gravitate-Health/focusing-manager-sub000/internal/ips"
)

// Runtime applies compiled lenses to an ePI document (C7). Each call to
// Apply is fully isolated: a fresh otto VM is built per invocation, so no
// lens can mutate another lens's closure state (spec.md §4.7
// "Determinism and isolation").
type Runtime struct {
	Sink ConsoleSink
}

// New builds a Runtime. sink may be nil to discard console output.
func New(sink ConsoleSink) *Runtime {
	return &Runtime{Sink: sink}
}

// Apply runs one lens over doc's leaflet sections (spec.md §4.7 steps 1-6).
// On success doc's leaflet sections, category, and Composition.extension
// are mutated in place. On failure doc is left unchanged ("the document is
// not advanced") and the error carries an errorkind.Kind for the caller to
// record per-lens without aborting the request.
func (rt *Runtime) Apply(l Lens, doc epi.Document, ipsDoc ips.Document, pv map[string]any) error {
	sections, _, err := epi.GetLeafletSections(doc)
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		return errorkind.New(errorkind.EmptyLeaflet, "lens "+l.Identifier+": no leaflet sections")
	}
	if strings.TrimSpace(l.Script) == "" {
		return errorkind.New(errorkind.EmptyScript, "lens "+l.Identifier+": empty script body")
	}

	htmlStr := epi.ConcatenateLeafletHTML(sections)

	vm, err := sandboxVM(doc, map[string]any(ipsDoc), pv, htmlStr, rt.Sink)
	if err != nil {
		return errorkind.New(errorkind.LensCompileFailure, "lens "+l.Identifier+": "+err.Error())
	}

	result, err := runWithTimeout(vm, l.Script, DefaultTimeout)
	if err != nil {
		return errorkind.New(errorkind.LensCompileFailure, "lens "+l.Identifier+": "+err.Error())
	}
	obj := result.Object()
	if obj == nil {
		return errorkind.New(errorkind.LensCompileFailure, "lens "+l.Identifier+": script did not evaluate to an object")
	}

	enhanceFn, err := obj.Get("enhance")
	if err != nil || !enhanceFn.IsFunction() {
		return errorkind.New(errorkind.LensRuntimeFailure, "lens "+l.Identifier+": no enhance() on result object")
	}
	enhancedVal, err := enhanceFn.Call(result)
	if err != nil {
		return errorkind.New(errorkind.LensRuntimeFailure, "lens "+l.Identifier+": enhance() raised: "+err.Error())
	}
	enhancedHTML := enhancedVal.String()

	explanation := rt.explanationFor(obj, result, ipsDoc, l, doc)

	segments, err := Resegment(enhancedHTML)
	if err != nil {
		return err
	}

	newSections := pairSections(sections, segments)
	if err := epi.WriteLeafletSections(doc, newSections); err != nil {
		return err
	}
	if err := epi.SetCategoryCode(doc, epi.CategoryEnhanced); err != nil {
		return err
	}
	return epi.AppendLensProvenance(doc, l.Identifier, explanation)
}

func (rt *Runtime) explanationFor(obj *otto.Object, this otto.Value, ipsDoc ips.Document, l Lens, doc epi.Document) string {
	if explainFn, err := obj.Get("explanation"); err == nil && explainFn.IsFunction() {
		if v, err := explainFn.Call(this); err == nil {
			if s := v.String(); s != "" && !v.IsUndefined() {
				return s
			}
		}
	}
	return explain.Default(ips.Document(ipsDoc), l.Identifier, epi.GetLanguage(doc))
}

// pairSections pairs the i-th re-segmented div with the i-th original
// section, preserving its title/code and synthesizing defaults only when
// missing (spec.md §4.7 step 5).
func pairSections(original []any, segments []Segment) []any {
	out := make([]any, len(segments))
	for i, seg := range segments {
		sec := map[string]any{}
		if i < len(original) {
			if orig, ok := original[i].(map[string]any); ok {
				if title, ok := orig["title"]; ok {
					sec["title"] = title
				}
				if code, ok := orig["code"]; ok {
					sec["code"] = code
				}
			}
		}
		if _, ok := sec["title"]; !ok {
			sec["title"] = sectionTitle(i)
		}
		if _, ok := sec["code"]; !ok {
			sec["code"] = map[string]any{
				"coding": []any{map[string]any{
					"system": "http://hl7.org/fhir/CodeSystem/section-code",
					"code":   sectionTitle(i),
				}},
			}
		}
		sec["text"] = map[string]any{"status": "generated", "div": seg.HTML}
		out[i] = sec
	}
	return out
}
