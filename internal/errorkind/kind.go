// Package errorkind names the error taxonomy shared across components, so
// the orchestrator (C9/C10) can be the sole translator from internal error
// values to HTTP status codes without components needing to know about HTTP.
package errorkind

// Kind is a closed enum of the surfaced error values from spec.md §7. It is
// a value, not a Go error type hierarchy: components attach a Kind to a
// StageError or to a wrapped error via Is, and the orchestrator switches on
// it to decide status codes and warning vs. failure handling.
type Kind string

const (
	// RequestMalformed: missing/invalid request parameters => 400.
	RequestMalformed Kind = "RequestMalformed"
	// UpstreamNotFound: identifier not resolvable to a document => 404.
	UpstreamNotFound Kind = "UpstreamNotFound"
	// UpstreamUnavailable: connect/timeout/5xx from preprocessor, selector, or FHIR.
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	// DiscoveryFailure: cluster/runtime query failed.
	DiscoveryFailure Kind = "DiscoveryFailure"
	// UnknownService: requested name not in registry even after a refresh.
	UnknownService Kind = "UnknownService"
	// LensCompileFailure: lens script body failed to compile.
	LensCompileFailure Kind = "LensCompileFailure"
	// LensRuntimeFailure: lens raised during enhance()/explanation().
	LensRuntimeFailure Kind = "LensRuntimeFailure"
	// LensDecodeFailure: lens content[0].data failed to base64-decode.
	LensDecodeFailure Kind = "LensDecodeFailure"
	// EmptyLeaflet: no leaflet sections to run a lens over.
	EmptyLeaflet Kind = "EmptyLeaflet"
	// EmptyScript: lens body decoded to an empty string.
	EmptyScript Kind = "EmptyScript"
	// SegmentationFailure: enhanced xhtml could not be re-segmented into sections.
	SegmentationFailure Kind = "SegmentationFailure"
	// CacheFailure: any back-end error; treated as a miss, never fatal.
	CacheFailure Kind = "CacheFailure"
	// TemplatingFailure: HTML rendering failure => 500 with JSON envelope.
	TemplatingFailure Kind = "TemplatingFailure"
	// Internal: unrecoverable internal error not otherwise classified.
	Internal Kind = "Internal"
)

// StageError records a non-fatal error produced by one stage of a request
// (a preprocessor step or a lens application). It is collected into the
// per-request warning list rather than aborting the request.
type StageError struct {
	Stage  string `json:"stage"`
	Code   Kind   `json:"code"`
	Detail string `json:"detail"`
}

func (e StageError) Error() string {
	return string(e.Code) + ": " + e.Stage + ": " + e.Detail
}

// Error wraps a Kind as a standard error, for components that raise rather
// than collect (contract-violation errors, or orchestrator-level failures
// that do set the HTTP status).
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Is lets errors.Is(err, errorkind.New(Kind, "")) match on Kind alone when
// callers only care about the classification, not the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
