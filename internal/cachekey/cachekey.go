// Package cachekey implements the Cache Key Builder (C2): a deterministic
// fingerprint of an ePI's sections, and the cache-key/pattern strings the
// cache back-ends (C3/C4) index on.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/epi"
)

// Step is one preprocessing pipeline step. Its canonical signature is
// name[:version][:configHash].
type Step struct {
	Name       string
	Version    string
	ConfigHash string
}

// Signature returns the canonical name[:version][:configHash] form.
func (s Step) Signature() string {
	sig := s.Name
	if s.Version != "" {
		sig += ":" + s.Version
	}
	if s.ConfigHash != "" {
		sig += ":" + s.ConfigHash
	}
	return sig
}

// Fingerprint returns the SHA-256 hex digest of the canonical JSON of the
// Composition's section array with object keys sorted. When the Composition
// is missing, it falls back to the SHA-256 of the whole document, per
// spec.md §3.
func Fingerprint(doc epi.Document) string {
	sections, err := epi.CanonicalSections(doc)
	if err != nil {
		return hash(doc)
	}
	return hash(sections)
}

func hash(v any) string {
	// json.Marshal on a map with string keys already sorts keys
	// lexicographically, and epi.CanonicalSections has already recursively
	// sorted any nested maps, so this production is deterministic.
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte{}
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Key returns the literal cache key string for a prefix of steps[:k].
func Key(schemaVersion, fingerprint string, steps []Step) string {
	sigs := make([]string, len(steps))
	for i, s := range steps {
		sigs[i] = s.Signature()
	}
	return schemaVersion + ":" + fingerprint + ":" + strings.Join(sigs, "|")
}

// Pattern returns the glob used by invalidateByEpi scans: {version}:{fp}:*.
func Pattern(schemaVersion, fingerprint string) string {
	return schemaVersion + ":" + fingerprint + ":*"
}
