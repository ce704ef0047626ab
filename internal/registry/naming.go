package registry

import (
	"fmt"
	"net/url"
	"sort"
)

// hostOf returns the host component of rawURL with any port stripped, or
// rawURL unchanged if it does not parse as a URL with a host.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}

// assignNames builds the {serviceName -> baseUrl} map for an ordered list of
// base URLs, deriving each name from hostOf and suffixing -2, -3, … on
// collision in insertion order (spec.md §4.5 "Naming").
func assignNames(urls []string) map[string]string {
	names := make(map[string]string, len(urls))
	seen := make(map[string]int)
	for _, raw := range urls {
		base := hostOf(raw)
		seen[base]++
		name := base
		if n := seen[base]; n > 1 {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		names[name] = raw
	}
	return names
}

// orderedNames returns the keys of names in deterministic (sorted) order for
// list endpoints; the underlying map has no stable iteration order of its
// own.
func orderedNames(names map[string]string) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
