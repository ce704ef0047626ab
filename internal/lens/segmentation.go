package lens

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Gravitate-Health/focusing-manager-sub000/internal/errorkind"
)

const xhtmlNamespace = "http://www.w3.org/1999/xhtml"

// Segment is one re-segmented div rendered back to HTML; pairSections pairs
// it with the original section it replaces.
type Segment struct {
	HTML string
}

// Resegment re-parses enhanced xhtml and selects every top-level
// div[xmlns="http://www.w3.org/1999/xhtml"], per spec.md §4.7 step 5. A
// script that unwraps these divs silently loses sections — spec.md §9 open
// question 2 — this runtime does not guard against that; it simply returns
// fewer segments than the caller has original sections to pair them with.
func Resegment(enhancedHTML string) ([]Segment, error) {
	nodes, err := html.ParseFragment(strings.NewReader(enhancedHTML), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, errorkind.New(errorkind.SegmentationFailure, err.Error())
	}

	var segments []Segment
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasXHTMLNamespace(n) {
			var buf bytes.Buffer
			if renderErr := html.Render(&buf, n); renderErr == nil {
				segments = append(segments, Segment{HTML: buf.String()})
			}
			return // don't recurse into a matched div's children for more matches
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	if len(segments) == 0 {
		return nil, errorkind.New(errorkind.SegmentationFailure, "no div[xmlns] sections found in enhanced xhtml")
	}
	return segments, nil
}

func hasXHTMLNamespace(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "xmlns" && attr.Val == xhtmlNamespace {
			return true
		}
	}
	return false
}

// sectionTitle synthesizes "Section {i+1}" when the original section had no
// title (spec.md §4.7 step 5).
func sectionTitle(i int) string {
	return fmt.Sprintf("Section %d", i+1)
}
