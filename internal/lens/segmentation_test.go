package lens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResegment_SplitsTopLevelXHTMLDivs(t *testing.T) {
	html := `<div xmlns="http://www.w3.org/1999/xhtml"><p>first</p></div>` +
		`<div xmlns="http://www.w3.org/1999/xhtml"><p>second</p></div>`

	segments, err := Resegment(html)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	require.Contains(t, segments[0].HTML, "first")
	require.Contains(t, segments[1].HTML, "second")
}

func TestResegment_DoesNotRecurseIntoMatchedDiv(t *testing.T) {
	html := `<div xmlns="http://www.w3.org/1999/xhtml"><div xmlns="http://www.w3.org/1999/xhtml">nested</div></div>`

	segments, err := Resegment(html)
	require.NoError(t, err)
	require.Len(t, segments, 1)
}

func TestResegment_NoMatchesIsSegmentationFailure(t *testing.T) {
	_, err := Resegment(`<p>no namespaced divs here</p>`)
	require.Error(t, err)
}

func TestSectionTitle_SynthesizesOneIndexed(t *testing.T) {
	require.Equal(t, "Section 1", sectionTitle(0))
	require.Equal(t, "Section 3", sectionTitle(2))
}
