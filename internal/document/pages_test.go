package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinSplitRoundTrip(t *testing.T) {
	in := []string{"1 Tak\nTaket er fra 1998.", "", "2.1 Våtrom\nTG3 avvik."}
	pages := Split(Join(in))
	require.Len(t, pages, 3)
	for i, p := range pages {
		require.Equal(t, i+1, p.Number)
		require.Equal(t, in[i], p.Text)
	}
}

func TestSplitFormFeeds(t *testing.T) {
	pages := Split("\fførste side\r\nlinje 2\fandre side\f")
	require.Len(t, pages, 2)
	require.Equal(t, Page{Number: 1, Text: "første side\nlinje 2"}, pages[0])
	require.Equal(t, Page{Number: 2, Text: "andre side"}, pages[1])
}

func TestSplitMarkerNumbersAndCase(t *testing.T) {
	pages := Split("==== page 4 ====\nfire\n== PAGE 7 ==\nsju")
	require.Len(t, pages, 2)
	require.Equal(t, 4, pages[0].Number)
	require.Equal(t, 7, pages[1].Number)
}

func TestSplitWithoutBoundaries(t *testing.T) {
	pages := Split("bare tekst\nuten sider")
	require.Equal(t, []Page{{Number: 1, Text: "bare tekst\nuten sider"}}, pages)
	require.Nil(t, Split("  \n "))
}
