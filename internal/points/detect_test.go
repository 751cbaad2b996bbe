package points

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"validert/internal/document"
	"validert/internal/models"
	"validert/internal/util"
)

func TestDetectTwoPageReport(t *testing.T) {
	text := document.Join([]string{
		"1 Tak\nTaket er tekket med betongstein.",
		"2.1 Våtrom\nFukt i sluk, TG3.\nSide 2 av 2",
	})
	out := Detect(Input{Text: text, SourceFilename: "rapport.pdf", Method: "test"})

	require.Equal(t, models.PayloadVersion, out.Version)
	require.Equal(t, util.SHA256HexString(text), out.Document.DocumentHash)
	require.Equal(t, 2, out.Document.PageCount)
	require.Equal(t, 1, out.Document.Extraction.NoiseDropped)
	require.Len(t, out.Points, 2)

	first, second := out.Points[0], out.Points[1]
	require.Equal(t, "P0001", first.PointKey)
	require.Equal(t, "1", first.NumericID)
	require.Equal(t, models.PointKindPoint, first.Kind)
	require.Equal(t, "Tak", first.Excerpt)
	require.Equal(t, 1, first.PageStart)
	require.Equal(t, 1, first.PageEnd)
	require.Empty(t, first.ConditionCode)

	require.Equal(t, "2.1", second.NativeLabel)
	require.Equal(t, models.PointKindSubpoint, second.Kind)
	require.Equal(t, "TG3", second.ConditionCode)
	require.Equal(t, 2, second.PageStart)
	require.Equal(t, 2, second.PageEnd)
	require.Equal(t, 2, second.OrderInDoc)
	require.Equal(t, "2.1 Våtrom", second.AnchorText)
	require.Equal(t, util.SHA256HexString("2.1 Våtrom\nFukt i sluk, TG3."), second.SpanHash)
}

func TestDetectSpanAcrossPages(t *testing.T) {
	text := document.Join([]string{
		"3 Kjeller\nFuktmerker på vegg.",
		"Fortsatt kjeller, tg2 på drenering.\n4 Loft",
	})
	out := Detect(Input{Text: text})
	require.Len(t, out.Points, 2)
	require.Equal(t, 1, out.Points[0].PageStart)
	require.Equal(t, 2, out.Points[0].PageEnd)
	require.Equal(t, "TG2", out.Points[0].ConditionCode)
	require.Equal(t, 2, out.Points[1].PageStart)
}

func TestDetectExcerptFallbacks(t *testing.T) {
	out := Detect(Input{Text: "5\nTekst under et nummer uten tittel.\n6"})
	require.Len(t, out.Points, 2)
	require.Equal(t, "Tekst under et nummer uten tittel.", out.Points[0].Excerpt)
	require.Equal(t, "Point 6", out.Points[1].Excerpt)
}

func TestDetectNonNumericLabel(t *testing.T) {
	out := Detect(Input{Text: "3.2b Bad\nTGIU på membran."})
	require.Len(t, out.Points, 1)
	require.Empty(t, out.Points[0].NumericID)
	require.Equal(t, "3.2b", out.Points[0].NativeLabel)
	require.Equal(t, "TGIU", out.Points[0].ConditionCode)
}

func TestDetectWithoutHeadings(t *testing.T) {
	out := Detect(Input{Text: "Ingen nummererte overskrifter her."})
	require.NotNil(t, out.Points)
	require.Empty(t, out.Points)

	b, err := json.Marshal(out)
	require.NoError(t, err)
	require.Contains(t, string(b), `"points":[]`)
}

func TestDetectIsDeterministic(t *testing.T) {
	text := document.Join([]string{"1 Tak\nTG1", "2 Vegger\nTG2", "2.1 Kledning\nok"})
	a, err := json.Marshal(Detect(Input{Text: text, SourceFilename: "x.pdf"}))
	require.NoError(t, err)
	b, err := json.Marshal(Detect(Input{Text: text, SourceFilename: "x.pdf"}))
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSpanHashEmpty(t *testing.T) {
	require.Empty(t, SpanHash(""))
	require.Empty(t, SpanHash(" \n "))
	require.Len(t, SpanHash("1 Tak"), 64)
}
