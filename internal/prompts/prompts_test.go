package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"validert/internal/util"
)

func TestContextRenderAndHash(t *testing.T) {
	ctx := Context{Sections: []Section{{Name: "A", Text: "regel 1"}, {Name: "B", Text: "regel 2"}}}
	want := "===== A =====\nregel 1\n\n===== B =====\nregel 2"
	require.Equal(t, want, ctx.Render())
	require.Equal(t, util.SHA256HexString(want), ctx.Hash())

	changed := Context{Sections: []Section{{Name: "A", Text: "regel 1"}, {Name: "B", Text: "regel 3"}}}
	require.NotEqual(t, ctx.Hash(), changed.Hash())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02_format.md"), []byte("json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01_rules.txt"), []byte("NS 3600"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("x"), 0o644))

	ctx, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, ctx.Sections, 3)
	require.Equal(t, "SYSTEM", ctx.Sections[0].Name)
	require.Equal(t, Section{Name: "01_RULES", Text: "NS 3600"}, ctx.Sections[1])
	require.Equal(t, "02_FORMAT", ctx.Sections[2].Name)

	_, err = LoadDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestTruncateMiddle(t *testing.T) {
	text := strings.Repeat("a", 60) + strings.Repeat("b", 40) + strings.Repeat("c", 100)
	out := TruncateMiddle(text, 100)
	require.True(t, strings.HasPrefix(out, strings.Repeat("a", 60)+"\n\n"+truncationMarker))
	require.True(t, strings.HasSuffix(out, strings.Repeat("c", 40)))
	require.Equal(t, "kort", TruncateMiddle("kort", 100))
}

func TestBuildUserPrompt(t *testing.T) {
	ctx := Context{Sections: []Section{{Name: "RULES", Text: "regel"}}}
	meta := ReportMeta{ReportSystem: "Verifisert", BuildingYear: 1978, Filename: "r.pdf"}

	full := BuildUserPrompt(ctx, meta, "1 Tak\nTG2", 0, ApproxTokens)
	require.Contains(t, full, "===== RULES =====\nregel")
	require.Contains(t, full, "Byggeår: 1978")
	require.True(t, strings.HasSuffix(full, "1 Tak\nTG2"))

	long := strings.Repeat("x", 4000)
	cut := BuildUserPrompt(ctx, meta, long, 200, ApproxTokens)
	require.Contains(t, cut, truncationMarker)
	require.Less(t, len(cut), len(long))
}
