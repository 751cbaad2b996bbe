package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	got, err := SafeJoin(root, "../../etc/tilstand.pdf")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "tilstand.pdf"), got)

	got, err = SafeJoin(root, `C:\uploads\rapport.pdf`)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "rapport.pdf"), got)

	for _, bad := range []string{"", "..", "/", " "} {
		_, err := SafeJoin(root, bad)
		require.ErrorIs(t, err, ErrUnsafePath, "name %q", bad)
	}
}

func TestAtomicWriters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	require.NoError(t, WriteTextAtomic(filepath.Join(dir, "pages.txt"), "=== PAGE 1 ===\nTak\n"))
	b, err := os.ReadFile(filepath.Join(dir, "pages.txt"))
	require.NoError(t, err)
	require.Equal(t, "=== PAGE 1 ===\nTak\n", string(b))

	require.NoError(t, WriteJSONAtomic(filepath.Join(dir, "score.json"), map[string]int{"score_total": 88}))
	b, err = os.ReadFile(filepath.Join(dir, "score.json"))
	require.NoError(t, err)
	require.Contains(t, string(b), `"score_total": 88`)

	type row struct {
		File  string `json:"file"`
		Score int    `json:"score"`
	}
	require.NoError(t, WriteJSONLinesAtomic(filepath.Join(dir, "batch.jsonl"), []row{{"a.txt", 90}, {"b.txt", 70}}))
	b, err = os.ReadFile(filepath.Join(dir, "batch.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Equal(t, []string{`{"file":"a.txt","score":90}`, `{"file":"b.txt","score":70}`}, lines)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}
