package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoader_LoadRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "intro.md"), "# Intro\n\nHello.")
	writeFile(t, filepath.Join(root, "chapters", "one.MD"), "Chapter one.")
	writeFile(t, filepath.Join(root, "chapters", "notes.txt"), "not markdown")
	writeFile(t, filepath.Join(root, "image.png"), "binary")

	docs, err := NewLoader(nil, false).Load(root)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	assert.Equal(t, filepath.Join(root, "chapters", "one.MD"), docs[0].Path)
	assert.Equal(t, "Chapter one.", docs[0].Content)
	assert.Equal(t, "# Intro\n\nHello.", docs[1].Content)
}

func TestLoader_MultipleExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "a")
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	writeFile(t, filepath.Join(root, "c.csv"), "c")

	docs, err := NewLoader([]string{".md", ".txt", ".csv"}, false).Load(root)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestLoader_MissingRoot(t *testing.T) {
	_, err := NewLoader(nil, false).Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoader_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.md")
	writeFile(t, path, "a")
	_, err := NewLoader(nil, false).Load(path)
	assert.Error(t, err)
}

func TestExtractText_PPTXSlidesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	slides := map[string]string{
		"ppt/slides/slide2.xml":  `<p:sld><a:t>Second</a:t><a:t>slide</a:t></p:sld>`,
		"ppt/slides/slide10.xml": `<p:sld><a:t>Tenth &amp; last</a:t></p:sld>`,
		"ppt/slides/slide1.xml":  `<p:sld><a:t>First</a:t></p:sld>`,
	}
	for name, body := range slides {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	text, err := ExtractText(path, false)
	require.NoError(t, err)
	assert.Equal(t, "First\n\nSecond slide\n\nTenth & last", text)
}

func TestExtractText_Unsupported(t *testing.T) {
	_, err := ExtractText("notes.rtf", false)
	assert.Error(t, err)
}
