package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docqa/internal/models"

	"github.com/rs/zerolog/log"
)

// Loader reads every file below a root directory whose extension is listed.
type Loader struct {
	Extensions        []string
	MarkdownPlainText bool
}

// NewLoader returns a loader for the given extensions (".md" when empty).
func NewLoader(extensions []string, markdownPlainText bool) *Loader {
	if len(extensions) == 0 {
		extensions = []string{".md"}
	}
	return &Loader{Extensions: extensions, MarkdownPlainText: markdownPlainText}
}

// Load walks root recursively. Order follows the directory walk and is not
// part of the contract.
func (l *Loader) Load(root string) ([]models.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var docs []models.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !l.Matches(path) {
			return nil
		}
		content, err := ExtractText(path, l.MarkdownPlainText)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, models.Document{Path: path, Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("root", root).Int("documents", len(docs)).Msg("Loaded documents")
	return docs, nil
}

// Matches reports whether Load would read path.
func (l *Loader) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range l.Extensions {
		if ext == want {
			return SupportedExtension(ext)
		}
	}
	return false
}
