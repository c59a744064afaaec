package parser

import (
	"strings"
	"unicode/utf8"

	"docqa/internal/models"

	"github.com/rs/zerolog/log"
)

const (
	DefaultChunkSize    = 500 // characters
	DefaultChunkOverlap = 50  // characters

	paragraphSeparator = "\n\n"
)

// SplitDocuments splits every document into paragraph-aligned chunks.
//
// Paragraphs (separated by a blank line) are accumulated until adding the
// next one would reach chunkSize characters. The buffer is then emitted and
// the next buffer starts with the last chunkOverlap characters of the
// emitted one. A single paragraph longer than chunkSize is kept whole.
// Overlap never crosses a document boundary.
func SplitDocuments(docs []models.Document, chunkSize, chunkOverlap int) []models.Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}

	var chunks []models.Chunk
	for _, doc := range docs {
		chunks = append(chunks, splitDocument(doc, chunkSize, chunkOverlap)...)
	}

	log.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Split documents into chunks")
	return chunks
}

func splitDocument(doc models.Document, chunkSize, chunkOverlap int) []models.Chunk {
	var chunks []models.Chunk
	emit := func(buf string) {
		if text := strings.TrimSpace(buf); text != "" {
			chunks = append(chunks, models.Chunk{Text: text, Source: doc.Path})
		}
	}

	var buf string
	bufLen := 0
	for _, para := range strings.Split(doc.Content, paragraphSeparator) {
		paraLen := utf8.RuneCountInString(para)
		if bufLen+paraLen < chunkSize {
			buf += para + paragraphSeparator
			bufLen += paraLen + len(paragraphSeparator)
			continue
		}

		emit(buf)
		seed := tail(buf, chunkOverlap)
		buf = seed + para + paragraphSeparator
		bufLen = utf8.RuneCountInString(seed) + paraLen + len(paragraphSeparator)
	}
	emit(buf)

	return chunks
}

// tail returns the last n characters of s, or s itself when it is not longer.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := utf8.RuneCountInString(s)
	if count <= n {
		return s
	}
	i := 0
	for skip := count - n; skip > 0; skip-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[i:]
}
