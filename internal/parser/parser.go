package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// ExtractText returns the plain text content of a supported file. Pages,
// slides and sheets are separated by a blank line so each one starts a new
// paragraph for the chunker.
func ExtractText(filePath string, markdownPlainText bool) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".md", ".markdown":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		if markdownPlainText {
			return MarkdownToPlainText(data)
		}
		return string(data), nil
	case ".txt":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".xlsm", ".xltx", ".xltm":
		return parseWorkbook(filePath)
	default:
		return "", fmt.Errorf("unsupported file format: %s", ext)
	}
}

// SupportedExtension reports whether ExtractText can read files with ext.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".txt", ".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	}
	return false
}

func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return joinParagraphs(pages), nil
}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
)

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = docxParagraphEnd.ReplaceAllString(content, paragraphSeparator)
	content = html.UnescapeString(xmlTag.ReplaceAllString(content, ""))

	var paragraphs []string
	for _, p := range strings.Split(content, paragraphSeparator) {
		paragraphs = append(paragraphs, strings.TrimSpace(p))
	}
	return joinParagraphs(paragraphs), nil
}

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var slides []*zip.File
	for _, file := range f.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file)
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slideNumber(slides[i].Name) < slideNumber(slides[j].Name) })

	var texts []string
	for _, file := range slides {
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		texts = append(texts, strings.TrimSpace(extractTextFromXML(string(data))))
	}
	return joinParagraphs(texts), nil
}

func slideNumber(name string) int {
	var n int
	fmt.Sscanf(strings.TrimPrefix(name, "ppt/slides/slide"), "%d", &n)
	return n
}

func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var sheets []string
	for _, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			text.WriteString(strings.Join(cells, "\t") + "\n")
		}
		sheets = append(sheets, strings.TrimSpace(text.String()))
	}
	return joinParagraphs(sheets), nil
}

// parseWorkbook reads macro-enabled workbooks and templates through excelize.
func parseWorkbook(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sheets []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t") + "\n")
		}
		sheets = append(sheets, strings.TrimSpace(text.String()))
	}
	return joinParagraphs(sheets), nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(html.UnescapeString(part[:endIdx]) + " ")
		}
	}
	return text.String()
}

func joinParagraphs(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, paragraphSeparator)
}
