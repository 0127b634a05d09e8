// Package preview renders downloaded document binaries as sanitized HTML for
// the results page. Only the formats the upload surface accepts are handled;
// anything else reports ErrUnsupported and the page shows a download-only
// notice.
package preview

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var ErrUnsupported = errors.New("preview not available for this format")

// Block is one paragraph-level unit of an extracted document. Level 0 is
// body text, 1-6 are heading levels.
type Block struct {
	Level int
	Text  string
}

// Doc is the structural extraction of a document, enough for preview
// rendering and the results-page change summary.
type Doc struct {
	Title  string
	Blocks []Block
}

// Headings counts the heading blocks.
func (d Doc) Headings() int {
	n := 0
	for _, b := range d.Blocks {
		if b.Level > 0 {
			n++
		}
	}
	return n
}

// Paragraphs counts the body blocks.
func (d Doc) Paragraphs() int {
	n := 0
	for _, b := range d.Blocks {
		if b.Level == 0 {
			n++
		}
	}
	return n
}

// Extract parses a document binary by file extension.
func Extract(name string, data []byte) (Doc, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".docx":
		return extractDocx(data)
	case ".txt":
		return extractText(data)
	default:
		return Doc{}, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(name))
	}
}

// extractDocx reads word/document.xml out of the ZIP container and walks its
// paragraph elements, using the pStyle attribute to detect headings.
func extractDocx(data []byte) (Doc, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Doc{}, fmt.Errorf("open docx container: %w", err)
	}

	var docFile *zip.File
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return Doc{}, errors.New("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return Doc{}, fmt.Errorf("open document.xml: %w", err)
	}
	defer func() { _ = rc.Close() }()

	decoder := xml.NewDecoder(rc)
	var doc Doc
	var currentText strings.Builder
	var inParagraph bool
	var paragraphStyle string

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "p":
				inParagraph = true
				currentText.Reset()
				paragraphStyle = ""
			case t.Name.Local == "pStyle" && inParagraph:
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						paragraphStyle = attr.Value
					}
				}
			}

		case xml.CharData:
			if inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			if t.Name.Local == "p" && inParagraph {
				inParagraph = false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					continue
				}
				level := headingLevel(paragraphStyle)
				if level > 0 && doc.Title == "" {
					doc.Title = text
				}
				doc.Blocks = append(doc.Blocks, Block{Level: level, Text: text})
			}
		}
	}
	return doc, nil
}

// headingLevel maps a Word paragraph style name to a heading level.
// "Heading1".."Heading6" and the Title/Subtitle styles count; everything
// else is body text.
func headingLevel(style string) int {
	lower := strings.ToLower(style)
	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}
	if strings.HasPrefix(lower, "heading") {
		rest := lower[len("heading"):]
		if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}

func extractText(data []byte) (Doc, error) {
	if !utf8.Valid(data) {
		return Doc{}, errors.New("text body is not valid UTF-8")
	}
	var doc Doc
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{Text: line})
	}
	return doc, nil
}
