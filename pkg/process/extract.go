package process

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"rag-crawl/pkg/utils"
)

// ExtractedFile is the result of preparing an uploaded file for ingestion
type ExtractedFile struct {
	Text       string // Cleaned text for hashing and chunking
	SourceType string // File-extension tag stored on the document (txt, md, html)
	Markdown   bool   // True when Text is markdown and heading-aware splitting applies
}

// ExtractFileText converts uploaded file content into ingestible text based on
// the filename extension. HTML is converted to markdown so headings survive
// into chunk metadata; markdown and plain text pass through.
func ExtractFileText(filename string, content []byte) (*ExtractedFile, error) {
	ext := strings.ToLower(path.Ext(filename))

	switch ext {
	case ".md", ".markdown":
		return &ExtractedFile{
			Text:       string(content),
			SourceType: "md",
			Markdown:   true,
		}, nil

	case ".html", ".htm":
		markdown, err := htmlToMarkdown(content)
		if err != nil {
			return nil, err
		}
		return &ExtractedFile{
			Text:       markdown,
			SourceType: "html",
			Markdown:   true,
		}, nil

	case ".txt", ".text", "":
		return &ExtractedFile{
			Text:       string(content),
			SourceType: "txt",
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedFile, ext)
	}
}

// htmlToMarkdown strips scripts/styles and converts the remaining HTML body to
// markdown
func htmlToMarkdown(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	html, err := goquery.OuterHtml(body)
	if err != nil {
		return "", fmt.Errorf("serializing HTML: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
