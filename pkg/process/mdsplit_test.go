package process

import (
	"strings"
	"testing"
)

func TestSplitMarkdown_Empty(t *testing.T) {
	chunks, err := SplitMarkdown("", MarkdownSplitConfig{MaxChunkSize: 512, ChunkOverlap: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestSplitMarkdown_SmallDocument(t *testing.T) {
	markdown := "# Hello\n\nThis is a small document."
	chunks, err := SplitMarkdown(markdown, MarkdownSplitConfig{MaxChunkSize: 512, ChunkOverlap: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for small document, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "small document") {
		t.Errorf("content missing from chunk: %q", chunks[0])
	}
}

func TestSplitMarkdown_SplitsOnHeadings(t *testing.T) {
	resetTokenizer() // Length by characters keeps the budget arithmetic simple

	var sb strings.Builder
	sb.WriteString("# Title\n\n")
	for i := 0; i < 3; i++ {
		sb.WriteString("## Section\n\n")
		sb.WriteString(strings.Repeat("Some sentence with a bit of length to it. ", 5))
		sb.WriteString("\n\n")
	}

	chunks, err := SplitMarkdown(sb.String(), MarkdownSplitConfig{MaxChunkSize: 200, ChunkOverlap: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Errorf("expected heading-based splits, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}
