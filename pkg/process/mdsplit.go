package process

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// MarkdownSplitConfig holds configuration for markdown-aware splitting of
// uploaded file documents. Sizes are in tokens when the tokenizer is
// initialized, characters otherwise.
type MarkdownSplitConfig struct {
	MaxChunkSize int
	ChunkOverlap int
}

// SplitMarkdown splits markdown into chunks along header boundaries, falling
// back to recursive character splitting for sections that still exceed the
// budget. Used for file documents; the web crawl path uses SplitChunks.
func SplitMarkdown(markdown string, cfg MarkdownSplitConfig) ([]string, error) {
	if markdown == "" {
		return nil, nil
	}

	lenFunc := func(s string) int {
		if n := CountTokens(s); n >= 0 {
			return n
		}
		return len(s)
	}

	recursiveSplitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		textsplitter.WithLenFunc(lenFunc),
	)

	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithHeadingHierarchy(true),
		textsplitter.WithChunkSize(cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		textsplitter.WithSecondSplitter(recursiveSplitter),
		textsplitter.WithLenFunc(lenFunc),
	)

	parts, err := splitter.SplitText(markdown)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, part)
	}
	return chunks, nil
}
