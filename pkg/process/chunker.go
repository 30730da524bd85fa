package process

import (
	"fmt"
	"strings"

	"rag-crawl/pkg/utils"
)

// sentence-ending characters that make acceptable chunk boundaries
func isBreakChar(b byte) bool {
	return b == '.' || b == '!' || b == '?' || b == '\n'
}

// SplitChunks splits text into overlapping, boundary-aware chunks.
// Pure function: finite, restartable, no residual state.
//
// When a candidate cut at cursor+chunkSize falls mid-text, the split point is
// moved back to just after the nearest sentence-ending punctuation within the
// back half of the window, so chunks avoid breaking mid-sentence when a
// reasonable boundary exists. Consecutive chunks overlap by chunkOverlap
// characters. The backward scan can find no boundary, in which case the full
// window is used.
//
// chunkOverlap >= chunkSize would stall the cursor; that is a configuration
// invariant violation and returns an error.
func SplitChunks(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", utils.ErrConfigValidation, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", utils.ErrConfigValidation, chunkOverlap, chunkSize)
	}

	if len(text) <= chunkSize {
		return []string{text}, nil
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + chunkSize

		if end < len(text) {
			// Search backward for a sentence boundary, down to mid-window
			floor := start + chunkSize/2
			for i := end; i > floor; i-- {
				if isBreakChar(text[i]) {
					end = i + 1
					break
				}
			}
		} else {
			end = len(text)
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// A boundary cut into the back half of the window can put
		// end-chunkOverlap at or before start; the cursor must always advance
		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}
