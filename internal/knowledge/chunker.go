package knowledge

import "strings"

// ChunkText splits text into contiguous, non-overlapping windows of at most
// maxLen characters (runes), taken in order from the start. Windows that are
// empty or whitespace-only are dropped; all other windows are kept verbatim,
// so concatenating the chunks reconstructs the source text except for
// dropped whitespace-only windows.
//
// The split is not sentence- or word-boundary aware. That keeps the chunker
// a trivial pure function at the cost of occasionally cutting a word in
// half; the embedding model tolerates this.
func ChunkText(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultChunkSize
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+maxLen-1)/maxLen)

	for start := 0; start < len(runes); start += maxLen {
		end := start + maxLen
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		chunks = append(chunks, window)
	}

	return chunks
}

// DefaultChunkSize is the chunk width used when the caller does not
// configure one.
const DefaultChunkSize = 900
