package service

import "strings"

// ChunkConfig controls chunking for knowledge embeddings.
type ChunkConfig struct {
	MaxChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1200,
		Overlap:  200,
	}
}

// Chunk splits text into overlapping fixed-size windows. Overlap is clamped
// to half the window so every step makes forward progress; every character of
// the input appears in at least one segment.
func Chunk(text string, maxChars, overlap int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if maxChars <= 0 {
		cfg := DefaultChunkConfig()
		maxChars, overlap = cfg.MaxChars, cfg.Overlap
	}

	runes := []rune(clean)
	if len(runes) <= maxChars {
		return []string{clean}
	}

	if overlap < 0 {
		overlap = 0
	}
	if overlap > maxChars/2 {
		overlap = maxChars / 2
	}
	step := maxChars - overlap

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + maxChars
		if end >= len(runes) {
			if seg := strings.TrimSpace(string(runes[start:])); seg != "" {
				chunks = append(chunks, seg)
			}
			break
		}
		if seg := strings.TrimSpace(string(runes[start:end])); seg != "" {
			chunks = append(chunks, seg)
		}
	}

	return chunks
}

func chunkWithConfig(text string, cfg ChunkConfig) []string {
	return Chunk(text, cfg.MaxChars, cfg.Overlap)
}
