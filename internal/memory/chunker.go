package memory

import "strings"

// DefaultChunkSize is the target chunk length in runes. Chunks break on
// turn boundaries, so actual sizes vary.
const DefaultChunkSize = 1500

// ChunkTranscript slices a conversation into pieces of at most maxRunes,
// preferring turn boundaries. System turns are dropped: the prompt is not
// the user's memory. A single oversized turn is hard-split.
func ChunkTranscript(lines []TranscriptLine, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultChunkSize
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	flush := func() {
		if bufLen > 0 {
			chunks = append(chunks, strings.TrimRight(buf.String(), "\n"))
			buf.Reset()
			bufLen = 0
		}
	}

	for _, line := range lines {
		if line.Role == "system" {
			continue
		}
		text := line.Role + ": " + strings.TrimSpace(line.Content)

		for _, part := range splitRunes(text, maxRunes) {
			n := len([]rune(part))
			if bufLen > 0 && bufLen+n+1 > maxRunes {
				flush()
			}
			buf.WriteString(part)
			buf.WriteByte('\n')
			bufLen += n + 1
		}
	}
	flush()

	return chunks
}

func splitRunes(s string, max int) []string {
	runes := []rune(s)
	if len(runes) <= max {
		return []string{s}
	}
	var parts []string
	for len(runes) > max {
		parts = append(parts, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
