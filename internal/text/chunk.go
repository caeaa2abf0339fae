package text

import "strings"

// DefaultChunkLimit is the largest number of characters a single speech
// request accepts.
const DefaultChunkLimit = 2500

// Defaults for ChunkOptions.
const (
	DefaultLookback = 500
	DefaultBreaks   = ".?!\n"
)

// ChunkOptions tunes where Chunk prefers to cut.
type ChunkOptions struct {
	// Lookback is how far before the hard limit a break character may sit
	// and still be used as the cut point.
	Lookback int
	// Breaks lists the characters that end a natural segment.
	Breaks string
}

// DefaultChunkOptions returns a 500 character lookback over sentence
// terminators and newlines.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Lookback: DefaultLookback, Breaks: DefaultBreaks}
}

// Chunk splits text into pieces of at most limit characters, preferring to cut
// right after a sentence terminator or newline. It uses DefaultChunkOptions.
func Chunk(text string, limit int) []string {
	return ChunkWith(text, limit, DefaultChunkOptions())
}

// ChunkWith is Chunk with explicit options.
//
// Lengths are counted in runes. Text that already fits is returned as a single
// untouched element; otherwise every emitted chunk is whitespace-trimmed and
// empty chunks are dropped. When no break is found inside the lookback window
// the cut falls exactly at the limit, even mid-word.
func ChunkWith(text string, limit int, opts ChunkOptions) []string {
	if text == "" {
		return []string{}
	}

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	breaks := opts.Breaks
	if breaks == "" {
		breaks = DefaultBreaks
	}

	var chunks []string
	for cursor := 0; cursor < len(runes); {
		end := min(cursor+limit, len(runes))

		if end < len(runes) {
			if pos := lastBreak(runes, cursor, end, breaks); pos > cursor && pos > end-opts.Lookback {
				end = pos + 1
			}
		}

		if piece := strings.TrimSpace(string(runes[cursor:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		cursor = end
	}

	if chunks == nil {
		return []string{}
	}

	return chunks
}

// lastBreak returns the index of the last break rune in runes[cursor:end], or
// -1. The rune at end itself is excluded so a cut never exceeds the limit.
func lastBreak(runes []rune, cursor, end int, breaks string) int {
	for i := end - 1; i >= cursor; i-- {
		if strings.ContainsRune(breaks, runes[i]) {
			return i
		}
	}

	return -1
}
