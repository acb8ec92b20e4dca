// Package chunker flattens tabular rows into text and splits text into
// overlapping, boundary-aware chunks for embedding.
package chunker

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

const (
	fieldSeparator = " | "
	previewLength  = 100
)

// Chunk is one bounded piece of a text. Start and End are rune offsets of the
// untrimmed window in the source text.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

// FlattenRow renders "column: value" for every non-nil value and joins them
// with " | ". A row of only NULLs flattens to "".
func FlattenRow(columns []string, values []any) string {
	parts := make([]string, 0, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(columns) {
			name = columns[i]
		}
		parts = append(parts, name+": "+formatValue(v))
	}
	return strings.Join(parts, fieldSeparator)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Split yields chunks of at most size runes. A window that ends before the
// text does is cut after the last '.' or '\n' in it, provided that boundary
// lies past the window midpoint; otherwise it is cut at size. The next window
// starts overlap runes before the cut, but always at least one rune later.
//
// The sequence is lazy and can be ranged over any number of times.
func Split(text string, size, overlap int) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		if size <= 0 {
			return
		}
		runes := []rune(text)
		n := len(runes)
		index := 0
		for start := 0; start < n; {
			end := min(start+size, n)
			if end < n {
				if b := lastBoundary(runes, start, end); b > start+size/2 {
					end = b + 1
				}
			}

			if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
				if !yield(Chunk{Index: index, Text: chunk, Start: start, End: end}) {
					return
				}
				index++
			}

			if end >= n {
				return
			}
			start = max(end-overlap, start+1)
		}
	}
}

// lastBoundary returns the index of the last '.' or '\n' in runes[start:end],
// or -1.
func lastBoundary(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '.' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}

// Collect materializes Split.
func Collect(text string, size, overlap int) []Chunk {
	var out []Chunk
	for c := range Split(text, size, overlap) {
		out = append(out, c)
	}
	return out
}

// Preview returns at most n runes of text, suffixed with "..." when truncated.
func Preview(text string, n int) string {
	if n <= 0 {
		n = previewLength
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
