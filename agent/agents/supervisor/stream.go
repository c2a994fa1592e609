package supervisor

import (
	"iter"
	"unicode/utf8"
)

// StreamReply yields growing prefixes of text, n runes longer each time. The
// last prefix is text itself. An empty text yields nothing.
func StreamReply(text string, n int) iter.Seq[string] {
	if n <= 0 {
		n = 1
	}
	return func(yield func(string) bool) {
		end := 0
		for end < len(text) {
			for i := 0; i < n && end < len(text); i++ {
				_, size := utf8.DecodeRuneInString(text[end:])
				end += size
			}
			if !yield(text[:end]) {
				return
			}
		}
	}
}
