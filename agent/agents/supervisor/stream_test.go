package supervisor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(text string, n int) []string {
	var out []string
	for prefix := range StreamReply(text, n) {
		out = append(out, prefix)
	}
	return out
}

func TestStreamReplyYieldsGrowingPrefixes(t *testing.T) {
	t.Parallel()

	text := "Deal 10 is won."
	for _, n := range []int{1, 3, 4, 100} {
		prefixes := collect(text, n)
		if assert.NotEmpty(t, prefixes) {
			assert.Equal(t, text, prefixes[len(prefixes)-1])
		}
		for i := 1; i < len(prefixes); i++ {
			assert.True(t, strings.HasPrefix(prefixes[i], prefixes[i-1]))
			assert.Greater(t, len(prefixes[i]), len(prefixes[i-1]))
		}
	}
	assert.Len(t, collect(text, 4), 4)
}

func TestStreamReplyKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	prefixes := collect("héllo ✓", 1)
	assert.Equal(t, []string{"h", "hé", "hél", "héll", "héllo", "héllo ", "héllo ✓"}, prefixes)
}

func TestStreamReplyEmptyAndEarlyStop(t *testing.T) {
	t.Parallel()

	assert.Empty(t, collect("", 2))
	assert.Equal(t, []string{"a"}, collect("abc", 0)[:1])

	var seen []string
	for prefix := range StreamReply("abcdef", 2) {
		seen = append(seen, prefix)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"ab", "abcd"}, seen)
}
