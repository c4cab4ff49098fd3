package segment

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_NoSeparatorReturnsInput(t *testing.T) {
	inputs := []string{
		"Hi there!",
		"one line\nsecond line\nthird line",
		strings.Repeat("x", 1000),
	}
	for _, in := range inputs {
		got := Split(in, 320)
		require.Len(t, got, 1)
		assert.Equal(t, in, got[0])
	}
}

func TestSplit_OversizedParagraphIsNotCut(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := Split(long, 320)
	require.Len(t, got, 1)
	assert.Equal(t, long, got[0])

	// 超长段落夹在中间时也保持完整
	text := "short\n\n" + long + "\n\nend"
	got = Split(text, 320)
	assert.Equal(t, []string{"short", long, "end"}, got)
}

func TestSplit_EmptyInput(t *testing.T) {
	assert.Equal(t, []string{""}, Split("", 320))
}

func TestSplit_PacksParagraphs(t *testing.T) {
	text := "aaaa\n\nbbbb\n\ncccc"
	// "aaaa\n\nbbbb" is exactly 10
	assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc"}, Split(text, 10))
	assert.Equal(t, []string{"aaaa", "bbbb", "cccc"}, Split(text, 9))
	assert.Equal(t, []string{text}, Split(text, 16))
}

func TestSplit_BoundaryIncludesSeparator(t *testing.T) {
	// 两段各 159 字符，加上分隔符正好 320
	p := strings.Repeat("p", 159)
	got := Split(p+"\n\n"+p, 320)
	require.Len(t, got, 1)

	q := strings.Repeat("q", 160)
	got = Split(p+"\n\n"+q, 320)
	assert.Equal(t, []string{p, q}, got)
}

func TestSplit_CountsRunes(t *testing.T) {
	p := strings.Repeat("é", 4)
	got := Split(p+"\n\n"+p, 10)
	require.Len(t, got, 1)
	assert.Equal(t, 10, utf8.RuneCountInString(got[0]))
}

func TestSplit_EmptyParagraphsSurvive(t *testing.T) {
	text := "a\n\n\n\nb"
	got := Split(text, 320)
	assert.Equal(t, []string{text}, got)
	assert.Equal(t, text, Join(Split(text, 3)))
}

func TestSplit_BoundedAndReconstructs(t *testing.T) {
	words := []string{"lorem", "ipsum dolor", "sit amet consectetur", "adipiscing", "elit sed do eiusmod tempor"}
	for maxLen := 26; maxLen <= 120; maxLen += 7 {
		var paragraphs []string
		for i := 0; i < 30; i++ {
			paragraphs = append(paragraphs, words[i%len(words)])
		}
		text := strings.Join(paragraphs, "\n\n")

		got := Split(text, maxLen)
		require.NotEmpty(t, got)
		for _, s := range got {
			assert.NotEmpty(t, s)
			assert.LessOrEqual(t, utf8.RuneCountInString(s), maxLen)
		}
		assert.Equal(t, text, Join(got), "maxLen=%d", maxLen)
	}
}

func TestSplit_NonEmptyForNonEmptyInput(t *testing.T) {
	for _, in := range []string{"x", "\n\n", "a\n\nb", " "} {
		assert.NotEmpty(t, Split(in, 1))
	}
}
