// Package segment splits generated text into SMS-sized messages.
package segment

import (
	"strings"
	"unicode/utf8"
)

// ParagraphSeparator is the boundary Split prefers to cut on.
const ParagraphSeparator = "\n\n"

// Split cuts text into an ordered list of segments, each at most maxLength
// characters, by packing whole paragraphs together.
//
// A paragraph is never cut, so a single paragraph longer than maxLength is
// returned as one oversized segment. Text without any separator is returned
// unchanged as the only segment. Empty text yields one empty segment.
//
// Lengths are counted in runes.
func Split(text string, maxLength int) []string {
	paragraphs := strings.Split(text, ParagraphSeparator)
	sepLen := utf8.RuneCountInString(ParagraphSeparator)

	segments := make([]string, 0, 1)
	var buf strings.Builder
	bufLen := 0

	for i := 0; i < len(paragraphs)-1; i++ {
		current := paragraphs[i]
		buf.WriteString(current)
		bufLen += utf8.RuneCountInString(current)

		// 先看下一段能否放进当前分段，放不下就先把当前分段发出去
		next := utf8.RuneCountInString(paragraphs[i+1])
		if bufLen+sepLen+next > maxLength {
			segments = append(segments, buf.String())
			buf.Reset()
			bufLen = 0
			continue
		}
		buf.WriteString(ParagraphSeparator)
		bufLen += sepLen
	}

	buf.WriteString(paragraphs[len(paragraphs)-1])
	segments = append(segments, buf.String())
	return segments
}

// Join reverses Split for segments produced from paragraphs that each fit.
func Join(segments []string) string {
	return strings.Join(segments, ParagraphSeparator)
}
