package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// sectionBoundary separates text-like sections: one blank line.
const sectionBoundary = "\n\n"

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// SplitText splits a text stream on blank-line boundaries. Every segment,
// including empty ones, becomes a section, so text without a boundary (or
// empty text) yields exactly one section holding all of it.
func SplitText(text string) []RawSection {
	segments := strings.Split(text, sectionBoundary)
	sections := make([]RawSection, len(segments))
	for i, seg := range segments {
		sections[i] = RawSection{
			Index:   i + 1,
			Heading: fmt.Sprintf("Section %d", i+1),
			Content: seg,
		}
	}
	return sections
}

func decodeText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", errInvalidUTF8
	}
	return string(content), nil
}
