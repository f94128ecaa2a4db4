package source

import (
	"encoding/xml"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ivlev/concept2video/internal/domain"
)

// maxCandidates bounds how many <svg openings Extract decodes, so text
// full of unterminated openings costs linear rather than quadratic time.
const maxCandidates = 16

// Extract returns the first well-formed <svg>…</svg> block found in text,
// dropping any surrounding prose or markdown fences.
func Extract(text string) (string, error) {
	tried := 0
	for off := 0; off < len(text) && tried < maxCandidates; {
		i := strings.Index(text[off:], "<svg")
		if i < 0 {
			break
		}
		start := off + i
		if opensRoot(text[start+4:]) {
			tried++
			if end, ok := wellFormedEnd(text[start:]); ok {
				return text[start : start+end], nil
			}
		}
		off = start + 4
	}
	return "", &domain.Error{Kind: domain.KindValidation, Op: "extract", Err: ErrNoGraphic}
}

func opensRoot(rest string) bool {
	if rest == "" {
		return false
	}
	switch rest[0] {
	case ' ', '\t', '\n', '\r', '>', '/':
		return true
	}
	return false
}

// wellFormedEnd decodes s until the first element closes and reports the
// byte offset just past it.
func wellFormedEnd(s string) (int, bool) {
	d := xml.NewDecoder(strings.NewReader(s))
	d.CharsetReader = charset.NewReaderLabel
	d.Entity = xml.HTMLEntity

	depth := 0
	for {
		t, err := d.Token()
		if err != nil {
			return 0, false
		}
		switch t.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return int(d.InputOffset()), true
			}
		}
	}
}
