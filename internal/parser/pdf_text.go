package parser

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// TJ adjustments below this (thousandths of a text space) are rendered as a word gap.
const tjWordGap = -200

type csKind int

const (
	csOther csKind = iota
	csString
	csNumber
	csName
	csOperator
	csArray
	csArrayStart
	csArrayEnd
)

type csToken struct {
	kind  csKind
	text  string
	num   float64
	items []csToken
}

// contentStreamText returns the text shown by the Tj, TJ, ' and " operators
// of a decoded content stream, with a line break wherever the text position
// moves to a new line.
func contentStreamText(content []byte) string {
	s := &csScanner{buf: content}

	var (
		out      strings.Builder
		operands []csToken
		array    []csToken
		inArray  bool
		lastY    float64
		haveY    bool
	)
	newline := func() {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
			out.WriteByte('\n')
		}
	}
	show := func(tok csToken) {
		if tok.kind == csString {
			out.WriteString(tok.text)
		}
	}
	last := func() csToken {
		if len(operands) == 0 {
			return csToken{}
		}
		return operands[len(operands)-1]
	}

	for {
		tok, ok := s.next()
		if !ok {
			break
		}
		switch tok.kind {
		case csArrayStart:
			inArray = true
			array = nil
			continue
		case csArrayEnd:
			inArray = false
			operands = append(operands, csToken{kind: csArray, items: array})
			continue
		case csOperator:
		default:
			if inArray {
				array = append(array, tok)
			} else {
				operands = append(operands, tok)
			}
			continue
		}

		switch tok.text {
		case "Tj":
			show(last())
		case "'", `"`:
			newline()
			show(last())
		case "TJ":
			for _, item := range last().items {
				switch {
				case item.kind == csString:
					out.WriteString(item.text)
				case item.kind == csNumber && item.num < tjWordGap:
					if !strings.HasSuffix(out.String(), " ") {
						out.WriteByte(' ')
					}
				}
			}
		case "T*":
			newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[1].num != 0 {
				newline()
			}
		case "Tm":
			if len(operands) >= 6 {
				y := operands[5].num
				if haveY && y != lastY {
					newline()
				}
				lastY, haveY = y, true
			}
		case "BI":
			s.skipInlineImage()
		}
		operands = operands[:0]
	}
	return out.String()
}

type csScanner struct {
	buf []byte
	pos int
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *csScanner) skipSpaceAndComments() {
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		switch {
		case isPDFSpace(c):
			s.pos++
		case c == '%':
			for s.pos < len(s.buf) && s.buf[s.pos] != '\n' && s.buf[s.pos] != '\r' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *csScanner) next() (csToken, bool) {
	s.skipSpaceAndComments()
	if s.pos >= len(s.buf) {
		return csToken{}, false
	}

	c := s.buf[s.pos]
	switch c {
	case '(':
		s.pos++
		return csToken{kind: csString, text: decodePDFString(s.literal())}, true
	case '<':
		if s.pos+1 < len(s.buf) && s.buf[s.pos+1] == '<' {
			s.pos += 2
			return csToken{kind: csOther}, true
		}
		s.pos++
		return csToken{kind: csString, text: decodePDFString(s.hex())}, true
	case '>':
		s.pos++
		if s.pos < len(s.buf) && s.buf[s.pos] == '>' {
			s.pos++
		}
		return csToken{kind: csOther}, true
	case '[':
		s.pos++
		return csToken{kind: csArrayStart}, true
	case ']':
		s.pos++
		return csToken{kind: csArrayEnd}, true
	case '{', '}', ')':
		s.pos++
		return csToken{kind: csOther}, true
	case '/':
		s.pos++
		return csToken{kind: csName, text: s.regular()}, true
	}

	word := s.regular()
	if n, err := strconv.ParseFloat(word, 64); err == nil {
		return csToken{kind: csNumber, text: word, num: n}, true
	}
	return csToken{kind: csOperator, text: word}, true
}

func (s *csScanner) regular() string {
	start := s.pos
	for s.pos < len(s.buf) && !isPDFSpace(s.buf[s.pos]) && !isPDFDelimiter(s.buf[s.pos]) {
		s.pos++
	}
	return string(s.buf[start:s.pos])
}

// literal reads a (string) body; the opening parenthesis is already consumed.
func (s *csScanner) literal() []byte {
	var b []byte
	depth := 1
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.buf) {
				return b
			}
			e := s.buf[s.pos]
			s.pos++
			switch e {
			case 'n':
				b = append(b, '\n')
			case 'r':
				b = append(b, '\r')
			case 't':
				b = append(b, '\t')
			case 'b':
				b = append(b, '\b')
			case 'f':
				b = append(b, '\f')
			case '\r':
				if s.pos < len(s.buf) && s.buf[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.buf) && s.buf[s.pos] >= '0' && s.buf[s.pos] <= '7'; i++ {
						v = v*8 + int(s.buf[s.pos]-'0')
						s.pos++
					}
					b = append(b, byte(v))
				} else {
					b = append(b, e)
				}
			}
		case '(':
			depth++
			b = append(b, c)
		case ')':
			depth--
			if depth == 0 {
				return b
			}
			b = append(b, c)
		default:
			b = append(b, c)
		}
	}
	return b
}

// hex reads a <hex string> body; the opening bracket is already consumed.
func (s *csScanner) hex() []byte {
	var digits []byte
	for s.pos < len(s.buf) && s.buf[s.pos] != '>' {
		if c := s.buf[s.pos]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	b := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		b = append(b, byte(v))
	}
	return b
}

// skipInlineImage moves past the binary data of a BI ... ID ... EI block.
func (s *csScanner) skipInlineImage() {
	for {
		tok, ok := s.next()
		if !ok {
			return
		}
		if tok.kind == csOperator && tok.text == "ID" {
			break
		}
	}
	for i := s.pos; i+1 < len(s.buf); i++ {
		if s.buf[i] != 'E' || s.buf[i+1] != 'I' {
			continue
		}
		if i > 0 && !isPDFSpace(s.buf[i-1]) {
			continue
		}
		if i+2 < len(s.buf) && !isPDFSpace(s.buf[i+2]) {
			continue
		}
		s.pos = i + 2
		return
	}
	s.pos = len(s.buf)
}

func decodePDFString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
