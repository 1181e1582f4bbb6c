// Package parser turns raw file content into an ordered sequence of sections.
//
// Every parse is a one-shot pure transform of the given bytes: there is no I/O
// and nothing is returned alongside an error, so a failed parse can never leave
// partial output behind.
package parser

import (
	"fmt"

	"github.com/Lllllllleong/documentingest/internal/models"
)

// RawSection is one parser-emitted unit before normalization.
// Index is 1-based and follows parser output order.
type RawSection struct {
	Index   int
	Heading string
	Content string
}

// Extractor pulls a single text stream out of a binary document.
type Extractor func(content []byte) (string, error)

// Parser dispatches content to the parser for its declared format.
type Parser struct {
	extractors map[models.Format]Extractor
}

// Option configures a Parser.
type Option func(*Parser)

// WithExtractor replaces the text extractor used for a binary format (docx or pdf).
func WithExtractor(format models.Format, fn Extractor) Option {
	return func(p *Parser) {
		if fn != nil {
			p.extractors[format] = fn
		}
	}
}

// New creates a Parser with the docx and pdf extractors of this package.
func New(opts ...Option) *Parser {
	p := &Parser{
		extractors: map[models.Format]Extractor{
			models.FormatDocx: ExtractDocx,
			models.FormatPDF:  ExtractPDF,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts content of the given format into sections numbered from 1.
// Adding a format means adding a case here; the default branch rejects
// anything not handled explicitly.
func (p *Parser) Parse(documentKey string, format models.Format, content []byte) ([]RawSection, error) {
	switch format {
	case models.FormatTXT:
		text, err := decodeText(content)
		if err != nil {
			return nil, &ParseError{Format: format, DocumentKey: documentKey, Err: err}
		}
		return SplitText(text), nil
	case models.FormatDocx, models.FormatPDF:
		text, err := p.extractors[format](content)
		if err != nil {
			return nil, &ParseError{Format: format, DocumentKey: documentKey, Err: err}
		}
		return SplitText(text), nil
	case models.FormatCSV:
		sections, err := ParseCSV(content)
		if err != nil {
			return nil, &ParseError{Format: format, DocumentKey: documentKey, Err: err}
		}
		return sections, nil
	default:
		return nil, &UnsupportedFormatError{DocumentKey: documentKey, Extension: fmt.Sprint(format)}
	}
}
