package parser

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/documentingest/internal/models"
)

var (
	// ErrUnsupportedFormat is matched by every *UnsupportedFormatError.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("parse failed")
)

// UnsupportedFormatError reports an object key whose extension is not one of
// docx, pdf, csv or txt.
type UnsupportedFormatError struct {
	DocumentKey string
	Extension   string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s", e.Extension, e.DocumentKey)
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// ParseError reports content that could not be parsed as its declared format.
type ParseError struct {
	Format      models.Format
	DocumentKey string
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s as %s: %v", e.DocumentKey, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }
