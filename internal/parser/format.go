package parser

import (
	"path"
	"strings"

	"github.com/Lllllllleong/documentingest/internal/models"
)

// FormatFromKey infers the declared format from the trailing extension of a
// document key. Matching is case-insensitive.
func FormatFromKey(documentKey string) (models.Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(documentKey)), ".")
	switch models.Format(ext) {
	case models.FormatDocx:
		return models.FormatDocx, nil
	case models.FormatPDF:
		return models.FormatPDF, nil
	case models.FormatCSV:
		return models.FormatCSV, nil
	case models.FormatTXT:
		return models.FormatTXT, nil
	default:
		return "", &UnsupportedFormatError{DocumentKey: documentKey, Extension: ext}
	}
}
