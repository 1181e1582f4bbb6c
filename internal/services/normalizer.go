package services

import (
	"fmt"
	"time"

	"github.com/Lllllllleong/documentingest/internal/models"
	"github.com/Lllllllleong/documentingest/internal/parser"
)

// Provenance is the descriptive metadata stamped onto every section of one attempt.
type Provenance struct {
	DocumentType string
	ContentType  string
	CreatedOn    time.Time
	FileSize     int64
	UploadedBy   string
	AttemptID    string
}

// ProvenanceFor builds the provenance of an attempt from its document record.
// CreatedOn is the time the attempt began, so it is shared by every section
// written in one attempt.
func ProvenanceFor(doc *models.Document, documentType string) Provenance {
	return Provenance{
		DocumentType: documentType,
		ContentType:  doc.Format.ContentType(),
		CreatedOn:    doc.UpdatedAt,
		FileSize:     doc.SizeBytes,
		UploadedBy:   doc.UploadedBy,
		AttemptID:    doc.AttemptID,
	}
}

// NormalizeSections converts raw parser output into section rows owned by doc.
// Raw indices are taken as-is.
func NormalizeSections(doc *models.Document, raw []parser.RawSection, p Provenance) []models.Section {
	sections := make([]models.Section, len(raw))
	for i, r := range raw {
		sections[i] = models.Section{
			DocumentKey:  doc.DocumentKey,
			SectionIndex: r.Index,
			SectionID:    SectionID(r.Index),
			Heading:      r.Heading,
			Content:      r.Content,
			Metadata: models.SectionMetadata{
				DocumentType: p.DocumentType,
				ContentType:  p.ContentType,
				CreatedOn:    p.CreatedOn,
				FileSize:     p.FileSize,
				UploadedBy:   p.UploadedBy,
				AttemptID:    p.AttemptID,
			},
		}
	}
	return sections
}

// SectionID is the stable identifier of the section at index n.
func SectionID(n int) string {
	return fmt.Sprintf("section_%d", n)
}
