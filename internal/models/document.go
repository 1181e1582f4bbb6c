package models

import "time"

// Status is the processing state of a Document. Pending is implicit: a key
// with no record is pending, so it is never written.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusError      Status = "Error"
)

// Format is the declared content format of a stored file, taken from its
// object key extension.
type Format string

const (
	FormatDocx Format = "docx"
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// ContentType returns the MIME type recorded as section provenance.
func (f Format) ContentType() string {
	switch f {
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	case FormatCSV:
		return "text/csv"
	case FormatTXT:
		return "text/plain"
	}
	return "application/octet-stream"
}

// Document represents the master record for one ingested file in the record store.
// It tracks the processing status and the run metadata of the latest attempt.
type Document struct {
	DocumentKey  string    `firestore:"documentKey" json:"documentKey"`
	Container    string    `firestore:"container" json:"container"`
	ObjectKey    string    `firestore:"objectKey" json:"objectKey"`
	Format       Format    `firestore:"format" json:"format"`
	SizeBytes    int64     `firestore:"sizeBytes" json:"sizeBytes"`
	UploadedAt   time.Time `firestore:"uploadedAt" json:"uploadedAt"`
	UploadedBy   string    `firestore:"uploadedBy" json:"uploadedBy"`
	Status       Status    `firestore:"status" json:"status"`
	ErrorDetails string    `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	SectionCount int       `firestore:"sectionCount" json:"sectionCount"`
	ContentHash  string    `firestore:"contentHash,omitempty" json:"contentHash,omitempty"`
	AttemptID    string    `firestore:"attemptId" json:"attemptId"` // For traceability
	Attempts     int       `firestore:"attempts" json:"attempts"`
	CreatedAt    time.Time `firestore:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt" json:"updatedAt"` // last status write
}

// Section is one normalized content unit extracted from a Document.
// (DocumentKey, SectionIndex) is its identity in the record store.
type Section struct {
	DocumentKey  string          `firestore:"documentKey" json:"documentKey"`
	SectionIndex int             `firestore:"sectionIndex" json:"sectionIndex"`
	SectionID    string          `firestore:"sectionId" json:"sectionId"`
	Heading      string          `firestore:"heading" json:"heading"`
	Content      string          `firestore:"content" json:"content"`
	Metadata     SectionMetadata `firestore:"metadata" json:"metadata"`
}

// SectionMetadata is the provenance attached by the normalizer.
type SectionMetadata struct {
	DocumentType string    `firestore:"documentType" json:"documentType"`
	ContentType  string    `firestore:"contentType" json:"contentType"`
	CreatedOn    time.Time `firestore:"createdOn" json:"createdOn"`
	FileSize     int64     `firestore:"fileSize" json:"fileSize"`
	UploadedBy   string    `firestore:"uploadedBy" json:"uploadedBy"`
	AttemptID    string    `firestore:"attemptId" json:"attemptId"`
}

// StatusChange is an append-only audit row written for every status transition.
type StatusChange struct {
	DocumentKey string    `firestore:"documentKey" json:"documentKey"`
	From        Status    `firestore:"from" json:"from"`
	To          Status    `firestore:"to" json:"to"`
	AttemptID   string    `firestore:"attemptId,omitempty" json:"attemptId,omitempty"`
	Details     string    `firestore:"details,omitempty" json:"details,omitempty"`
	At          time.Time `firestore:"at" json:"at"`
	// Seq orders rows that share a timestamp in stores without an insertion order.
	Seq int64 `firestore:"seq,omitempty" json:"-"`
}

// ObjectMetadata is what the object store reports about a stored file
// before its content is fetched.
type ObjectMetadata struct {
	SizeBytes    int64
	LastModified time.Time
	UploaderTag  string
}

// StatusUpdate is a partial write of a Document's status fields.
type StatusUpdate struct {
	Status       Status
	ErrorDetails string
	SectionCount int
	UpdatedAt    time.Time
}
