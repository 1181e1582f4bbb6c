package services

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/documentingest/internal/models"
)

var (
	ErrObjectStoreRequired = errors.New("object store is required")
	ErrRecordStoreRequired = errors.New("record store is required")
	ErrParserRequired      = errors.New("parser is required")

	// ErrPersistence is matched by every *PersistenceError.
	ErrPersistence = errors.New("persistence failed")
	// ErrMetadataFetch is matched by every *MetadataFetchError.
	ErrMetadataFetch = errors.New("metadata fetch failed")
	// ErrContentFetch is matched by every *ContentFetchError.
	ErrContentFetch = errors.New("content fetch failed")
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// PersistenceError reports a failed record-store write or read.
type PersistenceError struct {
	Op          string
	DocumentKey string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.DocumentKey, e.Err)
}

func (e *PersistenceError) Unwrap() error        { return e.Err }
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// MetadataFetchError reports that the object store could not describe a file.
// Nothing has been written when it is returned.
type MetadataFetchError struct {
	DocumentKey string
	Err         error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("fetch metadata for %s: %v", e.DocumentKey, e.Err)
}

func (e *MetadataFetchError) Unwrap() error        { return e.Err }
func (e *MetadataFetchError) Is(target error) bool { return target == ErrMetadataFetch }

// ContentFetchError reports that a file's bytes could not be read after its
// document was marked Processing.
type ContentFetchError struct {
	DocumentKey string
	Err         error
}

func (e *ContentFetchError) Error() string {
	return fmt.Sprintf("fetch content for %s: %v", e.DocumentKey, e.Err)
}

func (e *ContentFetchError) Unwrap() error        { return e.Err }
func (e *ContentFetchError) Is(target error) bool { return target == ErrContentFetch }

// TransitionError reports a status move the state machine does not allow.
type TransitionError struct {
	DocumentKey string
	From        models.Status
	To          models.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("document %s: cannot move from %s to %s", e.DocumentKey, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
