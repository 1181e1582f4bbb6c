package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/badgerstore"
	"github.com/Lllllllleong/documentingest/internal/core"
	"github.com/Lllllllleong/documentingest/internal/models"
)

var errInjected = errors.New("injected failure")

type fakeObject struct {
	content []byte
	meta    models.ObjectMetadata
}

// fakeObjectStore serves objects from memory.
type fakeObjectStore struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	headErr   error
	getErr    error
	onGet     func()
	headCalls int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string]fakeObject{}}
}

func (s *fakeObjectStore) put(container, key, content string, uploader string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[container+"/"+key] = fakeObject{
		content: []byte(content),
		meta: models.ObjectMetadata{
			SizeBytes:    int64(len(content)),
			LastModified: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
			UploaderTag:  uploader,
		},
	}
}

func (s *fakeObjectStore) HeadMetadata(_ context.Context, container, key string) (*models.ObjectMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headCalls++
	if s.headErr != nil {
		return nil, s.headErr
	}
	obj, ok := s.objects[container+"/"+key]
	if !ok {
		return nil, errors.New("object not found")
	}
	meta := obj.meta
	return &meta, nil
}

func (s *fakeObjectStore) GetContent(_ context.Context, container, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	obj, ok := s.objects[container+"/"+key]
	getErr, onGet := s.getErr, s.onGet
	s.mu.Unlock()

	if onGet != nil {
		onGet()
	}
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

// countingStore wraps a RecordStore, counting writes and failing selected ones.
type countingStore struct {
	core.RecordStore
	writes atomic.Int64

	mu              sync.Mutex
	failSectionAt   int
	failStatusTo    models.Status
	failDeleteAfter bool
}

func (s *countingStore) PutDocument(ctx context.Context, doc *models.Document) error {
	s.writes.Add(1)
	return s.RecordStore.PutDocument(ctx, doc)
}

func (s *countingStore) UpdateDocumentStatus(ctx context.Context, key string, u models.StatusUpdate) error {
	s.writes.Add(1)
	s.mu.Lock()
	fail := s.failStatusTo != "" && s.failStatusTo == u.Status
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.RecordStore.UpdateDocumentStatus(ctx, key, u)
}

func (s *countingStore) PutSection(ctx context.Context, sec *models.Section) error {
	s.writes.Add(1)
	s.mu.Lock()
	fail := s.failSectionAt != 0 && s.failSectionAt == sec.SectionIndex
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.RecordStore.PutSection(ctx, sec)
}

func (s *countingStore) DeleteSectionsAfter(ctx context.Context, key string, n int) error {
	s.writes.Add(1)
	s.mu.Lock()
	fail := s.failDeleteAfter
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.RecordStore.DeleteSectionsAfter(ctx, key, n)
}

func (s *countingStore) AppendStatusChange(ctx context.Context, c *models.StatusChange) error {
	s.writes.Add(1)
	return s.RecordStore.AppendStatusChange(ctx, c)
}

func (s *countingStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSectionAt = 0
	s.failStatusTo = ""
	s.failDeleteAfter = false
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	backing, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backing.Close() })
	return &countingStore{RecordStore: backing}
}

type recordingNotifier struct {
	mu   sync.Mutex
	docs []models.Document
	err  error
}

func (n *recordingNotifier) NotifyCompleted(_ context.Context, doc *models.Document) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.docs = append(n.docs, *doc)
	return n.err
}

func event(container, key string) models.ArrivalEvent {
	return models.ArrivalEvent{StorageLocation: models.StorageLocation{ContainerName: container, ObjectKey: key}}
}
