package gcp

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/documentingest/internal/core/coretest"
	"github.com/Lllllllleong/documentingest/internal/models"
)

func newEmulatorStore(t *testing.T) *FirestoreRecordStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := NewFirestoreClient(context.Background(), "demo-documentingest")
	require.NoError(t, err)
	s := NewFirestoreRecordStore(client, fmt.Sprintf("documents_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFirestoreRecordStoreContract(t *testing.T) {
	coretest.RunRecordStore(t, newEmulatorStore(t))
}

func TestFirestoreConcurrentStatusChanges(t *testing.T) {
	s := newEmulatorStore(t)
	ctx := context.Background()
	doc := coretest.NewDocument("uploads/concurrent.txt")
	require.NoError(t, s.PutDocument(ctx, doc))

	const n = 8
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendStatusChange(ctx, &models.StatusChange{
				DocumentKey: doc.DocumentKey,
				From:        models.StatusProcessing,
				To:          models.StatusProcessing,
				Details:     fmt.Sprintf("writer %d", i),
				At:          doc.UpdatedAt,
			}))
		}()
	}
	wg.Wait()

	changes, err := s.ListStatusChanges(ctx, doc.DocumentKey)
	require.NoError(t, err)
	require.Len(t, changes, n)
	for i, c := range changes {
		assert.Equal(t, int64(i+1), c.Seq)
	}
}

func TestHistoryDocIDSortsBySeq(t *testing.T) {
	assert.Equal(t, "0000000001", historyDocID(1))
	assert.Less(t, historyDocID(9), historyDocID(10))
}

func TestSectionDocIDSortsByIndex(t *testing.T) {
	assert.Equal(t, "00001", sectionDocID(1))
	assert.Equal(t, "00042", sectionDocID(42))
	assert.Less(t, sectionDocID(9), sectionDocID(10))
}

func TestNewWorkflowNotifierParent(t *testing.T) {
	n := NewWorkflowNotifier(nil, "acme-prod", "us-central1", "document-ingested")
	assert.Equal(t, "projects/acme-prod/locations/us-central1/workflows/document-ingested", n.parent)
}

func TestNewFirestoreClientRequiresProject(t *testing.T) {
	_, err := NewFirestoreClient(context.Background(), "")
	assert.Error(t, err)
}
