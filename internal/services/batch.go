package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Lllllllleong/documentingest/internal/models"
)

// Processor ingests a single arrival event.
type Processor interface {
	Process(ctx context.Context, e models.ArrivalEvent) (*models.IngestResult, error)
}

// BatchResult pairs one event with its outcome.
type BatchResult struct {
	Event  models.ArrivalEvent
	Result *models.IngestResult
	Err    error
}

// RunBatch ingests events concurrently on a pool of workers. Documents are
// independent, so one failure never stops the rest. Results keep input order.
func RunBatch(ctx context.Context, p Processor, events []models.ArrivalEvent, workers int) ([]BatchResult, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("ants.NewPool: %w", err)
	}
	defer pool.Release()

	results := make([]BatchResult, len(events))
	var wg sync.WaitGroup
	for i, e := range events {
		results[i].Event = e
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i].Result, results[i].Err = p.Process(ctx, e)
		}); err != nil {
			wg.Done()
			results[i].Err = fmt.Errorf("submit %s: %w", e.DocumentKey(), err)
		}
	}
	wg.Wait()
	return results, nil
}
