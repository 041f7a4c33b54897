package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/async"
	"github.com/joseph-ayodele/idverify/internal/export"
	"github.com/joseph-ayodele/idverify/internal/store"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

type batchOptions struct {
	Workers      int
	TaskTimeout  time.Duration
	PollInterval time.Duration
}

type batchSummary struct {
	Rows        int
	Submitted   int
	Rejected    int
	Verified    int
	NotVerified int
	Failed      int
	XLSX        []byte
}

// runBatch pushes every row through a private queue, waits for all tasks to
// settle and exports the records.
func runBatch(ctx context.Context, rows []manifestRow, extractor verify.TextExtractor, opts batchOptions, logger *zap.Logger) (batchSummary, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	summary := batchSummary{Rows: len(rows)}

	st := store.New(logger)
	queue := async.NewQueue(st, extractor, logger,
		async.WithWorkers(opts.Workers),
		async.WithTaskTimeout(opts.TaskTimeout),
	)
	queue.Start()

	var (
		mu  sync.Mutex
		ids []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, row := range rows {
		g.Go(func() error {
			data, err := os.ReadFile(row.Image)
			if err != nil {
				logger.Warn("skipping row, image unreadable", zap.Int("line", row.Line), zap.String("image", row.Image), zap.Error(err))
				mu.Lock()
				summary.Rejected++
				mu.Unlock()
				return nil
			}
			id, err := queue.Submit(gctx, verify.Request{
				Image:     data,
				Filename:  filepath.Base(row.Image),
				LastName:  row.LastName,
				Birthday:  row.Birthday,
				StudentID: row.StudentID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("row rejected", zap.Int("line", row.Line), zap.Error(err))
				summary.Rejected++
				return nil
			}
			ids = append(ids, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	summary.Submitted = len(ids)

	if err := waitForTerminal(ctx, queue, ids, opts.PollInterval); err != nil {
		_ = queue.Shutdown(context.Background())
		return summary, err
	}
	if err := queue.Shutdown(ctx); err != nil {
		return summary, fmt.Errorf("stop queue: %w", err)
	}

	for _, id := range ids {
		rec, err := queue.Poll(id)
		if err != nil {
			continue
		}
		switch {
		case rec.Status == constants.TaskStatusFailed:
			summary.Failed++
		case rec.Result != nil && rec.Result.Verified:
			summary.Verified++
		default:
			summary.NotVerified++
		}
	}

	xlsx, _, err := export.NewService(st, logger).ExportTasksXLSX(ctx, export.Filter{})
	if err != nil {
		return summary, fmt.Errorf("export: %w", err)
	}
	summary.XLSX = xlsx
	return summary, nil
}

func waitForTerminal(ctx context.Context, queue *async.Queue, ids []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pending := append([]string(nil), ids...)
	for len(pending) > 0 {
		remaining := pending[:0]
		for _, id := range pending {
			rec, err := queue.Poll(id)
			if err != nil || rec.Status.IsTerminal() {
				continue
			}
			remaining = append(remaining, id)
		}
		pending = remaining
		if len(pending) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%d tasks still running: %w", len(pending), ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
