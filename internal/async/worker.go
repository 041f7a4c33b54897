package async

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/logging"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

// process runs one task to a terminal status. Nothing a task does may stop the worker.
func (q *Queue) process(workerID int, j job) {
	start := time.Now()
	logger := logging.WithTask(q.logger, j.id).With(zap.Int("worker_id", workerID))

	defer func() {
		q.mu.Lock()
		q.inFlight--
		q.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
			q.finishFailed(logger, j.id, constants.ErrCodeInternal, fmt.Sprintf("internal error: %v", r), start)
		}
	}()

	if err := q.store.MarkProcessing(j.id); err != nil {
		// swept or failed by shutdown while waiting
		logger.Warn("task no longer queued, skipping", zap.Error(err))
		return
	}
	q.observer.Started(time.Since(j.enqueuedAt))

	ctx, cancel := context.WithTimeout(q.baseCtx, q.timeout)
	defer cancel()
	ctx = common.WithTaskID(ctx, j.id)

	outcome, err := verify.NewTask(j.id, j.req, q.extractor, logger).Run(ctx)
	if err != nil {
		code := common.ErrorCode(err, constants.ErrCodeInternal)
		q.finishFailed(logger, j.id, code, err.Error(), start)
		return
	}

	if err := q.store.Complete(j.id, outcome); err != nil {
		logger.Error("storing outcome failed", zap.Error(logging.NewOperationError("complete", j.id, err)))
		return
	}
	q.observer.Finished(constants.TaskStatusCompleted, "", outcome.Verified, time.Since(start))
	logger.Info("task completed",
		zap.Bool("verified", outcome.Verified),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

func (q *Queue) finishFailed(logger *zap.Logger, id, code, message string, start time.Time) {
	if err := q.store.Fail(id, code, message); err != nil {
		logger.Error("recording failure failed", zap.Error(logging.NewOperationError("fail", id, err)))
		return
	}
	q.observer.Finished(constants.TaskStatusFailed, code, false, time.Since(start))
	logger.Warn("task failed",
		zap.String("error_code", code),
		zap.String("error", message),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}
