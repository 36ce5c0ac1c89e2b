package app

import (
	"context"
	"encoding/json"
	"errors"

	"video_ingest_service/internal/ingest/domain"
	"video_ingest_service/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DefaultReconcileAttempts background rounds before a partial delete is left for an operator
const DefaultReconcileAttempts = 5

// Delivery the part of amqp.Delivery the worker needs
type Delivery interface {
	Ack(multiple bool) error
}

// ReconcileWorker 消費 reconcile_retry queue，針對上次刪不掉的 id 再跑一次對帳
type ReconcileWorker struct {
	usecase IngestUseCase
	// queue 用來把沒跑完的 round 放回去，nil 時只記 log
	queue       ReconcileQueue
	maxAttempts int
}

// NewReconcileWorker 建構 ReconcileWorker 實例
func NewReconcileWorker(usecase IngestUseCase, queue ReconcileQueue, maxAttempts int) *ReconcileWorker {
	if maxAttempts <= 0 {
		maxAttempts = DefaultReconcileAttempts
	}
	return &ReconcileWorker{usecase: usecase, queue: queue, maxAttempts: maxAttempts}
}

// Start 開始消費訊息直到 ctx 結束或 channel 關閉
func (w *ReconcileWorker) Start(ctx context.Context, ch *amqp.Channel, queueName string) error {
	msgs, err := ch.Consume(
		queueName, // queue
		"",        // consumer tag，留空由系統分配
		false,     // autoAck 為 false，使用手動確認
		false,     // exclusive
		false,     // noLocal
		false,     // noWait
		nil,       // arguments
	)
	if err != nil {
		return err
	}

	logger.Log.Info("reconcile worker started", zap.String("queue", queueName))
	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				logger.Log.Warn("reconcile queue channel closed")
				return nil
			}
			w.Handle(ctx, d.Body, d)
		case <-ctx.Done():
			logger.Log.Info("reconcile worker stopped")
			return nil
		}
	}
}

// Handle one message. Messages are always acked: a round that is still
// partial has already queued its successor through RetryDelete, and a round
// that failed before reaching the store is queued again here. Requeued
// rounds count against maxAttempts.
func (w *ReconcileWorker) Handle(ctx context.Context, body []byte, d Delivery) {
	defer func() { _ = d.Ack(false) }()

	var job domain.ReconcileJob
	if err := json.Unmarshal(body, &job); err != nil {
		logger.Log.Error("drop undecodable reconcile job", zap.Error(err))
		return
	}
	log := logger.Log.With(zap.Uint("video_id", job.VideoID), zap.Int("attempt", job.Attempt))

	_, err := w.usecase.RetryDelete(ctx, job)
	var recErr *domain.ReconciliationError
	switch {
	case err == nil:
		log.Info("reconcile retry finished, record removed")
	case errors.Is(err, domain.ErrNotFound):
		log.Info("record already gone")
	case errors.Is(err, domain.ErrInvalidInput):
		log.Error("drop reconcile job with foreign ids", zap.Error(err))
	case errors.As(err, &recErr):
		log.Warn("reconcile retry still partial", zap.Strings("failed_ids", recErr.FailedIDs))
	default:
		log.Error("reconcile retry failed", zap.Error(err))
		w.requeue(ctx, job, log)
	}
}

func (w *ReconcileWorker) requeue(ctx context.Context, job domain.ReconcileJob, log *logger.Scoped) {
	if w.queue == nil {
		return
	}
	if job.Attempt >= w.maxAttempts {
		log.Error("reconcile attempts exhausted, leaving ids for an operator", zap.Strings("public_ids", job.PublicIDs))
		return
	}
	job.Attempt++
	if err := w.queue.Enqueue(ctx, job); err != nil {
		log.Error("requeue reconcile job failed", zap.Error(err))
	}
}
