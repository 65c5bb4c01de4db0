// Package proofqueue processes chat payment proofs in the background so the webhook can answer at once.
package proofqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/notification"
	"github.com/frahmantamala/order-assistant/internal/payment"
	"github.com/frahmantamala/order-assistant/pkg/money"
)

type Recorder interface {
	RecordPayment(ctx context.Context, in payment.RecordPaymentInput) (*payment.RecordResult, error)
}

type Worker struct {
	ID         int
	WorkerPool chan chan payment.ProofSubmission
	JobChannel chan payment.ProofSubmission
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan payment.ProofSubmission, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan payment.ProofSubmission),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, process func(payment.ProofSubmission)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing proof", "worker_id", w.ID, "order_id", job.OrderID)
				process(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Config struct {
	MaxWorkers int
	QueueSize  int
	// JobTimeout bounds one proof: OCR, reconciliation and the reply.
	JobTimeout time.Duration
}

type Queue struct {
	recorder Recorder
	sender   notification.Sender
	logger   *slog.Logger

	jobQueue   chan payment.ProofSubmission
	workerPool chan chan payment.ProofSubmission
	maxWorkers int
	jobTimeout time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func New(recorder Recorder, sender notification.Sender, cfg Config, logger *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}

	return &Queue{
		recorder:   recorder,
		sender:     sender,
		logger:     logger,
		jobQueue:   make(chan payment.ProofSubmission, cfg.QueueSize),
		workerPool: make(chan chan payment.ProofSubmission, cfg.MaxWorkers),
		maxWorkers: cfg.MaxWorkers,
		jobTimeout: cfg.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers and the dispatcher. Calling it again has no effect.
func (q *Queue) Start() {
	q.once.Do(func() {
		for i := 0; i < q.maxWorkers; i++ {
			NewWorker(i, q.workerPool, q.logger).Start(q.ctx, &q.wg, q.process)
		}

		q.wg.Add(1)
		go q.dispatch()

		q.logger.Info("payment proof worker pool started",
			"max_workers", q.maxWorkers,
			"queue_size", cap(q.jobQueue))
	})
}

func (q *Queue) dispatch() {
	defer q.wg.Done()

	for {
		select {
		case job := <-q.jobQueue:
			select {
			case jobChannel := <-q.workerPool:
				select {
				case jobChannel <- job:
				case <-q.ctx.Done():
					q.logger.Info("dispatcher shutting down", "dropped_order_id", job.OrderID)
					return
				}
			case <-q.ctx.Done():
				q.logger.Info("dispatcher shutting down", "dropped_order_id", job.OrderID)
				return
			}
		case <-q.ctx.Done():
			q.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Submit implements payment.ProofSubmitter. It never blocks; a full queue is reported as unavailable.
func (q *Queue) Submit(_ context.Context, p payment.ProofSubmission) error {
	select {
	case q.jobQueue <- p:
		q.logger.Info("payment proof queued",
			"order_id", p.OrderID,
			"chat_id", p.ChatID,
			"queue_length", len(q.jobQueue))
		return nil
	default:
		q.logger.Warn("payment proof queue full",
			"order_id", p.OrderID,
			"queue_capacity", cap(q.jobQueue))
		return errors.NewUnavailableError("payment proof queue is full, please try again later", errors.ErrCodeQueueFull)
	}
}

// Shutdown stops accepting work and waits for in-flight proofs to finish.
func (q *Queue) Shutdown() {
	q.logger.Info("shutting down payment proof queue")
	q.cancel()
	q.wg.Wait()
	q.logger.Info("payment proof queue shutdown complete")
}

func (q *Queue) process(job payment.ProofSubmission) {
	// in-flight work finishes even while shutting down
	ctx, cancel := context.WithTimeout(context.WithoutCancel(q.ctx), q.jobTimeout)
	defer cancel()
	ctx = errors.ContextWithActor(ctx, job.ChatID)

	result, err := q.recorder.RecordPayment(ctx, payment.RecordPaymentInput{
		OrderID:        job.OrderID,
		ActorID:        job.ChatID,
		ClaimedAmount:  job.ClaimedAmount,
		ProofReference: job.ProofReference,
		Method:         payment.MethodTransfer,
	})

	reply := replyFor(job, result, err)
	if err != nil {
		q.logger.Warn("payment proof rejected", "order_id", job.OrderID, "chat_id", job.ChatID, "error", err)
	} else {
		q.logger.Info("payment proof processed", "order_id", job.OrderID, "status", result.Status)
	}

	if sendErr := q.sender.Send(ctx, job.ChatID, reply); sendErr != nil {
		q.logger.Error("failed to reply to payment proof", "order_id", job.OrderID, "chat_id", job.ChatID, "error", sendErr)
	}
}

func replyFor(job payment.ProofSubmission, result *payment.RecordResult, err error) string {
	if err == nil {
		return result.Message
	}

	appErr, ok := errors.IsAppError(err)
	if !ok {
		return fmt.Sprintf("Maaf, bukti pembayaran untuk %s belum bisa kami proses. Tim kami akan mengeceknya.", job.OrderID)
	}

	switch appErr.Code {
	case errors.ErrCodeOrderNotFound:
		return fmt.Sprintf("Pesanan %s tidak ditemukan. Mohon cek kembali nomor pesanan.", job.OrderID)
	case errors.ErrCodeOrderClosed:
		return fmt.Sprintf("Pesanan %s sudah ditutup sehingga pembayaran tidak dapat dicatat.", job.OrderID)
	case errors.ErrCodeNothingDue:
		return fmt.Sprintf("Pesanan %s sudah lunas. Terima kasih!", job.OrderID)
	case errors.ErrCodeOrderLocked:
		return fmt.Sprintf("Pesanan %s sedang diproses. Mohon kirim ulang bukti dalam beberapa saat.", job.OrderID)
	case errors.ErrCodeExtractionFailed:
		if job.ClaimedAmount > 0 {
			return fmt.Sprintf("Bukti transfer %s untuk %s belum terbaca. Tim kami akan mengeceknya secara manual.", money.IDR(job.ClaimedAmount), job.OrderID)
		}
		return fmt.Sprintf("Bukti transfer untuk %s belum terbaca. Mohon kirim foto yang lebih jelas.", job.OrderID)
	default:
		return fmt.Sprintf("Maaf, bukti pembayaran untuk %s belum bisa kami proses. Tim kami akan mengeceknya.", job.OrderID)
	}
}
