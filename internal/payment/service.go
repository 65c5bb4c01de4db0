package payment

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/core/common/validation"
	"github.com/frahmantamala/order-assistant/internal/core/events"
	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/internal/lock"
	"github.com/frahmantamala/order-assistant/internal/order"
	"github.com/frahmantamala/order-assistant/pkg/clock"
	"github.com/frahmantamala/order-assistant/pkg/money"
)

type RecordStore interface {
	Append(ctx context.Context, r *Record) error
	ListByOrder(ctx context.Context, orderID string) ([]*Record, error)
}

// AmountExtractor reads candidate amounts out of a payment proof.
type AmountExtractor interface {
	Extract(ctx context.Context, proofReference string) ([]Candidate, error)
}

type RecordPaymentInput struct {
	OrderID        string
	ActorID        string
	ClaimedAmount  int64
	ProofReference string
	Method         Method
	Notes          string
}

type ResultStatus string

const (
	ResultAccepted            ResultStatus = "accepted"
	ResultPendingConfirmation ResultStatus = "pending_confirmation"
)

type RecordResult struct {
	Status          ResultStatus    `json:"status"`
	Payment         *Record         `json:"payment,omitempty"`
	Ledger          *ledger.Summary `json:"ledger,omitempty"`
	ExpectedAmount  int64           `json:"expected_amount"`
	CandidateAmount int64           `json:"candidate_amount,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Message         string          `json:"message"`
}

type Config struct {
	Tolerance  Tolerance
	PendingTTL time.Duration
}

type Service struct {
	orders     order.RepositoryAPI
	records    RecordStore
	pending    PendingStore
	extractor  AmountExtractor
	guard      lock.Guard
	publisher  order.EventPublisher
	reconciler Reconciler
	pendingTTL time.Duration
	clock      clock.Clock
	logger     *slog.Logger
}

func NewService(orders order.RepositoryAPI, records RecordStore, pending PendingStore, extractor AmountExtractor, guard lock.Guard, publisher order.EventPublisher, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	if cfg.Tolerance == (Tolerance{}) {
		cfg.Tolerance = DefaultTolerance
	}
	return &Service{
		orders:     orders,
		records:    records,
		pending:    pending,
		extractor:  extractor,
		guard:      guard,
		publisher:  publisher,
		reconciler: NewReconciler(cfg.Tolerance),
		pendingTTL: cfg.PendingTTL,
		clock:      clk,
		logger:     logger,
	}
}

func validateInput(in *RecordPaymentInput) *errors.AppError {
	if in.Method == "" {
		in.Method = MethodTransfer
	}

	v := validation.NewValidator()
	v.Field("order_id", in.OrderID).Required()
	v.Field("actor_id", in.ActorID).Required()
	v.Field("amount", in.ClaimedAmount).MinInt(0, errors.ErrCodeInvalidAmount).MaxInt(1_000_000_000, errors.ErrCodeInvalidAmount)
	v.Field("method", string(in.Method)).Custom(func(interface{}) *errors.AppError {
		if !in.Method.Valid() {
			return errors.NewValidationFieldError("method", "method must be one of transfer, cash, qris, other", errors.ErrCodeValidationFailed)
		}
		return nil
	})
	v.Field("proof_reference", in.ProofReference).MaxLength(512)
	return v.Validate()
}

// RecordPayment reconciles a payment claim against the order and either commits it
// or parks it for human confirmation.
//
// A positive ClaimedAmount is the expected amount for reconciliation and overrides the
// order's remaining balance; without a claim the remaining balance is expected.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (*RecordResult, error) {
	if appErr := validateInput(&in); appErr != nil {
		return nil, appErr
	}

	o, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, s.rejectClosed(ctx, o, in, in.ClaimedAmount)
	}

	expected := in.ClaimedAmount
	if expected <= 0 {
		expected = o.RemainingBalance
	}
	if expected <= 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("order %s has nothing left to pay", o.ID), errors.ErrCodeNothingDue)
	}

	var candidates []Candidate
	if in.ProofReference != "" && s.extractor != nil {
		candidates, err = s.extractor.Extract(ctx, in.ProofReference)
		if err != nil {
			s.logger.Error("amount extraction failed",
				"order_id", o.ID,
				"proof_reference", in.ProofReference,
				"error", err)
			return nil, errors.NewExternalError("could not read the payment proof", errors.ErrCodeExtractionFailed, err)
		}
	}

	decision := s.reconciler.Reconcile(expected, candidates)
	if decision.Suspicious {
		return s.escalate(ctx, o, in, decision)
	}

	amountInput := in.ClaimedAmount
	if amountInput <= 0 {
		amountInput = decision.Amount
	}
	return s.commit(ctx, commitRequest{
		orderID:        o.ID,
		actorID:        in.ActorID,
		amountInput:    amountInput,
		amount:         decision.Amount,
		expected:       expected,
		method:         in.Method,
		proofReference: in.ProofReference,
		notes:          in.Notes,
	})
}

func (s *Service) escalate(ctx context.Context, o *order.Order, in RecordPaymentInput, d Decision) (*RecordResult, error) {
	now := s.clock.Now()
	p := PendingConfirmation{
		ActorID:         in.ActorID,
		OrderID:         o.ID,
		ExpectedAmount:  d.Expected,
		CandidateAmount: d.Candidate.Amount,
		AmountInput:     in.ClaimedAmount,
		ProofReference:  in.ProofReference,
		Method:          in.Method,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.pendingTTL),
	}
	if err := s.pending.Put(ctx, p); err != nil {
		return nil, errors.NewInternalError("failed to store pending confirmation", err)
	}

	audit, err := s.newRecord(o.ID, in.ActorID, d.Candidate.Amount, 0, in.Method, RecordPendingReview, in.ProofReference,
		fmt.Sprintf("expected %d, extracted %d (%s)", d.Expected, d.Candidate.Amount, d.Candidate.Provenance))
	if err != nil {
		return nil, err
	}
	if err := s.records.Append(ctx, audit); err != nil {
		return nil, errors.NewInternalError("failed to append payment record", err)
	}

	s.logger.Warn("payment amount needs confirmation",
		"order_id", o.ID,
		"actor", in.ActorID,
		"expected_amount", d.Expected,
		"candidate_amount", d.Candidate.Amount,
		"provenance", d.Candidate.Provenance)

	if s.publisher != nil {
		evt := events.NewPaymentNeedsReviewEvent(o.ID, in.ActorID, d.Expected, d.Candidate.Amount)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Error("failed to publish payment review event", "order_id", o.ID, "error", err)
		}
	}

	expiresAt := p.ExpiresAt
	return &RecordResult{
		Status:          ResultPendingConfirmation,
		ExpectedAmount:  d.Expected,
		CandidateAmount: d.Candidate.Amount,
		ExpiresAt:       &expiresAt,
		Message: fmt.Sprintf("Nominal di bukti transfer %s berbeda dari tagihan %s. Balas YES untuk memakai %s atau NO untuk memakai %s.",
			money.IDR(d.Candidate.Amount), money.IDR(d.Expected), money.IDR(d.Candidate.Amount), money.IDR(d.Expected)),
	}, nil
}

// ResolvePendingConfirmation commits the extracted amount on accept and the expected amount otherwise.
// An empty orderID picks the actor's most recent pending confirmation.
func (s *Service) ResolvePendingConfirmation(ctx context.Context, actorID, orderID string, accept bool) (*RecordResult, error) {
	var (
		p   *PendingConfirmation
		err error
	)
	if orderID == "" {
		p, err = s.pending.Latest(ctx, actorID)
	} else {
		p, err = s.pending.Get(ctx, actorID, orderID)
	}
	if err != nil {
		return nil, err
	}

	amount := p.ExpectedAmount
	if accept {
		amount = p.CandidateAmount
	}
	amountInput := p.AmountInput
	if amountInput <= 0 {
		amountInput = p.CandidateAmount
	}

	req := commitRequest{
		orderID:        p.OrderID,
		actorID:        actorID,
		amountInput:    amountInput,
		amount:         amount,
		expected:       p.ExpectedAmount,
		method:         p.Method,
		proofReference: p.ProofReference,
		notes:          fmt.Sprintf("confirmed by reply (accept=%t)", accept),
	}

	var (
		rec     *Record
		updated *order.Order
	)
	err = s.locked(ctx, p.OrderID, func(ctx context.Context) error {
		// a duplicate reply that waited on the lock finds the entry already consumed
		if _, err := s.pending.Get(ctx, actorID, p.OrderID); err != nil {
			return err
		}

		var applyErr error
		rec, updated, applyErr = s.apply(ctx, req)
		// contention and infrastructure errors keep the entry so the reply can be retried
		if applyErr == nil || errors.IsType(applyErr, errors.ErrorTypeState) {
			if err := s.pending.Delete(ctx, actorID, p.OrderID); err != nil {
				s.logger.Error("failed to delete pending confirmation", "order_id", p.OrderID, "error", err)
			}
		}
		return applyErr
	})
	if err != nil {
		return nil, err
	}
	result := s.accepted(ctx, req, rec, updated)

	s.logger.Info("pending payment resolved",
		"order_id", p.OrderID,
		"actor", actorID,
		"accepted", accept,
		"amount", amount)
	return result, nil
}

type commitRequest struct {
	orderID        string
	actorID        string
	amountInput    int64
	amount         int64
	expected       int64
	method         Method
	proofReference string
	notes          string
}

func (s *Service) commit(ctx context.Context, req commitRequest) (*RecordResult, error) {
	var (
		rec     *Record
		updated *order.Order
	)
	err := s.locked(ctx, req.orderID, func(ctx context.Context) error {
		var err error
		rec, updated, err = s.apply(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.accepted(ctx, req, rec, updated), nil
}

func (s *Service) locked(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	err := lock.WithLock(ctx, s.guard, orderID, fn)
	if stdErrors.Is(err, errors.ErrOrderLocked) {
		s.logger.Warn("payment commit hit a locked order", "order_id", orderID)
	}
	return err
}

// apply appends a confirmed record and recomputes the order's ledger. Callers hold the order lock.
func (s *Service) apply(ctx context.Context, req commitRequest) (*Record, *order.Order, error) {
	o, err := s.orders.Get(ctx, req.orderID)
	if err != nil {
		return nil, nil, err
	}
	// the order may have closed while the claim was being reconciled
	if o.Status.IsTerminal() {
		return nil, nil, s.rejectClosed(ctx, o, RecordPaymentInput{
			OrderID:        o.ID,
			ActorID:        req.actorID,
			Method:         req.method,
			ProofReference: req.proofReference,
		}, req.amountInput)
	}

	rec, err := s.newRecord(o.ID, req.actorID, req.amountInput, req.amount, req.method, RecordConfirmed, req.proofReference, req.notes)
	if err != nil {
		return nil, nil, err
	}
	if err := s.records.Append(ctx, rec); err != nil {
		return nil, nil, errors.NewInternalError("failed to append payment record", err)
	}

	all, err := s.records.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to load payment records", err)
	}
	if err := o.ApplyPaid(ConfirmedTotal(all)); err != nil {
		return nil, nil, err
	}
	o.UpdatedAt = s.clock.Now()

	updated, err := s.orders.Upsert(ctx, o)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to update order balance", err)
	}
	return rec, updated, nil
}

func (s *Service) accepted(ctx context.Context, req commitRequest, rec *Record, updated *order.Order) *RecordResult {
	summary := updated.Ledger()
	s.logger.Info("payment recorded",
		"order_id", updated.ID,
		"payment_id", rec.PaymentID,
		"amount", req.amount,
		"paid_amount", summary.PaidAmount,
		"payment_status", summary.PaymentStatus)

	if s.publisher != nil {
		evt := events.NewPaymentRecordedEvent(rec.PaymentID, updated.ID, rec.AmountConfirmed,
			summary.PaidAmount, summary.RemainingBalance, string(summary.PaymentStatus), req.actorID)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Error("failed to publish payment event", "order_id", updated.ID, "error", err)
		}
	}

	return &RecordResult{
		Status:         ResultAccepted,
		Payment:        rec,
		Ledger:         &summary,
		ExpectedAmount: req.expected,
		Message: fmt.Sprintf("Pembayaran %s untuk pesanan %s diterima. Status: %s, sisa tagihan %s.",
			money.IDR(req.amount), updated.ID, summary.PaymentStatus, money.IDR(summary.RemainingBalance)),
	}
}

// rejectClosed keeps an audit row for a payment against a closed order and returns the state error.
func (s *Service) rejectClosed(ctx context.Context, o *order.Order, in RecordPaymentInput, amountInput int64) error {
	rec, err := s.newRecord(o.ID, in.ActorID, amountInput, 0, in.Method, RecordRejected, in.ProofReference,
		fmt.Sprintf("order is %s", o.Status))
	if err != nil {
		return err
	}
	if err := s.records.Append(ctx, rec); err != nil {
		s.logger.Error("failed to append rejected payment record", "order_id", o.ID, "error", err)
	}

	s.logger.Warn("payment rejected for closed order", "order_id", o.ID, "status", o.Status, "actor", in.ActorID)
	return errors.NewStateError(
		fmt.Sprintf("order %s is %s and cannot take payments", o.ID, o.Status),
		errors.ErrCodeOrderClosed,
	)
}

func (s *Service) newRecord(orderID, actorID string, amountInput, amountConfirmed int64, method Method, status RecordStatus, proofRef, notes string) (*Record, error) {
	id, err := NewPaymentID()
	if err != nil {
		return nil, errors.NewInternalError("failed to generate payment id", err)
	}

	now := s.clock.Now()
	rec := &Record{
		PaymentID:       id,
		OrderID:         orderID,
		AmountInput:     amountInput,
		AmountConfirmed: amountConfirmed,
		Method:          method,
		Status:          status,
		CreatedBy:       actorID,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if proofRef != "" {
		rec.ProofReference = &proofRef
	}
	return rec, nil
}

func (s *Service) ListPayments(ctx context.Context, orderID string) ([]*Record, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	records, err := s.records.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list payments", err)
	}
	return records, nil
}
