package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"chainhire/internal/chain"
	"chainhire/internal/middleware"
	"chainhire/internal/models"
	"chainhire/internal/notifications"
	"chainhire/internal/observability"
	"chainhire/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

const reconcileBatch = 50

// TransferVerifier classifies an on-chain transfer. *chain.Verifier and *chain.Client satisfy it.
type TransferVerifier interface {
	VerifyTransfer(ctx context.Context, hash string, exp chain.Expectation) (*chain.Result, error)
}

// PaymentSettings are the job posting fee parameters.
type PaymentSettings struct {
	FeeETH        string
	Recipient     string
	ChainID       int64
	Confirmations uint64
	ExplorerTxURL string
	// Timeout bounds the chain calls of one verification.
	Timeout time.Duration
	// PendingTTL is how long a payment may stay unconfirmed before the sweep fails it.
	PendingTTL time.Duration
}

// Quote tells a client what to send before posting a job.
type Quote struct {
	Amount     string `json:"amount"`
	AmountWei  string `json:"amount_wei"`
	Currency   string `json:"currency"`
	Recipient  string `json:"recipient"`
	ChainID    int64  `json:"chain_id"`
	Blockchain string `json:"blockchain"`
}

// ReconcileReport summarises one pass over pending payments.
type ReconcileReport struct {
	Checked      int `json:"checked"`
	Confirmed    int `json:"confirmed"`
	Failed       int `json:"failed"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}

type PaymentService struct {
	payments repository.PaymentRepository
	jobs     repository.JobRepository
	verifier TransferVerifier
	settings PaymentSettings
	fee      *big.Int
	isAdmin  AdminChecker
	events   EventPublisher
}

func NewPaymentService(
	payments repository.PaymentRepository,
	jobs repository.JobRepository,
	verifier TransferVerifier,
	settings PaymentSettings,
	isAdmin AdminChecker,
	events EventPublisher,
) (*PaymentService, error) {
	fee, err := chain.ParseEther(settings.FeeETH)
	if err != nil {
		return nil, fmt.Errorf("job posting fee: %w", err)
	}
	if fee.Sign() <= 0 {
		return nil, errors.New("job posting fee must be positive")
	}
	if !chain.IsEVMAddress(settings.Recipient) {
		return nil, fmt.Errorf("platform wallet %q is not an EVM address", settings.Recipient)
	}
	settings.Recipient = strings.ToLower(settings.Recipient)
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.PendingTTL <= 0 {
		settings.PendingTTL = 24 * time.Hour
	}
	return &PaymentService{
		payments: payments,
		jobs:     jobs,
		verifier: verifier,
		settings: settings,
		fee:      fee,
		isAdmin:  isAdmin,
		events:   eventsOrNoop(events),
	}, nil
}

func (s *PaymentService) Quote() Quote {
	return Quote{
		Amount:     chain.FormatEther(s.fee),
		AmountWei:  s.fee.String(),
		Currency:   models.CurrencyETH,
		Recipient:  s.settings.Recipient,
		ChainID:    s.settings.ChainID,
		Blockchain: models.BlockchainEthereum,
	}
}

// Verify checks hash against the fee expectation. expectedFrom may be "" to accept any sender.
func (s *PaymentService) Verify(ctx context.Context, hash, expectedFrom string) (*chain.Result, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: no chain RPC configured", chain.ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	res, err := s.verifier.VerifyTransfer(ctx, hash, chain.Expectation{
		To:            common.HexToAddress(s.settings.Recipient),
		MinValue:      s.fee,
		From:          expectedFrom,
		Confirmations: s.settings.Confirmations,
	})
	if err != nil {
		observability.PaymentVerifications.WithLabelValues("error").Inc()
		return nil, err
	}
	observability.PaymentVerifications.WithLabelValues(res.Status).Inc()
	return res, nil
}

// newPayment builds the payment row for a verification result.
func (s *PaymentService) newPayment(userID uint, hash string, res *chain.Result) *models.Payment {
	p := &models.Payment{
		UserID:          userID,
		Amount:          chain.FormatEther(s.fee),
		AmountWei:       s.fee.String(),
		Currency:        models.CurrencyETH,
		TransactionHash: hash,
		FromAddress:     res.From,
		ToAddress:       res.To,
		Blockchain:      models.BlockchainEthereum,
		ChainID:         s.settings.ChainID,
		Status:          res.Status,
		FailureReason:   res.Reason,
		BlockNumber:     res.BlockNumber,
		ExplorerURL:     s.settings.ExplorerTxURL + hash,
	}
	if res.Value != nil && res.Value.Sign() > 0 {
		p.Amount = chain.FormatEther(res.Value)
		p.AmountWei = res.Value.String()
	}
	if res.Confirmed() {
		p.FailureReason = ""
	}
	return p
}

func (s *PaymentService) ListMine(ctx context.Context, userID uint) ([]*models.Payment, error) {
	return s.payments.ListByUser(ctx, userID)
}

// GetByHash returns a payment to its owner or an admin.
func (s *PaymentService) GetByHash(ctx context.Context, viewerID uint, hash string) (*models.Payment, error) {
	normalized, err := chain.NormalizeTxHash(hash)
	if err != nil {
		return nil, models.NewValidationError("transaction_hash must be a 0x-prefixed 32-byte hex hash")
	}
	payment, err := s.payments.GetByHash(ctx, normalized)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Payment", normalized)
	}
	if err != nil {
		return nil, err
	}
	if payment.UserID != viewerID {
		admin, err := s.checkAdmin(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if !admin {
			// Do not reveal other users' payments.
			return nil, models.NewNotFoundError("Payment", normalized)
		}
	}
	return payment, nil
}

// List returns payments for the admin view, optionally filtered by status.
func (s *PaymentService) List(ctx context.Context, status string, limit, offset int) ([]*models.Payment, error) {
	switch status {
	case "", models.PaymentStatusPending, models.PaymentStatusConfirmed, models.PaymentStatusFailed:
	default:
		return nil, models.NewValidationError("status must be one of: pending, confirmed, failed")
	}
	return s.payments.List(ctx, status, limit, offset)
}

func (s *PaymentService) checkAdmin(ctx context.Context, userID uint) (bool, error) {
	if s.isAdmin == nil {
		return false, nil
	}
	return s.isAdmin(ctx, userID)
}

// ReconcilePending re-verifies pending payments, activating or closing their jobs.
func (s *PaymentService) ReconcilePending(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	pending, err := s.payments.ListPending(ctx, reconcileBatch)
	if err != nil {
		return report, err
	}

	for _, p := range pending {
		report.Checked++
		res, err := s.Verify(ctx, p.TransactionHash, p.FromAddress)
		if err != nil {
			report.Errors++
			middleware.Logger.WarnContext(ctx, "payment re-verification failed",
				"payment_id", p.ID, "tx_hash", p.TransactionHash, "error", err)
			if errors.Is(err, chain.ErrUnavailable) {
				// The node is down; the rest of the batch would fail the same way.
				break
			}
			s.markChecked(ctx, p)
			continue
		}

		switch res.Status {
		case chain.StatusConfirmed:
			job, err := s.confirm(ctx, p, res)
			if err != nil {
				report.Errors++
				middleware.Logger.ErrorContext(ctx, "failed to confirm payment", "payment_id", p.ID, "error", err)
				continue
			}
			if job != nil {
				report.Confirmed++
			}
		case chain.StatusFailed:
			if err := s.fail(ctx, p, res.Reason, res.BlockNumber); err != nil {
				report.Errors++
				continue
			}
			report.Failed++
		default:
			if time.Since(p.CreatedAt) > s.settings.PendingTTL {
				reason := fmt.Sprintf("transaction not confirmed within %s", s.settings.PendingTTL)
				if res.Reason == chain.ReasonNotFound {
					reason = "transaction not found"
				}
				if err := s.fail(ctx, p, reason, res.BlockNumber); err != nil {
					report.Errors++
					continue
				}
				report.Failed++
				continue
			}
			s.markChecked(ctx, p)
			report.StillPending++
		}
	}

	if report.Checked > 0 {
		middleware.Logger.InfoContext(ctx, "reconciled pending payments",
			"checked", report.Checked, "confirmed", report.Confirmed,
			"failed", report.Failed, "pending", report.StillPending, "errors", report.Errors)
	}
	return report, nil
}

// fail marks p failed, closes its job and tells the payer why.
func (s *PaymentService) fail(ctx context.Context, p *models.Payment, reason string, blockNumber *uint64) error {
	if err := s.jobs.FailPayment(ctx, p.ID, reason, blockNumber); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to mark payment failed", "payment_id", p.ID, "error", err)
		return err
	}
	s.events.PublishUser(ctx, p.UserID, notifications.EventPaymentFailed, map[string]any{
		"payment_id":       p.ID,
		"job_id":           p.JobID,
		"transaction_hash": p.TransactionHash,
		"reason":           reason,
	})
	return nil
}

func (s *PaymentService) markChecked(ctx context.Context, p *models.Payment) {
	if err := s.payments.MarkChecked(ctx, p.ID, time.Now()); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to record payment check", "payment_id", p.ID, "error", err)
	}
}

func (s *PaymentService) confirm(ctx context.Context, p *models.Payment, res *chain.Result) (*models.Job, error) {
	var post *models.Post
	if p.JobID != nil {
		job, err := s.jobs.GetByID(ctx, *p.JobID)
		if err != nil {
			return nil, err
		}
		post = jobAnnouncement(job)
	}

	job, err := s.jobs.ConfirmPayment(ctx, p.ID, res.BlockNumber, post)
	if err != nil || job == nil {
		return job, err
	}
	announceJob(ctx, s.events, job, p, post)
	return job, nil
}

// RunReconciler sweeps pending payments every interval until ctx is done.
func (s *PaymentService) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcilePending(ctx); err != nil && ctx.Err() == nil {
				middleware.Logger.ErrorContext(ctx, "payment reconciliation failed", "error", err)
			}
		}
	}
}
