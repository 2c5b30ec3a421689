// Package reconcile matches scanned on-chain transfers against pending
// deposits and settles them.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/internal/adapters/tron"
	"github.com/tronpay-service/tronpay_service/internal/domain/entities"
	domerrors "github.com/tronpay-service/tronpay_service/internal/domain/errors"
	"github.com/tronpay-service/tronpay_service/pkg/logger"
	"github.com/tronpay-service/tronpay_service/pkg/metrics"
	"github.com/tronpay-service/tronpay_service/pkg/usdt"
)

// MatchResult is the outcome of reconciling one transfer
type MatchResult string

const (
	// ResultConfirmed: exactly one pending deposit matched and was credited
	ResultConfirmed MatchResult = "confirmed"
	// ResultNoMatch: no pending deposit carries this amount; recorded for review
	ResultNoMatch MatchResult = "no_match"
	// ResultAlreadyProcessed: this tx hash was seen before; safe to skip
	ResultAlreadyProcessed MatchResult = "already_processed"
	// ResultDataIntegrityFault: storage invariants were violated; recorded
	// for review and escalated in logs
	ResultDataIntegrityFault MatchResult = "data_integrity_fault"
)

// DepositFinder is the deposit lookup surface the reconciler needs
type DepositFinder interface {
	GetByTxHash(ctx context.Context, txHash string) (*entities.Deposit, error)
	FindPendingByPayableAmount(ctx context.Context, amount decimal.Decimal) ([]*entities.Deposit, error)
	ConfirmAndCredit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, txHash *string, confirmedBy string, confirmedAt time.Time) (bool, error)
}

// UnmatchedRecorder persists transfers that could not be settled
type UnmatchedRecorder interface {
	Record(ctx context.Context, transfer *entities.UnmatchedTransfer) error
	ExistsByTxHash(ctx context.Context, txHash string) (bool, error)
}

// Service reconciles scanned transfers into deposit settlements
type Service struct {
	deposits  DepositFinder
	unmatched UnmatchedRecorder
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates a new reconciler
func NewService(deposits DepositFinder, unmatched UnmatchedRecorder, logger *logger.Logger) *Service {
	return &Service{
		deposits:  deposits,
		unmatched: unmatched,
		logger:    logger,
		now:       time.Now,
	}
}

// Reconcile settles a single scanned transfer. It is idempotent per tx
// hash: rescanning an overlapping block range is safe. Every transfer that
// cannot be credited is recorded as unmatched; real funds are never
// silently dropped.
func (s *Service) Reconcile(ctx context.Context, transfer tron.Transfer) (MatchResult, error) {
	result, err := s.reconcile(ctx, transfer)
	if err == nil {
		metrics.ReconcileResultsTotal.WithLabelValues(string(result)).Inc()
	}
	return result, err
}

func (s *Service) reconcile(ctx context.Context, transfer tron.Transfer) (MatchResult, error) {
	// Replay guard: a tx hash that already settled a deposit or was
	// already recorded as unmatched has been fully handled
	existing, err := s.deposits.GetByTxHash(ctx, transfer.TxHash)
	if err != nil && !domerrors.IsNotFound(err) {
		return "", fmt.Errorf("failed to look up tx hash: %w", err)
	}
	if existing != nil {
		return ResultAlreadyProcessed, nil
	}

	recorded, err := s.unmatched.ExistsByTxHash(ctx, transfer.TxHash)
	if err != nil {
		return "", fmt.Errorf("failed to check unmatched transfers: %w", err)
	}
	if recorded {
		return ResultAlreadyProcessed, nil
	}

	amount := usdt.Normalize(transfer.Amount)
	matches, err := s.deposits.FindPendingByPayableAmount(ctx, amount)
	if err != nil {
		return "", fmt.Errorf("failed to match transfer by amount: %w", err)
	}

	switch {
	case len(matches) == 0:
		if err := s.record(ctx, transfer, entities.UnmatchedNoMatch); err != nil {
			return "", err
		}
		s.logger.Warn("Transfer matched no pending deposit",
			"tx_hash", transfer.TxHash,
			"amount", usdt.Format(amount),
			"from", transfer.From)
		return ResultNoMatch, nil

	case len(matches) > 1:
		// The partial unique index makes this impossible; reaching here
		// means the database constraints are not what the code assumes
		if err := s.record(ctx, transfer, entities.UnmatchedAmbiguous); err != nil {
			return "", err
		}
		s.logger.Error("Multiple pending deposits share one payable amount",
			"tx_hash", transfer.TxHash,
			"amount", usdt.Format(amount),
			"match_count", len(matches))
		return ResultDataIntegrityFault, nil
	}

	deposit := matches[0]
	txHash := transfer.TxHash
	applied, err := s.deposits.ConfirmAndCredit(ctx, deposit.ID, amount, &txHash, entities.ConfirmedBySystem, s.now().UTC())
	if err != nil {
		if domerrors.IsDataIntegrity(err) {
			if recErr := s.record(ctx, transfer, entities.UnmatchedAmbiguous); recErr != nil {
				return "", recErr
			}
			s.logger.Error("Tx hash collision during settlement",
				"tx_hash", transfer.TxHash,
				"deposit_id", deposit.ID.String())
			return ResultDataIntegrityFault, nil
		}
		return "", fmt.Errorf("failed to settle deposit %s: %w", deposit.ID, err)
	}
	if !applied {
		// The deposit left pending between the match and the settlement
		// (expired, cancelled or settled by an operator). Funds arrived
		// for real, so hand it to manual reconciliation.
		if err := s.record(ctx, transfer, entities.UnmatchedAlreadyFinalized); err != nil {
			return "", err
		}
		s.logger.Warn("Matched deposit left pending before settlement",
			"tx_hash", transfer.TxHash,
			"deposit_id", deposit.ID.String())
		return ResultNoMatch, nil
	}

	metrics.DepositTransitionsTotal.WithLabelValues(string(entities.DepositStatusConfirmed)).Inc()
	s.logger.Info("Deposit settled from chain",
		"deposit_id", deposit.ID.String(),
		"user_id", deposit.UserID.String(),
		"tx_hash", transfer.TxHash,
		"amount", usdt.Format(amount),
		"block", transfer.BlockNumber)
	return ResultConfirmed, nil
}

func (s *Service) record(ctx context.Context, transfer tron.Transfer, reason entities.UnmatchedReason) error {
	unmatched := &entities.UnmatchedTransfer{
		ID:             uuid.New(),
		TxHash:         transfer.TxHash,
		FromAddress:    transfer.From,
		Amount:         usdt.Normalize(transfer.Amount),
		BlockNumber:    transfer.BlockNumber,
		BlockTimestamp: transfer.BlockTimestamp,
		Reason:         reason,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.unmatched.Record(ctx, unmatched); err != nil {
		return fmt.Errorf("failed to record unmatched transfer: %w", err)
	}
	return nil
}
