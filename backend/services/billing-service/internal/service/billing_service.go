package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"careportal/backend/services/billing-service/internal/clients"
	"careportal/backend/services/billing-service/internal/models"
)

const (
	energyScale    = 3
	amountScale    = 2
	maxListLimit   = 200
	defaultListLen = 50
)

// RateResolver looks up the rate in effect for a customer.
type RateResolver interface {
	Resolve(ctx context.Context, customerID string) (*clients.ResolvedRate, error)
}

// TransactionStore persists transactions.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]models.Transaction, error)
}

// BillingService handles transaction creation.
type BillingService struct {
	txRepo TransactionStore
	rates  RateResolver
	logger *zap.Logger
}

// NewBillingService builds service.
func NewBillingService(txRepo TransactionStore, rates RateResolver, logger *zap.Logger) *BillingService {
	return &BillingService{
		txRepo: txRepo,
		rates:  rates,
		logger: logger,
	}
}

// PaymentInput represents a prepaid payment.
type PaymentInput struct {
	CustomerID string          `json:"customer_id" validate:"required,max=64"`
	Amount     decimal.Decimal `json:"amount_lsl" validate:"-"`
	Reference  string          `json:"reference" validate:"max=128"`
	RecordedBy string          `json:"recorded_by" validate:"required"`
}

// RecordPayment converts amount into energy at the customer's resolved rate and stores it.
func (s *BillingService) RecordPayment(ctx context.Context, input PaymentInput) (*models.Transaction, error) {
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	input.Reference = strings.TrimSpace(input.Reference)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount_lsl", Message: "must be greater than zero"}
	}
	if !input.Amount.Equal(input.Amount.Truncate(amountScale)) {
		return nil, &ValidationError{Field: "amount_lsl", Message: fmt.Sprintf("must have at most %d decimal places", amountScale)}
	}

	resolved, err := s.rates.Resolve(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, clients.ErrCustomerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, input.CustomerID)
		}
		s.logger.Warn("rate resolution failed", zap.String("customer_id", input.CustomerID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	tx := &models.Transaction{
		ID:            uuid.NewString(),
		CustomerID:    input.CustomerID,
		Amount:        input.Amount,
		EnergyKWh:     input.Amount.DivRound(resolved.Rate, energyScale),
		Rate:          resolved.Rate,
		RateSource:    resolved.Source,
		RateSourceKey: resolved.SourceKey,
		Reference:     input.Reference,
		RecordedBy:    input.RecordedBy,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info("billing transaction created",
		zap.String("customer_id", tx.CustomerID),
		zap.String("amount", tx.Amount.String()),
		zap.String("energy_kwh", tx.EnergyKWh.String()),
		zap.String("rate", tx.Rate.String()),
		zap.String("rate_source", tx.RateSource),
	)
	return tx, nil
}

// TransactionsForCustomer returns history for given customer, newest first.
func (s *BillingService) TransactionsForCustomer(ctx context.Context, customerID string, limit int) ([]models.Transaction, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, &ValidationError{Field: "customer_id", Message: "is required"}
	}
	switch {
	case limit == 0:
		limit = defaultListLen
	case limit < 0 || limit > maxListLimit:
		return nil, &ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxListLimit)}
	}

	txs, err := s.txRepo.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}
