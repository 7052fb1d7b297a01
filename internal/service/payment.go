package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/shopspring/decimal"
)

const defaultPaymentTimeout = 10 * time.Second

// PaymentRequest is the validated input for settling a bill with one tender.
type PaymentRequest struct {
	Method          string
	AmountReceived  string
	ReferenceNumber string
	ProcessedBy     uuid.UUID
}

// SettleRequest is what the payment collaborator is asked to capture.
type SettleRequest struct {
	Method    string
	Amount    decimal.Decimal
	Tendered  decimal.Decimal
	Reference string
}

// Settlement is a captured payment. Once returned it cannot be undone.
type Settlement struct {
	Method    string          `json:"payment_method"`
	Amount    decimal.Decimal `json:"amount"`
	Tendered  decimal.Decimal `json:"amount_received"`
	Change    decimal.Decimal `json:"change_amount"`
	Reference string          `json:"reference_number,omitempty"`
	SettledAt time.Time       `json:"settled_at"`
}

// PaymentGateway captures payments.
type PaymentGateway interface {
	Settle(ctx context.Context, req SettleRequest) (Settlement, error)
}

// CashDrawer settles at the counter: cash with change, or QRIS/transfer
// confirmed by a reference number for the exact amount.
type CashDrawer struct {
	now func() time.Time
}

func NewCashDrawer() *CashDrawer {
	return &CashDrawer{now: time.Now}
}

func (c *CashDrawer) Settle(ctx context.Context, req SettleRequest) (Settlement, error) {
	if err := ctx.Err(); err != nil {
		return Settlement{}, err
	}

	s := Settlement{
		Method:    req.Method,
		Amount:    req.Amount,
		Reference: req.Reference,
		SettledAt: c.now(),
	}
	switch req.Method {
	case enum.PaymentMethodCash:
		if req.Tendered.LessThan(req.Amount) {
			return Settlement{}, errors.Wrapf(ErrInsufficientTender, "tendered %s, due %s", req.Tendered.StringFixed(2), req.Amount.StringFixed(2))
		}
		s.Tendered = req.Tendered
		s.Change = req.Tendered.Sub(req.Amount)
	case enum.PaymentMethodQRIS, enum.PaymentMethodTransfer:
		if req.Reference == "" {
			return Settlement{}, ErrReferenceRequired
		}
		s.Tendered = req.Amount
		s.Change = decimal.Zero
	default:
		return Settlement{}, ErrInvalidPaymentMethod
	}
	return s, nil
}

// validate checks the request shape before any side effect.
func (r PaymentRequest) validate() error {
	switch r.Method {
	case enum.PaymentMethodCash:
		if _, err := decimal.NewFromString(r.AmountReceived); err != nil {
			return ErrInvalidAmount
		}
	case enum.PaymentMethodQRIS, enum.PaymentMethodTransfer:
		if r.ReferenceNumber == "" {
			return ErrReferenceRequired
		}
	default:
		return ErrInvalidPaymentMethod
	}
	return nil
}

// settle asks the gateway to capture amount within the configured timeout.
// A timeout is a plain failure the caller must retry.
func (c *Core) settle(ctx context.Context, req PaymentRequest, amount decimal.Decimal) (Settlement, error) {
	tendered := amount
	if req.Method == enum.PaymentMethodCash {
		tendered, _ = decimal.NewFromString(req.AmountReceived)
	}

	timeout := c.PaymentTimeout
	if timeout <= 0 {
		timeout = defaultPaymentTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s, err := c.Payments.Settle(sctx, SettleRequest{
		Method:    req.Method,
		Amount:    amount,
		Tendered:  tendered,
		Reference: req.ReferenceNumber,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Settlement{}, errors.Wrapf(ErrPaymentTimeout, "after %s", timeout)
		}
		return Settlement{}, err
	}
	return s, nil
}

func paymentParams(tabID, orderID pgtype.UUID, s Settlement, processedBy uuid.UUID) database.CreatePaymentParams {
	p := database.CreatePaymentParams{
		TabID:           tabID,
		OrderID:         orderID,
		PaymentMethod:   s.Method,
		Amount:          decimalToNumeric(s.Amount),
		ReferenceNumber: optionalText(s.Reference),
		ProcessedBy:     processedBy,
	}
	if s.Method == enum.PaymentMethodCash {
		p.AmountReceived = decimalToNumeric(s.Tendered)
		p.ChangeAmount = decimalToNumeric(s.Change)
	}
	return p
}
