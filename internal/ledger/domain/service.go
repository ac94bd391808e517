package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type CreateObligationRequest struct {
	ClientID      string
	Amount        decimal.Decimal
	DueDate       time.Time
	Status        string
	PaymentMethod string
	Notes         string
}

type UpdateObligationRequest struct {
	Amount        *decimal.Decimal
	Status        *string
	PaymentMethod *string
	Notes         *string
}

type ListObligationRequest struct {
	ClientID      string
	Status        string
	DueFrom       *time.Time
	DueTo         *time.Time
	AutoGenerated *bool
}

type ListObligationResponse struct {
	Obligations []Obligation `json:"obligations"`
}

type ReconcileRequest struct {
	AsOf *time.Time
}

type ReconcileResult struct {
	AsOf    time.Time `json:"as_of"`
	Updated int64     `json:"updated"`
}

type Service interface {
	Create(ctx context.Context, req CreateObligationRequest) (Obligation, error)
	Get(ctx context.Context, id string) (Obligation, error)
	List(ctx context.Context, req ListObligationRequest) (ListObligationResponse, error)
	Update(ctx context.Context, id string, req UpdateObligationRequest) (Obligation, error)
	Delete(ctx context.Context, id string) error
	Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResult, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidDueDate   = errors.New("invalid_due_date")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrStatusConflict   = errors.New("status_conflict")
	ErrNotFound         = errors.New("not_found")
	ErrStoreUnavailable = errors.New("store_unavailable")
)
