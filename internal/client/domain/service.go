package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	obligationdomain "github.com/smallbiznis/clientdesk/internal/obligation/domain"
	"github.com/smallbiznis/clientdesk/pkg/db/pagination"
)

type ListClientRequest struct {
	PageToken string
	PageSize  int
	Name      string
	Status    string
}

type ListClientFilter struct {
	Name   string
	Status Status
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

// BillingInput is the user-supplied billing configuration.
type BillingInput struct {
	Enabled    bool
	Amount     decimal.Decimal
	Frequency  string
	BillingDay int
	StartDate  time.Time
	Active     *bool
}

type CreateClientRequest struct {
	Name          string
	Email         string
	Phone         string
	Website       string
	ContactPerson string
	Status        string
	Notes         string
	Billing       *BillingInput
}

type UpdateClientRequest struct {
	Name          *string
	Email         *string
	Phone         *string
	Website       *string
	ContactPerson *string
	Status        *string
	Notes         *string
}

type UpdateBillingRequest struct {
	ClientID string
	Billing  BillingInput
	// AsOf pins the follow-up generation pass. Nil means now.
	AsOf *time.Time
}

// SaveResult is returned by writes that may trigger obligation generation.
// Generation is nil when no pass ran.
type SaveResult struct {
	Client     Client                           `json:"client"`
	Generation *obligationdomain.GenerateResult `json:"generation,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateClientRequest) (SaveResult, error)
	List(ctx context.Context, req ListClientRequest) (ListClientResponse, error)
	GetByID(ctx context.Context, id string) (Client, error)
	Update(ctx context.Context, id string, req UpdateClientRequest) (Client, error)
	UpdateBilling(ctx context.Context, req UpdateBillingRequest) (SaveResult, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidEmail  = errors.New("invalid_email")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrNotFound      = errors.New("not_found")
)
