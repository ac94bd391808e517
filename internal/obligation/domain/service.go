package domain

import (
	"context"
	"time"
)

type GenerateRequest struct {
	// AsOf overrides the clock. Nil means now.
	AsOf *time.Time
	// ClientID limits the pass to one client. Empty means every client.
	ClientID string
}

// ClientFailure reports a client whose generation pass did not finish.
type ClientFailure struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
}

type GenerateResult struct {
	AsOf             time.Time       `json:"as_of"`
	Horizon          time.Time       `json:"horizon"`
	ClientsProcessed int             `json:"clients_processed"`
	Inserted         int             `json:"inserted"`
	Skipped          int             `json:"skipped"`
	Failures         []ClientFailure `json:"failures"`
}

// Service materializes the obligations implied by client billing
// configurations. Repeated calls never create a second obligation for the
// same client and period.
type Service interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}
