// Package ledger talks to the external value-transfer network. Transfers are
// submit-and-confirm: a returned transfer id means the network accepted it.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrTransferFailed = errors.New("transfer_failed")
	ErrBalance        = errors.New("balance_unavailable")
)

type TransferRequest struct {
	FromAddress    string
	FromSecret     []byte
	ToAddress      string
	Amount         int64
	Network        string
	IdempotencyKey string
}

type Client interface {
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	GetBalance(ctx context.Context, address, network string) (int64, error)
}

// TransferError carries the reason reported by the network or the transport.
type TransferError struct {
	Reason string
	Status int
}

func (e *TransferError) Error() string {
	if e.Reason == "" {
		return ErrTransferFailed.Error()
	}
	return ErrTransferFailed.Error() + ": " + e.Reason
}

func (e *TransferError) Unwrap() error {
	return ErrTransferFailed
}

// Reason flattens any transfer error into the short code stored on a payout.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var te *TransferError
	if errors.As(err, &te) && te.Reason != "" {
		return te.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return ErrTransferFailed.Error()
}
