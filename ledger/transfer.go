package ledger

import "context"

// FundsTransferer moves a withdrawn treasury amount to the owner's address.
//
// WithdrawFunds invokes the transferer inside its atomic unit: if the
// transfer returns an error the balance decrement is rolled back and the
// operation fails with ErrTransferFailed. Implementations must honor ctx
// cancellation so a slow payout cannot leave the ledger locked.
type FundsTransferer interface {
	Transfer(ctx context.Context, to Address, amount Money) error
}

// TransferFunc adapts a plain function to the FundsTransferer interface.
type TransferFunc func(ctx context.Context, to Address, amount Money) error

// Transfer calls the wrapped function.
func (f TransferFunc) Transfer(ctx context.Context, to Address, amount Money) error {
	return f(ctx, to, amount)
}
