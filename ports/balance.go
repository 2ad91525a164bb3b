package ports

import (
	"context"
	"math/big"
)

// BalanceFetcher is the external collaborator that reads the token balance
// of an address from the chain. Implementations may block on network I/O and
// must honor context cancellation.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context, address string) (*big.Int, error)
}
