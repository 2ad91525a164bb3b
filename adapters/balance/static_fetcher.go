package balance

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/tollgate-labs/tollgate/ports"
)

// StaticFetcher serves balances from a fixed in-memory table. Used in tests
// and for local development without a chain endpoint. Address lookup is
// case-insensitive, matching how hex chain addresses compare.
type StaticFetcher struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
	err      error
}

// NewStaticFetcher creates a fetcher preloaded with the given balances
func NewStaticFetcher(balances map[string]*big.Int) *StaticFetcher {
	normalized := make(map[string]*big.Int, len(balances))
	for addr, bal := range balances {
		normalized[strings.ToLower(addr)] = bal
	}
	return &StaticFetcher{balances: normalized}
}

var _ ports.BalanceFetcher = (*StaticFetcher)(nil)

// FetchBalance returns the configured balance, zero for unknown addresses
func (f *StaticFetcher) FetchBalance(ctx context.Context, address string) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.err != nil {
		return nil, f.err
	}

	if bal, ok := f.balances[strings.ToLower(address)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// SetBalance updates the balance of one address
func (f *StaticFetcher) SetBalance(address string, bal *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[strings.ToLower(address)] = bal
}

// FailWith makes every subsequent fetch return err
func (f *StaticFetcher) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
