package balance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/tollgate-labs/tollgate/ports"
)

// balanceOfSelector is the first four bytes of keccak256("balanceOf(address)")
var balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// ChainFetcher reads balances over an Ethereum-compatible RPC endpoint.
// With a token contract configured it calls ERC-20 balanceOf; otherwise it
// reads the native coin balance.
type ChainFetcher struct {
	client *ethclient.Client
	token  common.Address // zero address means native balance
}

// NewChainFetcher creates a fetcher against the given client. Pass the zero
// address as token to gate on the native coin balance.
func NewChainFetcher(client *ethclient.Client, token common.Address) *ChainFetcher {
	return &ChainFetcher{
		client: client,
		token:  token,
	}
}

var _ ports.BalanceFetcher = (*ChainFetcher)(nil)

// FetchBalance returns the raw balance of the address at the latest block
func (f *ChainFetcher) FetchBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	holder := common.HexToAddress(address)

	if f.token == (common.Address{}) {
		bal, err := f.client.BalanceAt(ctx, holder, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch native balance: %w", err)
		}
		return bal, nil
	}

	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(holder.Bytes(), 32)...)

	out, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &f.token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty balanceOf response from %s", f.token)
	}

	return new(big.Int).SetBytes(out), nil
}
