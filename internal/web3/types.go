package web3

import "context"

// ChainSnapshot represents summarized network metadata for reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
}

// Client defines the read-only chain interface exercised by the gated
// chain_lookup action. Implementations must be safe for concurrent use.
type Client interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	BalanceOf(ctx context.Context, address string) (string, error)
	Close()
}
