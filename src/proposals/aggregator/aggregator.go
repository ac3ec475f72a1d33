// Package aggregator orchestrates the two proposal sources for one request
// and assembles the response envelope.
package aggregator

import (
	"context"

	"github.com/daostar/proposals-api/src/proposals/snapshot"
	"github.com/daostar/proposals-api/src/proposals/tally"
	"github.com/daostar/proposals-api/src/proposals/types"
)

// Query is one validated inbound request. OnchainSlug empty means off-chain
// only.
type Query struct {
	Space          string
	OrderDirection string
	OffchainCursor *int64
	OnchainSlug    string
	OnchainCursor  string
	Refresh        bool
}

// Result holds the per-source outcomes. Offchain is always populated when
// Fetch returns no error; Onchain is nil unless a slug was supplied and the
// fetch succeeded. OnchainErr records an on-chain failure without discarding
// the off-chain half.
type Result struct {
	Query      Query
	Offchain   snapshot.Page
	Onchain    *tally.Page
	OnchainErr error
}

type Aggregator struct {
	offchain *snapshot.Fetcher
	onchain  *tally.Fetcher
}

func New(offchain *snapshot.Fetcher, onchain *tally.Fetcher) *Aggregator {
	return &Aggregator{offchain: offchain, onchain: onchain}
}

// Fetch runs the two source fetches sequentially. An off-chain failure fails
// the whole request; an on-chain failure is carried in the result so the
// successful off-chain page survives.
func (a *Aggregator) Fetch(ctx context.Context, q Query) (*Result, error) {
	offchain, err := a.offchain.FetchPage(ctx, q.Space, q.OrderDirection, q.OffchainCursor, q.Refresh)
	if err != nil {
		return nil, err
	}

	result := &Result{Query: q, Offchain: offchain}
	if q.OnchainSlug == "" {
		return result, nil
	}

	onchain, err := a.onchain.FetchPage(ctx, q.OnchainSlug, q.OnchainCursor, q.Refresh)
	if err != nil {
		result.OnchainErr = err
		return result, nil
	}
	result.Onchain = &onchain

	return result, nil
}

// Envelope shapes a result into the response body. An on-chain failure is
// surfaced as onchain_error rather than an ambiguously absent onchain key.
func (r *Result) Envelope() types.Envelope {
	env := types.Envelope{
		Proposals: types.ProposalSet{
			Offchain: r.Offchain.Proposals,
		},
		OffchainCursor: r.Offchain.NextCursor,
		Context:        types.SchemaContext,
		Name:           r.Query.Space,
	}
	if env.Proposals.Offchain == nil {
		env.Proposals.Offchain = []types.Proposal{}
	}

	if r.Onchain != nil {
		env.Proposals.Onchain = r.Onchain.Proposals
		env.OnchainCursor = r.Onchain.NextCursor
	}
	if r.OnchainErr != nil {
		env.OnchainError = r.OnchainErr.Error()
	}

	return env
}
