// Package snapshot fetches off-chain governance proposals from the Snapshot
// hub GraphQL API, one page per call. Pagination is driven by the caller:
// each page carries the created timestamp of its last row, which becomes the
// created_gt filter of the next request.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/daostar/proposals-api/src/proposals/data"
	"github.com/daostar/proposals-api/src/proposals/graphql"
	"github.com/daostar/proposals-api/src/proposals/metrics"
	"github.com/daostar/proposals-api/src/proposals/types"
)

const proposalsQuery = `
query ($where: ProposalWhere!, $orderDirection: OrderDirection!) {
  proposals(where: $where, orderDirection: $orderDirection) {
    id
    ipfs
    author
    created
    updated
    network
    symbol
    type
    plugins
    title
    body
    discussion
    choices
    start
    end
    quorum
    quorumType
    privacy
    snapshot
    state
    link
    scores
    scores_by_strategy
    scores_state
    scores_total
    scores_updated
    votes
    flagged
  }
}`

// Page is one page of off-chain proposals. NextCursor is nil when the page
// is empty (no more data).
type Page struct {
	Proposals  []types.Proposal
	NextCursor *int64
}

type Fetcher struct {
	gql      *graphql.Client
	store    data.Store
	endpoint string
	ttl      time.Duration
}

func New(gql *graphql.Client, store data.Store, endpoint string, ttl time.Duration) *Fetcher {
	return &Fetcher{gql: gql, store: store, endpoint: endpoint, ttl: ttl}
}

// FetchPage returns one page of proposals for space, filtered to rows
// created after cursor when one is given. Results are cached per query shape
// for the configured TTL; refresh skips the lookup but still rewrites the
// entry.
func (f *Fetcher) FetchPage(ctx context.Context, space, direction string, cursor *int64, refresh bool) (Page, error) {
	if direction == "" {
		direction = "asc"
	}

	cursorSeg := ""
	if cursor != nil {
		cursorSeg = strconv.FormatInt(*cursor, 10)
	}
	key := data.PageKey("proposals", space, direction, cursorSeg)

	if !refresh {
		if raw, ok := f.store.Get(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues("offchain", "hit").Inc()
			var next int64
			proposals, err := data.DecodePage(raw, &next)
			if err == nil {
				page := Page{Proposals: proposals}
				if len(proposals) > 0 {
					page.NextCursor = &next
				}
				return page, nil
			}
			log.Printf("snapshot: corrupt cache entry %s: %v", key, err)
		} else {
			metrics.CacheLookups.WithLabelValues("offchain", "miss").Inc()
		}
	}

	where := map[string]any{"space": space}
	if cursor != nil {
		where["created_gt"] = *cursor
	}
	payload := graphql.Payload{
		Query: proposalsQuery,
		Variables: map[string]any{
			"where":          where,
			"orderDirection": direction,
		},
	}

	raw, err := f.gql.Do(ctx, f.endpoint, payload, nil)
	if err != nil {
		return Page{}, fmt.Errorf("fetch proposals for %s: %w", space, err)
	}

	var resp struct {
		Data struct {
			Proposals []types.Proposal `json:"proposals"`
		} `json:"data"`
	}
	if raw == nil || json.Unmarshal(raw, &resp) != nil || resp.Data.Proposals == nil {
		// Terminal empty page: nothing beyond the cursor, or a body we
		// cannot read. Either way there is nothing further to paginate.
		return Page{}, nil
	}

	page := Page{Proposals: resp.Data.Proposals}
	if len(page.Proposals) > 0 {
		created, err := extractCreated(page.Proposals[len(page.Proposals)-1])
		if err != nil {
			return Page{}, fmt.Errorf("extract cursor for %s: %w", space, err)
		}
		page.NextCursor = &created
	}

	encoded, err := data.EncodePage(page.Proposals, page.NextCursor)
	if err != nil {
		log.Printf("snapshot: cache encode %s: %v", key, err)
		return page, nil
	}
	f.store.Set(ctx, key, encoded, f.ttl)

	return page, nil
}

func extractCreated(proposal types.Proposal) (int64, error) {
	var fields struct {
		Created int64 `json:"created"`
	}
	if err := json.Unmarshal(proposal, &fields); err != nil {
		return 0, fmt.Errorf("parse created field: %w", err)
	}
	return fields.Created, nil
}
