// Package tally fetches on-chain governance proposals from the Tally API.
// Every call resolves the organization slug first, then pulls one
// cursor-paginated page of proposals; only the page step is cached.
package tally

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/daostar/proposals-api/src/proposals/data"
	"github.com/daostar/proposals-api/src/proposals/graphql"
	"github.com/daostar/proposals-api/src/proposals/metrics"
	"github.com/daostar/proposals-api/src/proposals/types"
)

const organizationsQuery = `
query Organizations($input: OrganizationsInput!) {
  organizations(input: $input) {
    nodes {
      ... on Organization {
        id
        name
        slug
      }
    }
  }
}`

const proposalsQuery = `
query Proposals($input: ProposalsInput!) {
  proposals(input: $input) {
    nodes {
      ... on Proposal {
        id
        onchainId
        status
        quorum
        metadata {
          title
          description
          eta
        }
        creator {
          address
          name
        }
        proposer {
          address
          name
        }
        start {
          ... on Block {
            timestamp
          }
        }
        end {
          ... on Block {
            timestamp
          }
        }
        voteStats {
          type
          votesCount
          votersCount
          percent
        }
        governor {
          id
          name
        }
      }
    }
    pageInfo {
      firstCursor
      lastCursor
    }
  }
}`

const pageLimit = 20

// ErrNoAPIKey reports a missing Tally credential. The credential is only
// required once an on-chain fetch is actually attempted.
var ErrNoAPIKey = errors.New("tally: TALLY_API_KEY is not configured")

// ResolutionError is a failed slug lookup: the organization could not be
// resolved to an id, so no proposals were requested.
type ResolutionError struct {
	Slug string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve organization %q: %v", e.Slug, e.Err)
	}
	return fmt.Sprintf("resolve organization %q: no match", e.Slug)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchError is a failed proposals-page retrieval for a resolved
// organization.
type FetchError struct {
	Slug string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch proposals for %q: %v", e.Slug, e.Err)
	}
	return fmt.Sprintf("fetch proposals for %q: empty response", e.Slug)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Page is one page of on-chain proposals. NextCursor is the provider-issued
// token for the following page, empty on the last page.
type Page struct {
	Proposals  []types.Proposal
	NextCursor string
}

type Fetcher struct {
	gql      *graphql.Client
	store    data.Store
	endpoint string
	apiKey   string
	ttl      time.Duration
}

func New(gql *graphql.Client, store data.Store, endpoint, apiKey string, ttl time.Duration) *Fetcher {
	return &Fetcher{gql: gql, store: store, endpoint: endpoint, apiKey: apiKey, ttl: ttl}
}

// FetchPage resolves slug and returns the page after cursor. The page step
// is cached by (slug, cursor); resolution runs on every call, which is
// acceptable because the cached page step dominates cost.
func (f *Fetcher) FetchPage(ctx context.Context, slug, cursor string, refresh bool) (Page, error) {
	if f.apiKey == "" {
		return Page{}, ErrNoAPIKey
	}

	// Resolution is deliberately uncached: the page step below carries the
	// cache and dominates cost.
	orgID, err := f.resolveOrganization(ctx, slug)
	if err != nil {
		return Page{}, err
	}

	key := data.PageKey("onchain", slug, cursor)
	if !refresh {
		if raw, ok := f.store.Get(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues("onchain", "hit").Inc()
			var next string
			proposals, err := data.DecodePage(raw, &next)
			if err == nil {
				return Page{Proposals: proposals, NextCursor: next}, nil
			}
			log.Printf("tally: corrupt cache entry %s: %v", key, err)
		} else {
			metrics.CacheLookups.WithLabelValues("onchain", "miss").Inc()
		}
	}

	page, err := f.fetchProposals(ctx, slug, orgID, cursor)
	if err != nil {
		return Page{}, err
	}

	encoded, err := data.EncodePage(page.Proposals, page.NextCursor)
	if err != nil {
		log.Printf("tally: cache encode %s: %v", key, err)
		return page, nil
	}
	f.store.Set(ctx, key, encoded, f.ttl)

	return page, nil
}

func (f *Fetcher) headers() map[string]string {
	return map[string]string{"Api-Key": f.apiKey}
}

func (f *Fetcher) resolveOrganization(ctx context.Context, slug string) (string, error) {
	payload := graphql.Payload{
		Query: organizationsQuery,
		Variables: map[string]any{
			"input": map[string]any{
				"filters": map[string]any{"slug": slug},
			},
		},
	}

	raw, err := f.gql.Do(ctx, f.endpoint, payload, f.headers())
	if err != nil {
		return "", &ResolutionError{Slug: slug, Err: err}
	}
	if raw == nil {
		return "", &ResolutionError{Slug: slug}
	}

	var resp struct {
		Data struct {
			Organizations struct {
				Nodes []struct {
					ID string `json:"id"`
				} `json:"nodes"`
			} `json:"organizations"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &ResolutionError{Slug: slug, Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(resp.Data.Organizations.Nodes) == 0 || resp.Data.Organizations.Nodes[0].ID == "" {
		return "", &ResolutionError{Slug: slug}
	}

	return resp.Data.Organizations.Nodes[0].ID, nil
}

func (f *Fetcher) fetchProposals(ctx context.Context, slug, orgID, cursor string) (Page, error) {
	pageInput := map[string]any{"limit": pageLimit}
	if cursor != "" {
		pageInput["afterCursor"] = cursor
	}
	payload := graphql.Payload{
		Query: proposalsQuery,
		Variables: map[string]any{
			"input": map[string]any{
				"filters": map[string]any{"organizationId": orgID},
				"page":    pageInput,
			},
		},
	}

	raw, err := f.gql.Do(ctx, f.endpoint, payload, f.headers())
	if err != nil {
		return Page{}, &FetchError{Slug: slug, Err: err}
	}
	if raw == nil {
		return Page{}, &FetchError{Slug: slug}
	}

	var resp struct {
		Data struct {
			Proposals struct {
				Nodes    []types.Proposal `json:"nodes"`
				PageInfo struct {
					LastCursor string `json:"lastCursor"`
				} `json:"pageInfo"`
			} `json:"proposals"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Page{}, &FetchError{Slug: slug, Err: fmt.Errorf("parse response: %w", err)}
	}
	if resp.Data.Proposals.Nodes == nil {
		return Page{}, &FetchError{Slug: slug}
	}

	return Page{
		Proposals:  resp.Data.Proposals.Nodes,
		NextCursor: resp.Data.Proposals.PageInfo.LastCursor,
	}, nil
}
