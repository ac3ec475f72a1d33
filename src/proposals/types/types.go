package types

import "encoding/json"

// Proposal is an upstream proposal record. Both providers return shapes we
// pass through untouched, so the payload stays raw.
type Proposal = json.RawMessage

// ProposalSet groups the per-source pages of one aggregated response.
type ProposalSet struct {
	Offchain []Proposal `json:"offchain"`
	Onchain  []Proposal `json:"onchain,omitempty"`
}

// Envelope is the response body of GET /proposals/:space.
type Envelope struct {
	Proposals      ProposalSet `json:"proposals"`
	OffchainCursor *int64      `json:"offchain_cursor,omitempty"`
	OnchainCursor  string      `json:"onchain_cursor,omitempty"`
	OnchainError   string      `json:"onchain_error,omitempty"`
	Context        string      `json:"@context"`
	Name           string      `json:"name"`
}

// SchemaContext is the JSON-LD context stamped on every envelope.
const SchemaContext = "http://daostar.org/schemas"
