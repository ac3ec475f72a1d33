package data

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// PageKey builds the cache key for one page of one query. Each segment is
// escaped before joining so a segment containing the delimiter can never
// collide with a neighboring segment boundary.
func PageKey(source, scope string, segments ...string) string {
	parts := make([]string, 0, len(segments)+2)
	parts = append(parts, escapeSegment(source), escapeSegment(scope))
	for _, s := range segments {
		parts = append(parts, escapeSegment(s))
	}
	return strings.Join(parts, "-")
}

// QueryEscape leaves '-' alone, so the join delimiter gets escaped by hand.
// The escaped form contains no bare '-', which keeps the mapping injective.
func escapeSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "-", "%2D")
}

// EncodePage serializes a page and its next cursor as a single 2-element
// array. Keeping both in one record guarantees the cursor handed back always
// matches the page it was derived from.
func EncodePage(proposals []json.RawMessage, cursor any) ([]byte, error) {
	if proposals == nil {
		proposals = []json.RawMessage{}
	}
	payload, err := json.Marshal([2]any{proposals, cursor})
	if err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return payload, nil
}

// DecodePage reverses EncodePage. cursor must be a pointer to the
// source-appropriate cursor type; it is left untouched when the stored
// cursor is null (terminal page).
func DecodePage(raw []byte, cursor any) ([]json.RawMessage, error) {
	var record [2]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}

	var proposals []json.RawMessage
	if len(record[0]) > 0 {
		if err := json.Unmarshal(record[0], &proposals); err != nil {
			return nil, fmt.Errorf("decode page proposals: %w", err)
		}
	}

	if cursor != nil && len(record[1]) > 0 && string(record[1]) != "null" {
		if err := json.Unmarshal(record[1], cursor); err != nil {
			return nil, fmt.Errorf("decode page cursor: %w", err)
		}
	}

	return proposals, nil
}
