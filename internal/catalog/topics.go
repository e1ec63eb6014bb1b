// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// TopicHit is a topic returned by keyword discovery.
type TopicHit struct {
	// ID is the short OpenAlex topic id.
	ID          string
	DisplayName string
	FieldName   string
}

// SearchTopics returns the topics whose display name matches keyword.
func (c *Client) SearchTopics(ctx context.Context, keyword string) ([]TopicHit, error) {
	formatted := FormatKeyword(keyword)
	if formatted == "" {
		return nil, fmt.Errorf("empty keyword")
	}

	params := url.Values{
		"filter": {"display_name.search:" + formatted},
	}

	var tr topicsResponse
	if err := c.getJSON(ctx, "/topics", params, &tr); err != nil {
		return nil, err
	}

	hits := make([]TopicHit, 0, len(tr.Results))
	for _, t := range tr.Results {
		if t.DisplayName == "" {
			continue
		}
		hits = append(hits, TopicHit{
			ID:          StripID(t.ID),
			DisplayName: t.DisplayName,
			FieldName:   t.FieldName(),
		})
	}
	return hits, nil
}

// FormatKeyword lowercases keyword and joins its words with '+'.
func FormatKeyword(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), "+")
}

type topicsResponse struct {
	Results []TopicRef `json:"results"`
}
