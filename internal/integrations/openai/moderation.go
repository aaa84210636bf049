package openai

import (
	"context"
	"errors"
	"sort"
)

type moderationRequest struct {
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

// ModerationResult is the verdict for one message.
type ModerationResult struct {
	Flagged bool
	// Categories lists the flagged category names, sorted.
	Categories []string
}

// Classify runs input through the moderation endpoint.
func (c *Client) Classify(ctx context.Context, input string) (ModerationResult, error) {
	var payload moderationResponse
	if err := c.post(ctx, "moderation", "/moderations", moderationRequest{Input: input}, &payload); err != nil {
		return ModerationResult{}, err
	}
	if len(payload.Results) == 0 {
		return ModerationResult{}, errors.New("openai: moderation: no results in response")
	}
	r := payload.Results[0]
	out := ModerationResult{Flagged: r.Flagged}
	for name, hit := range r.Categories {
		if hit {
			out.Categories = append(out.Categories, name)
		}
	}
	sort.Strings(out.Categories)
	return out, nil
}

// Moderate reports whether input was flagged.
func (c *Client) Moderate(ctx context.Context, input string) (bool, error) {
	res, err := c.Classify(ctx, input)
	if err != nil {
		return false, err
	}
	return res.Flagged, nil
}
