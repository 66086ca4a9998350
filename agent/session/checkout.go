package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
	promptx "github.com/tanpawarit/recipe-basket-agent/agent/prompt"
)

// Receipt is the result of a successful checkout.
type Receipt struct {
	Purchases  []contractx.PurchaseRow
	Total      float64
	NewSummary string
}

// Checkout prices every basket item against the current shop listing,
// persists the purchases as one batch, regenerates the customer profile from
// the recent transcript, and only then empties the basket. Any failure before
// the final step leaves the basket intact so the user can retry.
func (s *Controller) Checkout(ctx context.Context) (*Receipt, error) {
	items := s.basket.Items()
	if len(items) == 0 {
		return nil, contractx.ErrEmptyBasket
	}

	rows := make([]contractx.PurchaseRow, 0, len(items))
	total := 0.0
	for _, item := range items {
		listing, err := s.catalog.GetShopListing(ctx, item.IngredientID)
		if err != nil {
			return nil, fmt.Errorf("price %q at checkout: %w", item.Name, err)
		}
		rows = append(rows, contractx.PurchaseRow{
			IngredientID: item.IngredientID,
			Name:         item.Name,
			Price:        listing.Price,
			Quantity:     1,
		})
		total += listing.Price
	}

	at := float64(s.now().UnixNano()) / 1e9
	if err := s.profiles.RecordPurchases(ctx, s.customer.ID, at, rows); err != nil {
		return nil, err
	}

	summary, err := s.regenerateProfile(ctx)
	if err != nil {
		return nil, err
	}

	s.basket.Clear()
	log.Info().
		Int64("customer_id", s.customer.ID).
		Int("purchases", len(rows)).
		Float64("total", total).
		Msg("checkout complete")

	return &Receipt{Purchases: rows, Total: total, NewSummary: summary}, nil
}

// regenerateProfile merges the stored summary with the recent transcript into
// a fresh profile, re-embeds it, and persists both in one store call.
func (s *Controller) regenerateProfile(ctx context.Context) (string, error) {
	existing := s.profileSummary
	if existing == "" {
		existing = "(no profile yet)"
	}

	res, err := s.chat.Complete(ctx, contractx.CompletionRequest{
		Messages: []contractx.Turn{
			{Role: contractx.RoleSystem, Content: promptx.ProfileInstruction()},
			{Role: contractx.RoleUser, Content: fmt.Sprintf(
				"Current profile:\n%s\n\nRecent conversation:\n%s",
				existing,
				s.conversation.RecentTranscript(recentTurnWindow),
			)},
		},
		MaxTokens: profileMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: profile merge: %v", contractx.ErrModelInvoke, err)
	}
	summary := res.Content
	if summary == "" {
		summary = existing
	}

	vector, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		return "", err
	}
	if err := s.profiles.UpdateProfile(ctx, s.customer.ID, summary, vector); err != nil {
		return "", err
	}

	s.profileSummary = summary
	s.customer.Summary = summary
	s.customer.Conversations++
	return summary, nil
}
