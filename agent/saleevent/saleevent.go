package saleevent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

const (
	promoInstruction = "You write short grocery promotions. Given the sale items and meal suggestions below, write a friendly two or three sentence announcement. Reply with the announcement only."
	promoMaxTokens   = 160

	overlapMealLimit = 5
)

// Announcement is one rendered sale digest ready for delivery.
type Announcement struct {
	Subject    string                      `json:"subject"`
	Body       string                      `json:"body"`
	SaleItems  []contractx.SaleItem        `json:"sale_items"`
	Meals      []contractx.SaleOverlapMeal `json:"meals"`
	Recipients []string                    `json:"recipients"`
}

// Notifier delivers an announcement to subscribers.
type Notifier interface {
	Notify(ctx context.Context, a Announcement) error
}

// CustomerDirectory selects who should hear about a sale.
type CustomerDirectory interface {
	PurchasersOfIngredients(ctx context.Context, ingredientIDs []int64) ([]contractx.CustomerProfile, error)
	AllCustomers(ctx context.Context) ([]contractx.CustomerProfile, error)
}

// Agent turns the current sale state into a promotional announcement and
// hands it to the notifier. It is stateless; run it on whatever schedule the
// shop updates its sales.
type Agent struct {
	catalog   contractx.CatalogStore
	directory CustomerDirectory
	chat      contractx.ChatModel
	notifier  Notifier
}

func NewAgent(catalog contractx.CatalogStore, directory CustomerDirectory, chat contractx.ChatModel, notifier Notifier) *Agent {
	return &Agent{catalog: catalog, directory: directory, chat: chat, notifier: notifier}
}

// Announce builds and delivers the digest. Returns nil without notifying when
// nothing is on sale.
func (a *Agent) Announce(ctx context.Context) (*Announcement, error) {
	items, err := a.catalog.ListSaleItems(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		log.Debug().Msg("no sale items, skipping announcement")
		return nil, nil
	}

	meals, err := a.catalog.MealsWithSaleOverlap(ctx, 1, overlapMealLimit)
	if err != nil {
		return nil, err
	}

	body, err := a.compose(ctx, items, meals)
	if err != nil {
		return nil, err
	}

	recipients, err := a.recipients(ctx, items)
	if err != nil {
		return nil, err
	}

	announcement := Announcement{
		Subject:    fmt.Sprintf("%d items on sale this week", len(items)),
		Body:       body,
		SaleItems:  items,
		Meals:      meals,
		Recipients: recipients,
	}
	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, announcement); err != nil {
			return nil, fmt.Errorf("deliver sale announcement: %w", err)
		}
	}
	log.Info().Int("sale_items", len(items)).Int("meals", len(meals)).Msg("sale announcement delivered")
	return &announcement, nil
}

// recipients prefers customers who bought a sale item before; when nobody
// has, everyone hears about it.
func (a *Agent) recipients(ctx context.Context, items []contractx.SaleItem) ([]string, error) {
	if a.directory == nil {
		return nil, nil
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.IngredientID)
	}
	customers, err := a.directory.PurchasersOfIngredients(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		customers, err = a.directory.AllCustomers(ctx)
		if err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(customers))
	for _, c := range customers {
		names = append(names, c.FullName)
	}
	return names, nil
}

func (a *Agent) compose(ctx context.Context, items []contractx.SaleItem, meals []contractx.SaleOverlapMeal) (string, error) {
	var b strings.Builder
	b.WriteString("Sale items:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s at %.2f (%.0f%% off)\n", item.Name, item.Price, item.Discount*100)
	}
	if len(meals) > 0 {
		b.WriteString("Meals using sale ingredients:\n")
		for _, meal := range meals {
			fmt.Fprintf(&b, "- %s (%d sale ingredients)\n", meal.Name, meal.Overlap)
		}
	}

	res, err := a.chat.Complete(ctx, contractx.CompletionRequest{
		Messages: []contractx.Turn{
			{Role: contractx.RoleSystem, Content: promoInstruction},
			{Role: contractx.RoleUser, Content: b.String()},
		},
		MaxTokens: promoMaxTokens,
	})
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(res.Content)
	if body == "" {
		body = b.String()
	}
	return body, nil
}
