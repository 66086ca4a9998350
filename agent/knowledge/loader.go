package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	catalogx "github.com/tanpawarit/recipe-basket-agent/agent/catalog"
	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
	mealdbx "github.com/tanpawarit/recipe-basket-agent/pkg/mealdb"
)

const (
	describeMealInstruction = "Write a one or two sentence appetising description of the meal below. Mention its cuisine and main ingredients. Reply with the description only."
	describeIngInstruction  = "Write one sentence describing this cooking ingredient: what it is and what dishes it is used in. Reply with the description only."
	describeMaxTokens       = 120
)

type Config struct {
	Throttle time.Duration `envconfig:"THROTTLE" split_words:"true" default:"250ms"`
}

// Loader crawls the upstream recipe catalogue and materialises it into the
// local store: meals, ingredients, their links, and the embedding columns the
// retrieval indexes are built from. Re-runs are idempotent.
type Loader struct {
	meals    *mealdbx.Client
	store    *catalogx.Store
	chat     contractx.ChatModel
	embedder contractx.Embedder
	throttle time.Duration
}

func NewLoader(meals *mealdbx.Client, store *catalogx.Store, chat contractx.ChatModel, embedder contractx.Embedder, cfg Config) *Loader {
	throttle := cfg.Throttle
	if throttle <= 0 {
		throttle = 250 * time.Millisecond
	}
	return &Loader{
		meals:    meals,
		store:    store,
		chat:     chat,
		embedder: embedder,
		throttle: throttle,
	}
}

// Run performs a full a-z crawl. Individual meal failures are logged and
// skipped so one bad record cannot abort a multi-hour crawl.
func (l *Loader) Run(ctx context.Context) error {
	known, err := l.ingredientCatalogue(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for letter := 'a'; letter <= 'z'; letter++ {
		meals, err := l.meals.SearchMealsByFirstLetter(ctx, string(letter))
		if err != nil {
			return fmt.Errorf("crawl letter %q: %w", string(letter), err)
		}
		for i := range meals {
			meal := &meals[i]
			if _, dup := seen[meal.ID]; dup {
				continue
			}
			seen[meal.ID] = struct{}{}

			if err := l.ingestMeal(ctx, meal, known); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn().Err(err).Str("meal", meal.Name).Msg("skipping meal")
			}
			if err := l.pause(ctx); err != nil {
				return err
			}
		}
	}
	log.Info().Int("meals", len(seen)).Msg("catalogue crawl complete")
	return nil
}

// ingredientCatalogue preloads the upstream ingredient list so crawled pairs
// can reuse its descriptions instead of generating one per occurrence.
func (l *Loader) ingredientCatalogue(ctx context.Context) (map[string]mealdbx.IngredientListing, error) {
	listings, err := l.meals.ListAllIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list upstream ingredients: %w", err)
	}
	known := make(map[string]mealdbx.IngredientListing, len(listings))
	for _, listing := range listings {
		known[strings.ToLower(strings.TrimSpace(listing.Name))] = listing
	}
	return known, nil
}

func (l *Loader) ingestMeal(ctx context.Context, meal *mealdbx.Meal, known map[string]mealdbx.IngredientListing) error {
	mealID, err := strconv.ParseInt(meal.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("meal id %q: %w", meal.ID, err)
	}

	if err := l.store.UpsertMeal(ctx, &catalogx.Meal{
		ID:           mealID,
		Name:         meal.Name,
		Category:     meal.Category,
		Area:         meal.Area,
		Instructions: meal.Instructions,
	}); err != nil {
		return err
	}

	description, err := l.describe(ctx, describeMealInstruction, mealSketch(meal))
	if err != nil {
		return err
	}
	descVec, err := l.embedder.Embed(ctx, description)
	if err != nil {
		return err
	}
	insVec, err := l.embedder.Embed(ctx, meal.Instructions)
	if err != nil {
		return err
	}
	if err := l.store.SetMealVectors(ctx, mealID, description, descVec, insVec); err != nil {
		return err
	}

	for pair, im := range meal.Ingredients() {
		ingredientID, err := l.ensureIngredient(ctx, im.Ingredient, known)
		if err != nil {
			return err
		}
		link := &catalogx.MealIngredient{
			MealID:       mealID,
			PairID:       int64(pair),
			IngredientID: ingredientID,
			Measure:      im.Measure,
		}
		if err := l.store.LinkMealIngredient(ctx, link); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) ensureIngredient(ctx context.Context, name string, known map[string]mealdbx.IngredientListing) (int64, error) {
	listing := known[strings.ToLower(strings.TrimSpace(name))]

	description := strings.TrimSpace(listing.Description)
	if description == "" {
		generated, err := l.describe(ctx, describeIngInstruction, name)
		if err != nil {
			return 0, err
		}
		description = generated
	}

	id, err := l.store.UpsertIngredient(ctx, &catalogx.Ingredient{
		Name:        name,
		Description: description,
		Type:        listing.Type,
	})
	if err != nil {
		return 0, err
	}

	vector, err := l.embedder.Embed(ctx, description)
	if err != nil {
		return 0, err
	}
	if err := l.store.SetIngredientVector(ctx, id, vector); err != nil {
		return 0, err
	}
	return id, nil
}

func (l *Loader) describe(ctx context.Context, instruction, subject string) (string, error) {
	res, err := l.chat.Complete(ctx, contractx.CompletionRequest{
		Messages: []contractx.Turn{
			{Role: contractx.RoleSystem, Content: instruction},
			{Role: contractx.RoleUser, Content: subject},
		},
		MaxTokens: describeMaxTokens,
	})
	if err != nil {
		return "", err
	}
	description := strings.TrimSpace(res.Content)
	if description == "" {
		description = subject
	}
	return description, nil
}

func (l *Loader) pause(ctx context.Context) error {
	timer := time.NewTimer(l.throttle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func mealSketch(meal *mealdbx.Meal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nCategory: %s\nArea: %s\nIngredients:", meal.Name, meal.Category, meal.Area)
	for _, im := range meal.Ingredients() {
		fmt.Fprintf(&b, " %s (%s),", im.Ingredient, im.Measure)
	}
	return strings.TrimSuffix(b.String(), ",")
}
