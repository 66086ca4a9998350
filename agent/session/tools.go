package session

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
	toolx "github.com/tanpawarit/recipe-basket-agent/agent/tool"
	"github.com/tanpawarit/recipe-basket-agent/agent/vectorstore"
)

const defaultRetrieveK = 5

// The tool surface below is part of the conversation protocol; changing a
// name or parameter shape breaks sessions already primed on it.
func (s *Controller) registerTools() {
	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "retrieve_ingredient",
		Description: "Semantic search for ingredients that match a free-text description.",
		Parameters: objectSchema(map[string]any{
			"description": map[string]any{"type": "string", "description": "User-provided ingredient description"},
			"k":           map[string]any{"type": "integer", "description": "Max results", "default": defaultRetrieveK},
		}, "description"),
	}, s.retrieveIngredient)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "retrieve_meal",
		Description: "Find meals that match a free-text description.",
		Parameters: objectSchema(map[string]any{
			"description": map[string]any{"type": "string"},
			"k":           map[string]any{"type": "integer", "default": defaultRetrieveK},
		}, "description"),
	}, s.retrieveMeal)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "retrieve_meal_by_instructions",
		Description: "Find meals similar to given cooking instructions.",
		Parameters: objectSchema(map[string]any{
			"instructions": map[string]any{"type": "string"},
			"k":            map[string]any{"type": "integer", "default": defaultRetrieveK},
		}, "instructions"),
	}, s.retrieveMealByInstructions)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "list_ingredients",
		Description: "Return the full ingredient catalogue.",
		Parameters:  objectSchema(map[string]any{}),
	}, s.listIngredients)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "get_price",
		Description: "Look up current price & sale status for an ingredient.",
		Parameters: objectSchema(map[string]any{
			"ingredient_id": map[string]any{"type": "integer"},
		}, "ingredient_id"),
	}, s.getPrice)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "add_to_basket",
		Description: "Add an ingredient (optionally multiple) to the active basket.",
		Parameters: objectSchema(map[string]any{
			"ingredient_id": map[string]any{"type": "integer"},
			"qty":           map[string]any{"type": "integer", "default": 1},
		}, "ingredient_id"),
	}, s.addToBasket)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "add_meal_to_basket",
		Description: "Add every shop-listed ingredient of a meal to the basket, optionally scaled for extra servings.",
		Parameters: objectSchema(map[string]any{
			"meal_id":  map[string]any{"type": "integer"},
			"servings": map[string]any{"type": "integer", "default": 1},
		}, "meal_id"),
	}, s.addMealToBasket)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "list_sale_items",
		Description: "Return every ingredient that is currently on sale.",
		Parameters:  objectSchema(map[string]any{}),
	}, s.listSaleItems)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "retrieve_meals_with_sale_overlap",
		Description: "Find meals that share at least `min_overlap` sale ingredients, sorted by overlap count descending.",
		Parameters: objectSchema(map[string]any{
			"min_overlap": map[string]any{"type": "integer", "default": 1},
			"k":           map[string]any{"type": "integer", "default": 10},
		}, "min_overlap"),
	}, s.retrieveMealsWithSaleOverlap)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "get_meal_details",
		Description: "Return id, name, category, area, description & instructions for a meal.",
		Parameters: objectSchema(map[string]any{
			"meal_id": map[string]any{"type": "integer"},
		}, "meal_id"),
	}, s.getMealDetails)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "get_meal_ingredients",
		Description: "List each ingredient (name, measure) plus price/discount for a meal.",
		Parameters: objectSchema(map[string]any{
			"meal_id": map[string]any{"type": "integer"},
		}, "meal_id"),
	}, s.getMealIngredients)

	s.registry.MustRegister(contractx.ToolDefinition{
		Name:        "get_ingredient_details",
		Description: "Fetch full metadata (name, description, type) for one ingredient.",
		Parameters: objectSchema(map[string]any{
			"ingredient_id": map[string]any{"type": "integer"},
		}, "ingredient_id"),
	}, s.getIngredientDetails)
}

/* ------------------------------- retrieval ------------------------------- */

func (s *Controller) retrieveIngredient(ctx context.Context, args map[string]any) (any, error) {
	query, err := toolx.StringArg(args, "description")
	if err != nil {
		return nil, err
	}
	k, err := toolx.Int64ArgDefault(args, "k", defaultRetrieveK)
	if err != nil {
		return nil, err
	}
	results, err := s.indexes.Ingredients.QueryText(ctx, query, int(k))
	if err != nil {
		return nil, err
	}
	refs, err := s.catalog.IngredientsByID(ctx, resultIDs(results))
	if err != nil {
		return nil, err
	}
	return orderIngredientRefs(results, refs), nil
}

func (s *Controller) retrieveMeal(ctx context.Context, args map[string]any) (any, error) {
	query, err := toolx.StringArg(args, "description")
	if err != nil {
		return nil, err
	}
	k, err := toolx.Int64ArgDefault(args, "k", defaultRetrieveK)
	if err != nil {
		return nil, err
	}
	results, err := s.indexes.Meals.QueryText(ctx, query, int(k))
	if err != nil {
		return nil, err
	}
	return s.mealRefs(ctx, results)
}

func (s *Controller) retrieveMealByInstructions(ctx context.Context, args map[string]any) (any, error) {
	query, err := toolx.StringArg(args, "instructions")
	if err != nil {
		return nil, err
	}
	k, err := toolx.Int64ArgDefault(args, "k", defaultRetrieveK)
	if err != nil {
		return nil, err
	}
	results, err := s.indexes.Instructions.QueryText(ctx, query, int(k))
	if err != nil {
		return nil, err
	}
	return s.mealRefs(ctx, results)
}

/* ------------------------------ shop / basket ---------------------------- */

func (s *Controller) listIngredients(ctx context.Context, _ map[string]any) (any, error) {
	return s.catalog.ListIngredients(ctx)
}

func (s *Controller) getPrice(ctx context.Context, args map[string]any) (any, error) {
	id, err := toolx.Int64Arg(args, "ingredient_id")
	if err != nil {
		return nil, err
	}
	listing, err := s.catalog.GetShopListing(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"price":    listing.Price,
		"on_sale":  listing.OnSale,
		"discount": listing.Discount,
	}, nil
}

func (s *Controller) addToBasket(ctx context.Context, args map[string]any) (any, error) {
	id, err := toolx.Int64Arg(args, "ingredient_id")
	if err != nil {
		return nil, err
	}
	qty, err := toolx.Int64ArgDefault(args, "qty", 1)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		qty = 1
	}

	ing, err := s.catalog.GetIngredient(ctx, id)
	if err != nil {
		return nil, err
	}
	listing, err := s.catalog.GetShopListing(ctx, id)
	if err != nil {
		return nil, err
	}

	for i := int64(0); i < qty; i++ {
		s.basket.Add(BasketItem{IngredientID: ing.ID, Name: ing.Name, Price: listing.Price})
	}
	return s.basketState(), nil
}

func (s *Controller) addMealToBasket(ctx context.Context, args map[string]any) (any, error) {
	mealID, err := toolx.Int64Arg(args, "meal_id")
	if err != nil {
		return nil, err
	}
	servings, err := toolx.Int64ArgDefault(args, "servings", 1)
	if err != nil {
		return nil, err
	}
	if servings < 1 {
		servings = 1
	}

	rows, err := s.catalog.MealIngredients(ctx, mealID)
	if err != nil {
		return nil, err
	}
	priced := 0
	for _, row := range rows {
		if row.Price == nil {
			continue
		}
		priced++
		for i := int64(0); i < servings; i++ {
			s.basket.Add(BasketItem{IngredientID: row.IngredientID, Name: row.Name, Price: *row.Price})
		}
	}
	if priced == 0 {
		return nil, fmt.Errorf("meal has no shop-listed ingredients")
	}
	return s.basketState(), nil
}

func (s *Controller) listSaleItems(ctx context.Context, _ map[string]any) (any, error) {
	return s.catalog.ListSaleItems(ctx)
}

func (s *Controller) retrieveMealsWithSaleOverlap(ctx context.Context, args map[string]any) (any, error) {
	minOverlap, err := toolx.Int64ArgDefault(args, "min_overlap", 1)
	if err != nil {
		return nil, err
	}
	k, err := toolx.Int64ArgDefault(args, "k", 10)
	if err != nil {
		return nil, err
	}
	return s.catalog.MealsWithSaleOverlap(ctx, int(minOverlap), int(k))
}

/* ------------------------------ detail lookups --------------------------- */

func (s *Controller) getMealDetails(ctx context.Context, args map[string]any) (any, error) {
	id, err := toolx.Int64Arg(args, "meal_id")
	if err != nil {
		return nil, err
	}
	return s.catalog.GetMeal(ctx, id)
}

func (s *Controller) getMealIngredients(ctx context.Context, args map[string]any) (any, error) {
	id, err := toolx.Int64Arg(args, "meal_id")
	if err != nil {
		return nil, err
	}
	return s.catalog.MealIngredients(ctx, id)
}

func (s *Controller) getIngredientDetails(ctx context.Context, args map[string]any) (any, error) {
	id, err := toolx.Int64Arg(args, "ingredient_id")
	if err != nil {
		return nil, err
	}
	return s.catalog.GetIngredient(ctx, id)
}

/* --------------------------------- helpers ------------------------------- */

func (s *Controller) basketState() map[string]any {
	return map[string]any{
		"items": s.basket.Names(),
		"total": s.basket.Total(),
	}
}

func (s *Controller) mealRefs(ctx context.Context, results []vectorstore.Result) (any, error) {
	refs, err := s.catalog.MealsByID(ctx, resultIDs(results))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]contractx.MealRef, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}
	ordered := make([]contractx.MealRef, 0, len(results))
	for _, r := range results {
		if ref, ok := byID[r.ID]; ok {
			ordered = append(ordered, ref)
		}
	}
	return ordered, nil
}

func orderIngredientRefs(results []vectorstore.Result, refs []contractx.IngredientRef) []contractx.IngredientRef {
	byID := make(map[int64]contractx.IngredientRef, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}
	ordered := make([]contractx.IngredientRef, 0, len(results))
	for _, r := range results {
		if ref, ok := byID[r.ID]; ok {
			ordered = append(ordered, ref)
		}
	}
	return ordered
}

func resultIDs(results []vectorstore.Result) []int64 {
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
