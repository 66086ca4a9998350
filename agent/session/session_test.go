package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
	"github.com/tanpawarit/recipe-basket-agent/agent/vectorstore"
)

type fakeChat struct {
	responses []contractx.CompletionResult
	requests  []contractx.CompletionRequest
	idx       int
}

func (f *fakeChat) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.CompletionResult, error) {
	f.requests = append(f.requests, req)
	if f.idx >= len(f.responses) {
		return contractx.CompletionResult{}, errors.New("no fake response left")
	}
	res := f.responses[f.idx]
	f.idx++
	return res, nil
}

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeCatalog struct {
	ingredients map[int64]contractx.IngredientDetail
	listings    map[int64]contractx.ShopListing
	meals       map[int64]contractx.MealDetail
	mealRows    map[int64][]contractx.MealIngredientRow
	saleItems   []contractx.SaleItem
	overlap     []contractx.SaleOverlapMeal

	priceErr error
}

func (f *fakeCatalog) ListIngredients(ctx context.Context) ([]contractx.IngredientRef, error) {
	var refs []contractx.IngredientRef
	for id, ing := range f.ingredients {
		refs = append(refs, contractx.IngredientRef{ID: id, Name: ing.Name})
	}
	return refs, nil
}

func (f *fakeCatalog) IngredientsByID(ctx context.Context, ids []int64) ([]contractx.IngredientRef, error) {
	var refs []contractx.IngredientRef
	for _, id := range ids {
		if ing, ok := f.ingredients[id]; ok {
			refs = append(refs, contractx.IngredientRef{ID: id, Name: ing.Name})
		}
	}
	return refs, nil
}

func (f *fakeCatalog) MealsByID(ctx context.Context, ids []int64) ([]contractx.MealRef, error) {
	var refs []contractx.MealRef
	for _, id := range ids {
		if meal, ok := f.meals[id]; ok {
			refs = append(refs, contractx.MealRef{ID: id, Name: meal.Name})
		}
	}
	return refs, nil
}

func (f *fakeCatalog) GetIngredient(ctx context.Context, id int64) (*contractx.IngredientDetail, error) {
	ing, ok := f.ingredients[id]
	if !ok {
		return nil, fmt.Errorf("%w: ingredient=%d", contractx.ErrNotFound, id)
	}
	return &ing, nil
}

func (f *fakeCatalog) GetMeal(ctx context.Context, id int64) (*contractx.MealDetail, error) {
	meal, ok := f.meals[id]
	if !ok {
		return nil, fmt.Errorf("%w: meal=%d", contractx.ErrNotFound, id)
	}
	return &meal, nil
}

func (f *fakeCatalog) MealIngredients(ctx context.Context, mealID int64) ([]contractx.MealIngredientRow, error) {
	return f.mealRows[mealID], nil
}

func (f *fakeCatalog) GetShopListing(ctx context.Context, ingredientID int64) (*contractx.ShopListing, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	listing, ok := f.listings[ingredientID]
	if !ok {
		return nil, fmt.Errorf("%w: ingredient=%d", contractx.ErrNotInShop, ingredientID)
	}
	return &listing, nil
}

func (f *fakeCatalog) ListSaleItems(ctx context.Context) ([]contractx.SaleItem, error) {
	return f.saleItems, nil
}

func (f *fakeCatalog) MealsWithSaleOverlap(ctx context.Context, minOverlap, k int) ([]contractx.SaleOverlapMeal, error) {
	return f.overlap, nil
}

type fakeProfiles struct {
	customer contractx.CustomerProfile

	purchases   []contractx.PurchaseRow
	purchasedAt float64
	newSummary  string
	newVector   []float64
	updates     int
}

func (f *fakeProfiles) EnsureCustomer(ctx context.Context, fullName string) (*contractx.CustomerProfile, error) {
	c := f.customer
	c.FullName = fullName
	return &c, nil
}

func (f *fakeProfiles) RecordPurchases(ctx context.Context, customerID int64, at float64, rows []contractx.PurchaseRow) error {
	f.purchasedAt = at
	f.purchases = append(f.purchases, rows...)
	return nil
}

func (f *fakeProfiles) UpdateProfile(ctx context.Context, customerID int64, summary string, vector []float64) error {
	f.newSummary = summary
	f.newVector = vector
	f.updates++
	return nil
}

type fakeRetriever struct {
	results []vectorstore.Result
	err     error
}

func (f *fakeRetriever) QueryText(ctx context.Context, text string, k int) ([]vectorstore.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		ingredients: map[int64]contractx.IngredientDetail{
			1: {ID: 1, Name: "Tomato", Description: "A red fruit", Type: "Vegetable"},
			2: {ID: 2, Name: "Onion", Description: "A bulb", Type: "Vegetable"},
		},
		listings: map[int64]contractx.ShopListing{
			1: {IngredientID: 1, Price: 2.0},
			2: {IngredientID: 2, Price: 1.0, OnSale: true, Discount: 0.25},
		},
		meals: map[int64]contractx.MealDetail{
			10: {ID: 10, Name: "Tomato Soup", Category: "Starter", Area: "French"},
		},
		mealRows: map[int64][]contractx.MealIngredientRow{
			10: {
				{IngredientID: 1, Name: "Tomato", Measure: "2 whole", Price: ptrFloat(2.0)},
				{IngredientID: 2, Name: "Onion", Measure: "1 whole", Price: ptrFloat(1.0)},
				{IngredientID: 3, Name: "Basil", Measure: "a sprig"}, // not shop-listed
			},
		},
	}
}

func ptrFloat(v float64) *float64 { return &v }

func newTestController(t *testing.T, chat *fakeChat, maxLoops int) (*Controller, *fakeCatalog, *fakeProfiles) {
	t.Helper()
	catalog := testCatalog()
	profiles := &fakeProfiles{
		customer: contractx.CustomerProfile{ID: 42, Summary: "No summary available yet."},
	}
	s, err := New(context.Background(), chat, &fakeEmbedder{vector: []float64{0.1, 0.2}}, catalog, profiles, Indexes{
		Ingredients:  &fakeRetriever{results: []vectorstore.Result{{ID: 1, Score: 0.9}}},
		Meals:        &fakeRetriever{results: []vectorstore.Result{{ID: 10, Score: 0.8}}},
		Instructions: &fakeRetriever{},
	}, Config{UserName: "Ada Lovelace", MaxLoops: maxLoops})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return s, catalog, profiles
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), nil, &fakeEmbedder{}, testCatalog(), &fakeProfiles{}, Indexes{}, Config{})
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAddUserMessageRejectsEmpty(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestController(t, &fakeChat{}, 0)
	if _, err := s.AddUserMessage(context.Background(), "   "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDirectAnswer(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []contractx.CompletionResult{
		{Content: "Hello! What would you like to cook?"},
	}}
	s, _, _ := newTestController(t, chat, 0)

	answer, err := s.AddUserMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}
	if answer != "Hello! What would you like to cook?" {
		t.Fatalf("answer = %q", answer)
	}

	if len(chat.requests) != 1 {
		t.Fatalf("model calls = %d, want 1", len(chat.requests))
	}
	req := chat.requests[0]
	if req.Messages[0].Role != contractx.RoleSystem {
		t.Fatalf("first message role = %q, want system", req.Messages[0].Role)
	}
	if req.Messages[1].Role != contractx.RoleAssistant {
		t.Fatalf("second message role = %q, want assistant summary slot", req.Messages[1].Role)
	}
	if len(req.Tools) == 0 {
		t.Fatal("tool definitions were not offered to the model")
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []contractx.CompletionResult{
		{ToolCalls: []contractx.ToolCall{{
			ID:        "call-1",
			Name:      "add_to_basket",
			Arguments: `{"ingredient_id":1,"qty":2}`,
		}}},
		{Content: "Added two tomatoes to your basket."},
	}}
	s, _, _ := newTestController(t, chat, 0)

	answer, err := s.AddUserMessage(context.Background(), "add two tomatoes")
	if err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}
	if answer != "Added two tomatoes to your basket." {
		t.Fatalf("answer = %q", answer)
	}

	if s.basket.Len() != 2 {
		t.Fatalf("basket size = %d, want 2", s.basket.Len())
	}
	if s.basket.Total() != 4.0 {
		t.Fatalf("basket total = %v, want 4.0", s.basket.Total())
	}

	// The second model call must carry the tool result turn.
	second := chat.requests[1]
	var toolTurn *contractx.Turn
	for i := range second.Messages {
		if second.Messages[i].Role == contractx.RoleTool {
			toolTurn = &second.Messages[i]
		}
	}
	if toolTurn == nil {
		t.Fatal("tool turn missing from follow-up request")
	}
	if toolTurn.ToolCallID != "call-1" {
		t.Fatalf("tool turn call id = %q", toolTurn.ToolCallID)
	}
	if !strings.Contains(toolTurn.Content, "Tomato") {
		t.Fatalf("tool result = %q", toolTurn.Content)
	}

	// Fresh basket state must be visible in the follow-up system prompt.
	if !strings.Contains(second.Messages[0].Content, "2× Tomato") {
		t.Fatalf("system prompt lacks basket synopsis: %q", second.Messages[0].Content)
	}
}

func TestUnknownToolKeepsLoopAlive(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []contractx.CompletionResult{
		{ToolCalls: []contractx.ToolCall{{ID: "call-1", Name: "teleport", Arguments: "{}"}}},
		{Content: "Sorry, I can't do that."},
	}}
	s, _, _ := newTestController(t, chat, 0)

	answer, err := s.AddUserMessage(context.Background(), "teleport me")
	if err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}
	if answer != "Sorry, I can't do that." {
		t.Fatalf("answer = %q", answer)
	}

	second := chat.requests[1]
	found := false
	for _, m := range second.Messages {
		if m.Role == contractx.RoleTool && m.Content == "Unknown tool 'teleport'" {
			found = true
		}
	}
	if !found {
		t.Fatal("unknown-tool result missing from follow-up request")
	}
}

func TestLoopCapForcesToolFreeAnswer(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{responses: []contractx.CompletionResult{
		{ToolCalls: []contractx.ToolCall{{ID: "c1", Name: "list_sale_items", Arguments: "{}"}}},
		{ToolCalls: []contractx.ToolCall{{ID: "c2", Name: "list_sale_items", Arguments: "{}"}}},
		{Content: "Here is what I found."},
	}}
	s, _, _ := newTestController(t, chat, 2)

	answer, err := s.AddUserMessage(context.Background(), "what is on sale?")
	if err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}
	if answer != "Here is what I found." {
		t.Fatalf("answer = %q", answer)
	}

	if len(chat.requests) != 3 {
		t.Fatalf("model calls = %d, want 3", len(chat.requests))
	}
	final := chat.requests[2]
	if len(final.Tools) != 0 {
		t.Fatal("tools were still offered after the loop cap")
	}
	last := final.Messages[len(final.Messages)-1]
	if last.Role != contractx.RoleSystem || last.Content != finishInstruction {
		t.Fatalf("final request lacks finish instruction, last = %+v", last)
	}
}

func TestRetrievalToolPreservesScoreOrder(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestController(t, &fakeChat{}, 0)
	s.indexes.Ingredients = &fakeRetriever{results: []vectorstore.Result{
		{ID: 2, Score: 0.9},
		{ID: 1, Score: 0.5},
	}}

	out, err := s.retrieveIngredient(context.Background(), map[string]any{"description": "something savoury"})
	if err != nil {
		t.Fatalf("retrieveIngredient() error = %v", err)
	}
	refs, ok := out.([]contractx.IngredientRef)
	if !ok {
		t.Fatalf("unexpected result type %T", out)
	}
	if len(refs) != 2 || refs[0].ID != 2 || refs[1].ID != 1 {
		t.Fatalf("retrieval order lost: %#v", refs)
	}
}

func TestAddMealToBasketSkipsUnlistedIngredients(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestController(t, &fakeChat{}, 0)

	out, err := s.addMealToBasket(context.Background(), map[string]any{"meal_id": float64(10)})
	if err != nil {
		t.Fatalf("addMealToBasket() error = %v", err)
	}
	state := out.(map[string]any)
	items := state["items"].([]string)
	if len(items) != 2 {
		t.Fatalf("basket items = %v, want the two priced ingredients", items)
	}
	if s.basket.Total() != 3.0 {
		t.Fatalf("basket total = %v, want 3.0", s.basket.Total())
	}
}

func TestAddMealToBasketNoListedIngredients(t *testing.T) {
	t.Parallel()

	s, catalog, _ := newTestController(t, &fakeChat{}, 0)
	catalog.mealRows[11] = []contractx.MealIngredientRow{
		{IngredientID: 3, Name: "Basil", Measure: "a sprig"},
	}

	if _, err := s.addMealToBasket(context.Background(), map[string]any{"meal_id": float64(11)}); err == nil {
		t.Fatal("expected error for meal with no shop-listed ingredients")
	}
	if s.basket.Len() != 0 {
		t.Fatalf("basket size = %d, want 0", s.basket.Len())
	}
}
