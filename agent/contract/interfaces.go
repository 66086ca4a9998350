package contract

import "context"

// ChatModel is the chat-completion capability. Transport errors propagate to
// the caller; no retry policy is applied at this layer.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// Embedder turns text into a fixed-length vector. Deterministic per text for
// a fixed provider/model; dimensions are never mixed across indexes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorSource yields every (id, vector_json) pair backing one index.
type VectorSource interface {
	IterVectors(ctx context.Context) ([]StoredVector, error)
}

// IngredientRef is the compact ingredient shape returned by retrieval tools.
type IngredientRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MealRef is the compact meal shape returned by retrieval tools.
type MealRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type IngredientDetail struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type MealDetail struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Area         string `json:"area"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
}

// ShopListing is the priced shop entry for one ingredient.
type ShopListing struct {
	IngredientID int64   `json:"ingredient_id"`
	Price        float64 `json:"price"`
	OnSale       bool    `json:"on_sale"`
	Discount     float64 `json:"discount"`
}

// SaleItem joins an on-sale listing with its ingredient name.
type SaleItem struct {
	IngredientID int64   `json:"ingredient_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Discount     float64 `json:"discount"`
}

// MealIngredientRow is one ingredient line of a meal, with its shop listing
// when one exists.
type MealIngredientRow struct {
	IngredientID int64    `json:"ingredient_id"`
	Name         string   `json:"name"`
	Measure      string   `json:"measure"`
	Price        *float64 `json:"price"`
	OnSale       *bool    `json:"on_sale"`
	Discount     *float64 `json:"discount"`
}

// SaleOverlapMeal is a meal ranked by how many of its ingredients are on sale.
type SaleOverlapMeal struct {
	MealID      int64  `json:"meal_id"`
	Name        string `json:"name"`
	Overlap     int    `json:"overlap"`
	Description string `json:"description"`
}

// CatalogStore is the read side of the catalog, keyed by integer ids.
type CatalogStore interface {
	ListIngredients(ctx context.Context) ([]IngredientRef, error)
	IngredientsByID(ctx context.Context, ids []int64) ([]IngredientRef, error)
	MealsByID(ctx context.Context, ids []int64) ([]MealRef, error)
	GetIngredient(ctx context.Context, id int64) (*IngredientDetail, error)
	GetMeal(ctx context.Context, id int64) (*MealDetail, error)
	MealIngredients(ctx context.Context, mealID int64) ([]MealIngredientRow, error)
	GetShopListing(ctx context.Context, ingredientID int64) (*ShopListing, error)
	ListSaleItems(ctx context.Context) ([]SaleItem, error)
	MealsWithSaleOverlap(ctx context.Context, minOverlap, k int) ([]SaleOverlapMeal, error)
}

// CustomerProfile is the persisted per-customer summary record.
type CustomerProfile struct {
	ID            int64
	FullName      string
	Summary       string
	Conversations int
}

// PurchaseRow is one purchase record produced at checkout.
type PurchaseRow struct {
	IngredientID int64   `json:"ingredient_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"quantity"`
}

// ProfileStore is the write side: purchases are appended as one atomic batch,
// and the profile summary (text + vector + counter) updates as a single
// logical write.
type ProfileStore interface {
	EnsureCustomer(ctx context.Context, fullName string) (*CustomerProfile, error)
	RecordPurchases(ctx context.Context, customerID int64, at float64, rows []PurchaseRow) error
	UpdateProfile(ctx context.Context, customerID int64, summary string, vector []float64) error
}
