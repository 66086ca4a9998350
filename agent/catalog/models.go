package catalog

import "github.com/uptrace/bun"

// Vector columns hold JSON-encoded float arrays; no richer persistence
// format is guaranteed beyond round-trippable numeric arrays.

type Meal struct {
	bun.BaseModel `bun:"table:meals"`

	ID                 int64  `bun:"id,pk,autoincrement"`
	Name               string `bun:"name,notnull"`
	Category           string `bun:"category"`
	Area               string `bun:"area"`
	Instructions       string `bun:"instructions"`
	InstructionsVector string `bun:"instructions_vector"`
	Description        string `bun:"description"`
	DescriptionVector  string `bun:"description_vector"`
}

type Ingredient struct {
	bun.BaseModel `bun:"table:ingredients"`

	ID                int64  `bun:"id,pk,autoincrement"`
	Name              string `bun:"name,notnull,unique"`
	Description       string `bun:"description"`
	DescriptionVector string `bun:"description_vector"`
	Type              string `bun:"type"`
}

type MealIngredient struct {
	bun.BaseModel `bun:"table:meal_ingredient"`

	MealID       int64  `bun:"meal_id,pk"`
	PairID       int64  `bun:"pair_id,pk"`
	IngredientID int64  `bun:"ingredient_id"`
	Measure      string `bun:"measure"`
}

type ShopItem struct {
	bun.BaseModel `bun:"table:shop_items"`

	ID           int64   `bun:"id,pk,autoincrement"`
	IngredientID int64   `bun:"ingredient_id,unique"`
	Price        float64 `bun:"price,notnull"`
	OnSale       bool    `bun:"on_sale"`
	Discount     float64 `bun:"discount"`
}

type Purchase struct {
	bun.BaseModel `bun:"table:purchases"`

	ID           int64   `bun:"id,pk,autoincrement"`
	CustomerID   int64   `bun:"customer_id"`
	IngredientID int64   `bun:"ingredient_id"`
	Timestamp    float64 `bun:"timestamp,notnull"`
	Price        float64 `bun:"price,notnull"`
	Quantity     int     `bun:"quantity,notnull"`
}

type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID            int64  `bun:"id,pk,autoincrement"`
	FullName      string `bun:"full_name,notnull"`
	Email         string `bun:"email,notnull"`
	Summary       string `bun:"summary,notnull"`
	SummaryVector string `bun:"summary_vector,notnull"`
	Conversations int    `bun:"number_of_conversations,notnull"`
}
