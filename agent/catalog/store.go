package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

type Config struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// Connect opens a bun handle over the Postgres catalog.
func Connect(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("catalog dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Store implements contract.CatalogStore and contract.ProfileStore over bun.
// Concurrent sessions share the handle; write serialization is delegated to
// the database's transaction discipline.
type Store struct {
	db bun.IDB
}

func NewStore(db bun.IDB) *Store {
	return &Store{db: db}
}

func (s *Store) ListIngredients(ctx context.Context) ([]contractx.IngredientRef, error) {
	var rows []contractx.IngredientRef
	err := s.db.NewSelect().
		Model((*Ingredient)(nil)).
		Column("id", "name").
		Order("id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return rows, nil
}

func (s *Store) IngredientsByID(ctx context.Context, ids []int64) ([]contractx.IngredientRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []contractx.IngredientRef
	err := s.db.NewSelect().
		Model((*Ingredient)(nil)).
		Column("id", "name").
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("ingredients by id: %w", err)
	}
	return rows, nil
}

func (s *Store) MealsByID(ctx context.Context, ids []int64) ([]contractx.MealRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []contractx.MealRef
	err := s.db.NewSelect().
		Model((*Meal)(nil)).
		Column("id", "name").
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("meals by id: %w", err)
	}
	return rows, nil
}

func (s *Store) GetIngredient(ctx context.Context, id int64) (*contractx.IngredientDetail, error) {
	ing := new(Ingredient)
	err := s.db.NewSelect().Model(ing).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ingredient id=%d", contractx.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get ingredient: %w", err)
	}
	return &contractx.IngredientDetail{
		ID:          ing.ID,
		Name:        ing.Name,
		Description: ing.Description,
		Type:        ing.Type,
	}, nil
}

func (s *Store) GetMeal(ctx context.Context, id int64) (*contractx.MealDetail, error) {
	meal := new(Meal)
	err := s.db.NewSelect().Model(meal).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: meal id=%d", contractx.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get meal: %w", err)
	}
	return &contractx.MealDetail{
		ID:           meal.ID,
		Name:         meal.Name,
		Category:     meal.Category,
		Area:         meal.Area,
		Description:  meal.Description,
		Instructions: meal.Instructions,
	}, nil
}

func (s *Store) MealIngredients(ctx context.Context, mealID int64) ([]contractx.MealIngredientRow, error) {
	var rows []contractx.MealIngredientRow
	err := s.db.NewSelect().
		TableExpr("meal_ingredient AS mi").
		ColumnExpr("i.id AS ingredient_id").
		ColumnExpr("i.name AS name").
		ColumnExpr("mi.measure AS measure").
		ColumnExpr("si.price AS price").
		ColumnExpr("si.on_sale AS on_sale").
		ColumnExpr("si.discount AS discount").
		Join("JOIN ingredients AS i ON i.id = mi.ingredient_id").
		Join("LEFT JOIN shop_items AS si ON si.ingredient_id = i.id").
		Where("mi.meal_id = ?", mealID).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("meal ingredients: %w", err)
	}
	return rows, nil
}

func (s *Store) GetShopListing(ctx context.Context, ingredientID int64) (*contractx.ShopListing, error) {
	item := new(ShopItem)
	err := s.db.NewSelect().Model(item).Where("ingredient_id = ?", ingredientID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ingredient id=%d", contractx.ErrNotInShop, ingredientID)
	}
	if err != nil {
		return nil, fmt.Errorf("get shop listing: %w", err)
	}
	return &contractx.ShopListing{
		IngredientID: item.IngredientID,
		Price:        item.Price,
		OnSale:       item.OnSale,
		Discount:     item.Discount,
	}, nil
}

func (s *Store) ListSaleItems(ctx context.Context) ([]contractx.SaleItem, error) {
	var rows []contractx.SaleItem
	err := s.db.NewSelect().
		TableExpr("shop_items AS si").
		ColumnExpr("si.ingredient_id AS ingredient_id").
		ColumnExpr("i.name AS name").
		ColumnExpr("si.price AS price").
		ColumnExpr("si.discount AS discount").
		Join("JOIN ingredients AS i ON i.id = si.ingredient_id").
		Where("si.on_sale").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	return rows, nil
}

func (s *Store) MealsWithSaleOverlap(ctx context.Context, minOverlap, k int) ([]contractx.SaleOverlapMeal, error) {
	if minOverlap < 1 {
		minOverlap = 1
	}
	if k < 1 {
		k = 10
	}
	var rows []contractx.SaleOverlapMeal
	err := s.db.NewSelect().
		TableExpr("meal_ingredient AS mi").
		ColumnExpr("m.id AS meal_id").
		ColumnExpr("m.name AS name").
		ColumnExpr("count(*) AS overlap").
		ColumnExpr("m.description AS description").
		Join("JOIN meals AS m ON m.id = mi.meal_id").
		Join("JOIN shop_items AS si ON si.ingredient_id = mi.ingredient_id").
		Where("si.on_sale").
		GroupExpr("m.id, m.name, m.description").
		Having("count(*) >= ?", minOverlap).
		OrderExpr("overlap DESC, m.id ASC").
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("meals with sale overlap: %w", err)
	}
	return rows, nil
}

/* ------------------------------ profile side ----------------------------- */

const defaultCustomerSummary = "No summary available yet."

func (s *Store) EnsureCustomer(ctx context.Context, fullName string) (*contractx.CustomerProfile, error) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return nil, fmt.Errorf("%w: customer name is empty", contractx.ErrValidation)
	}

	cust := new(Customer)
	err := s.db.NewSelect().Model(cust).Where("full_name = ?", name).Scan(ctx)
	if err == nil {
		return toProfile(cust), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ensure customer: %w", err)
	}

	cust = &Customer{
		FullName:      name,
		Email:         "DUMMY",
		Summary:       defaultCustomerSummary,
		SummaryVector: "[]",
		Conversations: 0,
	}
	if _, err := s.db.NewInsert().Model(cust).Returning("id").Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return toProfile(cust), nil
}

// RecordPurchases appends one purchase row per basket item in a single
// transaction; a failed insert rolls back the whole batch.
func (s *Store) RecordPurchases(ctx context.Context, customerID int64, at float64, rows []contractx.PurchaseRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: no purchase rows", contractx.ErrValidation)
	}
	purchases := make([]Purchase, 0, len(rows))
	for _, row := range rows {
		qty := row.Quantity
		if qty < 1 {
			qty = 1
		}
		purchases = append(purchases, Purchase{
			CustomerID:   customerID,
			IngredientID: row.IngredientID,
			Timestamp:    at,
			Price:        row.Price,
			Quantity:     qty,
		})
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&purchases).Exec(ctx); err != nil {
			return fmt.Errorf("insert purchases: %w", err)
		}
		return nil
	})
}

// UpdateProfile persists the regenerated summary, its embedding, and the
// bumped conversation counter as one update.
func (s *Store) UpdateProfile(ctx context.Context, customerID int64, summary string, vector []float64) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal summary vector: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*Customer)(nil)).
		Set("summary = ?", summary).
		Set("summary_vector = ?", string(encoded)).
		Set("number_of_conversations = number_of_conversations + 1").
		Where("id = ?", customerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: customer id=%d", contractx.ErrNotFound, customerID)
	}
	return nil
}

// PurchasersOfIngredients lists the distinct customers who have bought any
// of the given ingredients; the sale notifier targets them first.
func (s *Store) PurchasersOfIngredients(ctx context.Context, ingredientIDs []int64) ([]contractx.CustomerProfile, error) {
	if len(ingredientIDs) == 0 {
		return nil, nil
	}
	var rows []contractx.CustomerProfile
	err := s.db.NewSelect().
		Distinct().
		TableExpr("customers AS c").
		ColumnExpr("c.id AS id").
		ColumnExpr("c.full_name AS full_name").
		ColumnExpr("c.summary AS summary").
		ColumnExpr("c.number_of_conversations AS conversations").
		Join("JOIN purchases AS p ON p.customer_id = c.id").
		Where("p.ingredient_id IN (?)", bun.In(ingredientIDs)).
		OrderExpr("c.id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("purchasers of ingredients: %w", err)
	}
	return rows, nil
}

func (s *Store) AllCustomers(ctx context.Context) ([]contractx.CustomerProfile, error) {
	var rows []contractx.CustomerProfile
	err := s.db.NewSelect().
		TableExpr("customers AS c").
		ColumnExpr("c.id AS id").
		ColumnExpr("c.full_name AS full_name").
		ColumnExpr("c.summary AS summary").
		ColumnExpr("c.number_of_conversations AS conversations").
		OrderExpr("c.id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return rows, nil
}

func toProfile(c *Customer) *contractx.CustomerProfile {
	return &contractx.CustomerProfile{
		ID:            c.ID,
		FullName:      c.FullName,
		Summary:       c.Summary,
		Conversations: c.Conversations,
	}
}
