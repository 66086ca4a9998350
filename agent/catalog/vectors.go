package catalog

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/recipe-basket-agent/agent/contract"
)

// Vector sources feed the retrieval indexes. Each yields (id, vector_json)
// rows; rows without a stored vector are filtered at the query.

type IngredientDescriptionSource struct {
	db bun.IDB
}

func NewIngredientDescriptionSource(db bun.IDB) *IngredientDescriptionSource {
	return &IngredientDescriptionSource{db: db}
}

func (s *IngredientDescriptionSource) IterVectors(ctx context.Context) ([]contractx.StoredVector, error) {
	return scanVectors(ctx, s.db, "ingredients", "description_vector")
}

type MealDescriptionSource struct {
	db bun.IDB
}

func NewMealDescriptionSource(db bun.IDB) *MealDescriptionSource {
	return &MealDescriptionSource{db: db}
}

func (s *MealDescriptionSource) IterVectors(ctx context.Context) ([]contractx.StoredVector, error) {
	return scanVectors(ctx, s.db, "meals", "description_vector")
}

type MealInstructionsSource struct {
	db bun.IDB
}

func NewMealInstructionsSource(db bun.IDB) *MealInstructionsSource {
	return &MealInstructionsSource{db: db}
}

func (s *MealInstructionsSource) IterVectors(ctx context.Context) ([]contractx.StoredVector, error) {
	return scanVectors(ctx, s.db, "meals", "instructions_vector")
}

func scanVectors(ctx context.Context, db bun.IDB, table, column string) ([]contractx.StoredVector, error) {
	var rows []contractx.StoredVector
	err := db.NewSelect().
		TableExpr(table).
		ColumnExpr("id").
		ColumnExpr("? AS vector_json", bun.Ident(column)).
		Where("? IS NOT NULL", bun.Ident(column)).
		Order("id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s.%s vectors: %w", table, column, err)
	}
	return rows, nil
}
