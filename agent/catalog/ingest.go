package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Ingest methods used by the knowledge loader. Upserts are keyed on the
// natural identifiers (ingredient name, meal id) so re-crawls stay
// idempotent.

func (s *Store) UpsertIngredient(ctx context.Context, ing *Ingredient) (int64, error) {
	existing := new(Ingredient)
	err := s.db.NewSelect().Model(existing).Where("name = ?", ing.Name).Scan(ctx)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup ingredient %q: %w", ing.Name, err)
	}
	if _, err := s.db.NewInsert().Model(ing).Returning("id").Exec(ctx); err != nil {
		return 0, fmt.Errorf("insert ingredient %q: %w", ing.Name, err)
	}
	return ing.ID, nil
}

func (s *Store) UpsertMeal(ctx context.Context, meal *Meal) error {
	_, err := s.db.NewInsert().
		Model(meal).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("category = EXCLUDED.category").
		Set("area = EXCLUDED.area").
		Set("instructions = EXCLUDED.instructions").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert meal %q: %w", meal.Name, err)
	}
	return nil
}

func (s *Store) LinkMealIngredient(ctx context.Context, link *MealIngredient) error {
	_, err := s.db.NewInsert().
		Model(link).
		On("CONFLICT (meal_id, pair_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("link meal=%d ingredient=%d: %w", link.MealID, link.IngredientID, err)
	}
	return nil
}

func (s *Store) SetIngredientVector(ctx context.Context, ingredientID int64, vector []float64) error {
	encoded, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal ingredient vector: %w", err)
	}
	_, err = s.db.NewUpdate().
		Model((*Ingredient)(nil)).
		Set("description_vector = ?", string(encoded)).
		Where("id = ?", ingredientID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set ingredient vector: %w", err)
	}
	return nil
}

func (s *Store) SetMealVectors(ctx context.Context, mealID int64, description string, descVec, insVec []float64) error {
	descJSON, err := json.Marshal(descVec)
	if err != nil {
		return fmt.Errorf("marshal meal description vector: %w", err)
	}
	insJSON, err := json.Marshal(insVec)
	if err != nil {
		return fmt.Errorf("marshal meal instructions vector: %w", err)
	}
	_, err = s.db.NewUpdate().
		Model((*Meal)(nil)).
		Set("description = ?", description).
		Set("description_vector = ?", string(descJSON)).
		Set("instructions_vector = ?", string(insJSON)).
		Where("id = ?", mealID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set meal vectors: %w", err)
	}
	return nil
}
