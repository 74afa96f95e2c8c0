package db

import (
	"context"
	"fmt"

	"bodari/internal/models"
)

func (db *PostgresDB) InsertRecipe(ctx context.Context, r *models.Recipe) error {
	ingredients, err := encodeMap(r.Ingredients)
	if err != nil {
		return err
	}
	diet := r.Diet
	if diet == nil {
		diet = []string{}
	}

	query := `
        INSERT INTO recipes (title, image_url, diet, ingredients, calories, protein, fat, carbs, instructions)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at
    `
	err = db.pool.QueryRow(ctx, query,
		r.Title, r.ImageURL, diet, ingredients, r.Calories,
		r.Macros.Protein, r.Macros.Fat, r.Macros.Carbs, r.Instructions,
	).Scan(&r.ID, &r.CreatedAt)
	return translateErr(err, "recipe", r.Title)
}

// ListRecipes returns the catalogue in insertion order.
func (db *PostgresDB) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	query := `
        SELECT id, title, image_url, diet, ingredients, calories, protein, fat, carbs, instructions, created_at
        FROM recipes
        ORDER BY id
    `
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, translateErr(err, "recipes", "")
	}
	defer rows.Close()

	var recipes []models.Recipe
	for rows.Next() {
		var (
			r   models.Recipe
			raw []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Title, &r.ImageURL, &r.Diet, &raw, &r.Calories,
			&r.Macros.Protein, &r.Macros.Fat, &r.Macros.Carbs, &r.Instructions, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		if r.Ingredients, err = decodeMap(raw); err != nil {
			return nil, fmt.Errorf("recipe %d ingredients: %w", r.ID, err)
		}
		recipes = append(recipes, r)
	}
	return recipes, rows.Err()
}

func (db *PostgresDB) CountRecipes(ctx context.Context) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&n)
	return n, translateErr(err, "recipes", "")
}
