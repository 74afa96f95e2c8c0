package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bodari/internal/models"
)

func (db *PostgresDB) InsertMeal(ctx context.Context, meal *models.MealLogEntry) error {
	ingredients, err := encodeMap(meal.Ingredients)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO meal_logs (user_id, date, name, ingredients, protein, fat, carbs, calories)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at
    `
	err = db.pool.QueryRow(ctx, query,
		meal.UserID, meal.Date, meal.Name, ingredients,
		meal.Protein, meal.Fat, meal.Carbs, meal.Calories,
	).Scan(&meal.ID, &meal.CreatedAt)
	return translateErr(err, "meal", "")
}

func (db *PostgresDB) MealsOn(ctx context.Context, userID int64, date time.Time) ([]models.MealLogEntry, error) {
	query := `
        SELECT id, user_id, date, name, ingredients, protein, fat, carbs, calories, created_at
        FROM meal_logs
        WHERE user_id = $1 AND date = $2
        ORDER BY created_at
    `
	return db.queryMeals(ctx, query, userID, date)
}

// MealHistory returns the newest meals first. limit <= 0 means no limit.
func (db *PostgresDB) MealHistory(ctx context.Context, userID int64, limit int) ([]models.MealLogEntry, error) {
	query := `
        SELECT id, user_id, date, name, ingredients, protein, fat, carbs, calories, created_at
        FROM meal_logs
        WHERE user_id = $1
        ORDER BY date DESC, created_at DESC
    `
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return db.queryMeals(ctx, query, userID)
}

func (db *PostgresDB) queryMeals(ctx context.Context, query string, args ...interface{}) ([]models.MealLogEntry, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translateErr(err, "meals", "")
	}
	defer rows.Close()

	var meals []models.MealLogEntry
	for rows.Next() {
		var (
			m   models.MealLogEntry
			raw []byte
		)
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Date, &m.Name, &raw,
			&m.Protein, &m.Fat, &m.Carbs, &m.Calories, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		if m.Ingredients, err = decodeMap(raw); err != nil {
			return nil, fmt.Errorf("meal %d ingredients: %w", m.ID, err)
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

func (db *PostgresDB) UpsertPantryEntry(ctx context.Context, e *models.PantryEntry) error {
	query := `
        INSERT INTO pantry_entries (user_id, date, ingredient, quantity, unit)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, date, ingredient) DO UPDATE
        SET quantity = $4, unit = $5, updated_at = NOW()
        RETURNING updated_at
    `
	err := db.pool.QueryRow(ctx, query, e.UserID, e.Date, e.Ingredient, e.Quantity, string(e.Unit)).
		Scan(&e.UpdatedAt)
	return translateErr(err, "pantry entry", "")
}

// PantryBetween returns entries dated from..to inclusive.
func (db *PostgresDB) PantryBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.PantryEntry, error) {
	query := `
        SELECT user_id, date, ingredient, quantity, unit, updated_at
        FROM pantry_entries
        WHERE user_id = $1 AND date BETWEEN $2 AND $3
        ORDER BY date, ingredient
    `
	rows, err := db.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, translateErr(err, "pantry", "")
	}
	defer rows.Close()

	var entries []models.PantryEntry
	for rows.Next() {
		var (
			e    models.PantryEntry
			unit string
		)
		if err := rows.Scan(&e.UserID, &e.Date, &e.Ingredient, &e.Quantity, &unit, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pantry entry: %w", err)
		}
		e.Unit = models.Unit(unit)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (db *PostgresDB) GetWeeklyPlan(ctx context.Context, userID int64, weekStart time.Time) (*models.WeeklyMealPlan, error) {
	query := `
        SELECT user_id, week_start, plan_text, generated_at
        FROM weekly_meal_plans
        WHERE user_id = $1 AND week_start = $2
    `
	var p models.WeeklyMealPlan
	err := db.pool.QueryRow(ctx, query, userID, weekStart).Scan(&p.UserID, &p.WeekStart, &p.PlanText, &p.GeneratedAt)
	if err != nil {
		return nil, translateErr(err, "weekly plan", "")
	}
	return &p, nil
}

// UpsertWeeklyPlan replaces any plan stored for the same (user, week).
func (db *PostgresDB) UpsertWeeklyPlan(ctx context.Context, p *models.WeeklyMealPlan) error {
	query := `
        INSERT INTO weekly_meal_plans (user_id, week_start, plan_text, generated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id, week_start) DO UPDATE
        SET plan_text = EXCLUDED.plan_text, generated_at = EXCLUDED.generated_at
    `
	generatedAt := p.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx, query, p.UserID, p.WeekStart, p.PlanText, generatedAt)
	return translateErr(err, "weekly plan", "")
}

func encodeMap(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode ingredients: %w", err)
	}
	return b, nil
}

func decodeMap(raw []byte) (map[string]string, error) {
	m := map[string]string{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
