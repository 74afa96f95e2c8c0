// Package pantry records which ingredients a user has on hand, per day.
package pantry

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/pkg/apperr"

	"github.com/go-playground/validator/v10"
)

type Repository interface {
	UpsertPantryEntry(ctx context.Context, entry *models.PantryEntry) error
	PantryBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.PantryEntry, error)
}

// Item is one pantry line as submitted by a presenter. A nil Quantity means
// "have some"; the unit is then recorded as units.
type Item struct {
	Ingredient string      `json:"ingredient" validate:"required"`
	Quantity   *float64    `json:"quantity" validate:"omitempty,gte=0"`
	Unit       models.Unit `json:"unit" validate:"omitempty,oneof=grams kg ml liters cups pieces units"`
}

type Ledger struct {
	repo     Repository
	validate *validator.Validate
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, validate: validator.New()}
}

// Upsert replaces whatever is stored for (user, date, ingredient).
func (l *Ledger) Upsert(ctx context.Context, userID int64, date time.Time, item Item) (*models.PantryEntry, error) {
	entry, err := l.entryFor(userID, date, item)
	if err != nil {
		return nil, err
	}
	if err := l.repo.UpsertPantryEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("upsert pantry entry %q: %w", entry.Ingredient, err)
	}
	return entry, nil
}

// SaveAll validates the whole batch before writing any of it.
func (l *Ledger) SaveAll(ctx context.Context, userID int64, date time.Time, items []Item) ([]models.PantryEntry, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("no pantry items submitted")
	}
	entries := make([]models.PantryEntry, 0, len(items))
	for _, item := range items {
		entry, err := l.entryFor(userID, date, item)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	for i := range entries {
		if err := l.repo.UpsertPantryEntry(ctx, &entries[i]); err != nil {
			return nil, fmt.Errorf("upsert pantry entry %q: %w", entries[i].Ingredient, err)
		}
	}
	return entries, nil
}

// ForWeek returns every entry dated weekStart through weekStart+6.
func (l *Ledger) ForWeek(ctx context.Context, userID int64, weekStart time.Time) ([]models.PantryEntry, error) {
	from := nutrition.WeekStart(weekStart)
	entries, err := l.repo.PantryBetween(ctx, userID, from, from.AddDate(0, 0, 6))
	if err != nil {
		return nil, fmt.Errorf("load pantry for week %s: %w", from.Format(time.DateOnly), err)
	}
	return entries, nil
}

func (l *Ledger) entryFor(userID int64, date time.Time, item Item) (*models.PantryEntry, error) {
	item.Ingredient = strings.TrimSpace(item.Ingredient)
	if err := l.validate.Struct(item); err != nil {
		return nil, apperr.FromValidator(err)
	}

	unit := item.Unit
	switch {
	case item.Quantity == nil:
		unit = models.UnitUnits
	case unit == "":
		return nil, apperr.Validation(
			fmt.Sprintf("unit is required when a quantity is given for %q", item.Ingredient),
			apperr.FieldError{Field: "Unit", Tag: "required", Message: "Unit is required"},
		)
	}

	return &models.PantryEntry{
		UserID:     userID,
		Date:       nutrition.Day(date),
		Ingredient: item.Ingredient,
		Quantity:   item.Quantity,
		Unit:       unit,
	}, nil
}

// TouchedOn reports whether any entry is dated on day.
func TouchedOn(entries []models.PantryEntry, day time.Time) bool {
	d := nutrition.Day(day)
	for _, e := range entries {
		if nutrition.Day(e.Date).Equal(d) {
			return true
		}
	}
	return false
}

// OnHand keeps the latest entry per ingredient (case-insensitive) and drops
// ingredients recorded with an explicit zero quantity. Sorted by name.
func OnHand(entries []models.PantryEntry) []models.PantryEntry {
	latest := make(map[string]models.PantryEntry, len(entries))
	for _, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Ingredient))
		prev, ok := latest[key]
		if !ok || e.Date.After(prev.Date) || (e.Date.Equal(prev.Date) && e.UpdatedAt.After(prev.UpdatedAt)) {
			latest[key] = e
		}
	}

	out := make([]models.PantryEntry, 0, len(latest))
	for _, e := range latest {
		if e.Quantity != nil && *e.Quantity == 0 {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Ingredient) < strings.ToLower(out[j].Ingredient)
	})
	return out
}

// PromptLines renders on-hand entries as "name (quantity unit)" lines.
func PromptLines(entries []models.PantryEntry) []string {
	onHand := OnHand(entries)
	lines := make([]string, 0, len(onHand))
	for _, e := range onHand {
		lines = append(lines, FormatEntry(e))
	}
	return lines
}

func FormatEntry(e models.PantryEntry) string {
	if e.Quantity == nil {
		return fmt.Sprintf("%s (amount unspecified)", e.Ingredient)
	}
	return fmt.Sprintf("%s (%s %s)", e.Ingredient, strconv.FormatFloat(*e.Quantity, 'f', -1, 64), e.Unit)
}

// FormatForPrompt joins PromptLines with newlines.
func FormatForPrompt(entries []models.PantryEntry) string {
	return strings.Join(PromptLines(entries), "\n")
}
