// Package grocery turns a weekly plan into a shopping list.
package grocery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bodari/internal/extract"
	"bodari/internal/models"
	"bodari/internal/pantry"
)

type Item struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	// Mixed is set when the plan names the ingredient in more than one unit;
	// Quantity then only counts the first unit seen.
	Mixed bool `json:"mixed,omitempty"`
}

func (i Item) String() string {
	s := fmt.Sprintf("%s: %s %s", i.Name, strconv.FormatFloat(i.Quantity, 'f', -1, 64), i.Unit)
	if i.Mixed {
		s += " (+ other amounts)"
	}
	return s
}

// Reconcile lists what the plan needs that the pantry does not hold.
// Plan tokens are merged by lower-cased name and summed when their units
// match. Anything on hand in the pantry, whatever its amount, is left out.
func Reconcile(planText string, entries []models.PantryEntry) []Item {
	have := make(map[string]struct{})
	for _, e := range pantry.OnHand(entries) {
		have[key(e.Ingredient)] = struct{}{}
	}

	merged := make(map[string]*Item)
	order := make([]string, 0)
	for _, tok := range extract.IngredientTokens(planText) {
		k := key(tok.Name)
		if _, ok := have[k]; ok {
			continue
		}
		item, ok := merged[k]
		if !ok {
			merged[k] = &Item{Name: tok.Name, Quantity: tok.Quantity, Unit: tok.Unit}
			order = append(order, k)
			continue
		}
		if item.Unit == tok.Unit {
			item.Quantity += tok.Quantity
		} else {
			item.Mixed = true
		}
	}

	items := make([]Item, 0, len(order))
	for _, k := range order {
		items = append(items, *merged[k])
	}
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i].Name) < key(items[j].Name)
	})
	return items
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
