package bot

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"bodari/internal/grocery"
	"bodari/internal/models"
	"bodari/internal/nutrition"
	"bodari/internal/pantry"
	"bodari/internal/tracker"
	"bodari/pkg/apperr"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram rejects longer messages.
const maxMessageLen = 4096

const helpText = `I track your nutrition and plan your week.

/start - set up your profile
/today - today's targets and what you have eaten
/meal - log a meal
/history - your recent meals
/pantry - record what you have at home
/plan - this week's meal plan
/replan - generate a fresh plan for this week
/grocery - what to buy for this week's plan
/recipes [diet] - browse recipes, e.g. /recipes Vegan
/addrecipe - add a recipe
/cancel - stop the current step`

var (
	genderLabels   = []string{"Male", "Female", "Unspecified"}
	activityLabels = []string{"Sedentary", "Lightly active", "Moderately active", "Very active", "Super active"}
	goalLabels     = []string{"Lose weight", "Maintain weight", "Gain weight"}
)

const (
	confirmYes = "Yes, save"
	confirmNo  = "No, start over"
	noneLabel  = "None"
)

func keyboard(labels ...string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, (len(labels)+1)/2)
	for i := 0; i < len(labels); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(labels[i])}
		if i+1 < len(labels) {
			row = append(row, tgbotapi.NewKeyboardButton(labels[i+1]))
		}
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}

// userMessage turns an error into something a chat user can act on.
func userMessage(err error) string {
	appErr, ok := apperr.As(err)
	if !ok {
		return "Sorry, something went wrong. Please try again later."
	}
	switch appErr.Code {
	case apperr.CodeValidation:
		if len(appErr.Fields) > 0 {
			msgs := make([]string, 0, len(appErr.Fields))
			for _, f := range appErr.Fields {
				msgs = append(msgs, f.Message)
			}
			return "Please check your input: " + strings.Join(msgs, "; ")
		}
		return "Please check your input: " + appErr.Details
	case apperr.CodeNotFound:
		return "I don't have your profile yet. Send /start to set it up."
	case apperr.CodeDuplicateKey:
		return "You already have a profile. Use /today to see your targets."
	case apperr.CodeRateLimited:
		secs := int(math.Ceil(appErr.RetryAfter.Seconds()))
		if secs <= 0 {
			secs = 20
		}
		return fmt.Sprintf("The nutrition assistant is busy. Please try again in %d seconds.", secs)
	case apperr.CodeTimeout:
		return "That took too long to generate. Please try again."
	case apperr.CodeExternalService:
		return "The nutrition assistant is unavailable right now. Please try again later."
	default:
		return "Sorry, something went wrong. Please try again later."
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

func formatTargets(t nutrition.Targets) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily target: %d kcal\n", t.Calories)
	fmt.Fprintf(&b, "Protein %d g, fat %d g, carbs %d g", t.Macros.ProteinG, t.Macros.FatG, t.Macros.CarbsG)
	if msg := t.Advisory.Message(); msg != "" {
		b.WriteString("\n\n⚠️ " + msg)
	}
	return b.String()
}

func formatSummary(s *tracker.DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s\n\n", s.Date.Format("Monday, 2 January 2006"))
	row := func(label, unit string, target, consumed, remaining float64) {
		fmt.Fprintf(&b, "%s: %s / %s %s (%s left)\n", label,
			formatNumber(consumed), formatNumber(target), unit, formatNumber(remaining))
	}
	row("Calories", "kcal", s.Target.Calories, s.Consumed.Calories, s.Remaining.Calories)
	row("Protein", "g", s.Target.Protein, s.Consumed.Protein, s.Remaining.Protein)
	row("Fat", "g", s.Target.Fat, s.Consumed.Fat, s.Remaining.Fat)
	row("Carbs", "g", s.Target.Carbs, s.Consumed.Carbs, s.Remaining.Carbs)

	if len(s.Meals) == 0 {
		b.WriteString("\nNo meals logged yet. Use /meal to add one.")
	} else {
		b.WriteString("\nMeals:\n")
		for _, m := range s.Meals {
			b.WriteString("• " + formatMeal(m) + "\n")
		}
	}
	if msg := s.Targets.Advisory.Message(); msg != "" {
		b.WriteString("\n⚠️ " + msg)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatMeal(m models.MealLogEntry) string {
	value := func(f *float64) string {
		if f == nil {
			return "?"
		}
		return formatNumber(*f)
	}
	return fmt.Sprintf("%s: %s kcal (P %s, F %s, C %s)", m.Name, value(m.Calories), value(m.Protein), value(m.Fat), value(m.Carbs))
}

func formatHistory(meals []models.MealLogEntry) string {
	if len(meals) == 0 {
		return "No meals logged yet."
	}
	var b strings.Builder
	var day time.Time
	for _, m := range meals {
		if !m.Date.Equal(day) {
			day = m.Date
			fmt.Fprintf(&b, "\n%s\n", day.Format(time.DateOnly))
		}
		b.WriteString("• " + formatMeal(m) + "\n")
	}
	return strings.TrimSpace(b.String())
}

func formatPantry(entries []models.PantryEntry) string {
	if len(entries) == 0 {
		return "Your pantry is empty for this week."
	}
	lines := pantry.PromptLines(entries)
	return "In your pantry this week:\n• " + strings.Join(lines, "\n• ")
}

func formatGrocery(items []grocery.Item) string {
	if len(items) == 0 {
		return "You already have everything this week's plan needs."
	}
	var b strings.Builder
	b.WriteString("🛒 Grocery list:\n")
	for _, it := range items {
		b.WriteString("• " + it.String() + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRecipe(r models.Recipe) string {
	var b strings.Builder
	b.WriteString("🍽 " + r.Title + "\n")
	if len(r.Diet) > 0 {
		b.WriteString("Diet: " + strings.Join(r.Diet, ", ") + "\n")
	}
	fmt.Fprintf(&b, "%d kcal, protein %d g, fat %d g, carbs %d g\n", r.Calories, r.Macros.Protein, r.Macros.Fat, r.Macros.Carbs)
	if len(r.Ingredients) > 0 {
		names := make([]string, 0, len(r.Ingredients))
		for name, qty := range r.Ingredients {
			names = append(names, strings.TrimSpace(name+" "+qty))
		}
		sort.Strings(names)
		b.WriteString("Ingredients: " + strings.Join(names, ", ") + "\n")
	}
	if r.Instructions != "" {
		b.WriteString(r.Instructions)
	}
	return strings.TrimRight(b.String(), "\n")
}

// splitMessage cuts text at line breaks so every part fits in one message.
// A single line longer than the limit is cut hard.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			parts = append(parts, line[:limit])
			line = line[limit:]
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}

// parsePantryLine reads "Rice: 1.5 kg", "Milk: 0 liters" or a bare "Salt".
func parsePantryLine(line string) (pantry.Item, error) {
	name, rest, hasQty := strings.Cut(line, ":")
	item := pantry.Item{Ingredient: strings.TrimSpace(name)}
	if !hasQty || strings.TrimSpace(rest) == "" {
		return item, nil
	}

	fields := strings.Fields(rest)
	qty, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil {
		return item, apperr.Validation(fmt.Sprintf("%q is not a quantity", fields[0]),
			apperr.FieldError{Field: "Quantity", Tag: "numeric", Message: fmt.Sprintf("%s: %q is not a number", item.Ingredient, fields[0])})
	}
	item.Quantity = &qty
	if len(fields) > 1 {
		item.Unit = models.Unit(strings.ToLower(fields[1]))
	}
	return item, nil
}

func parsePantryLines(text string) ([]pantry.Item, error) {
	var items []pantry.Item
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := parsePantryLine(line)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
