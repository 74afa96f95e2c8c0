// Package extract pulls structured values out of free-text generative replies.
// Every extractor is best effort: unmatched values fall back to zero or are
// skipped, and the caller decides how loudly to report it.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	FieldProtein  = "protein"
	FieldFat      = "fat"
	FieldCarbs    = "carbs"
	FieldCalories = "calories"
)

var macroPatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{FieldProtein, labelPattern(`protein`)},
	{FieldFat, labelPattern(`fats?`)},
	{FieldCarbs, labelPattern(`carbohydrates?|carbs?`)},
	{FieldCalories, labelPattern(`calories|kcal`)},
}

// approx matches the hedges models put in front of a number: "~30g",
// "≈ 30", "about 30", "approx. 30".
const approx = `(?:~|≈|about|approx(?:imately|\.)?|around|roughly)?`

func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + label + `)\b\s*(?:\(\w+\))?\s*[:\-=]?\s*` + approx + `\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)
}

// emphasis drops markdown bold and italic markers ("**Protein:** 30g",
// "__Oatmeal__") before matching.
var emphasis = strings.NewReplacer("*", "", "_", "")

func stripEmphasis(s string) string {
	return emphasis.Replace(s)
}

// MacroResult holds the four estimates. Missing lists the fields that were
// not found and were therefore set to zero.
type MacroResult struct {
	Protein  float64
	Fat      float64
	Carbs    float64
	Calories float64
	Missing  []string
}

func (r MacroResult) Complete() bool {
	return len(r.Missing) == 0
}

// Macros reads "Protein: 30g", "fat - 12", "Calories: 480" style tokens.
// The first occurrence of each label wins.
func Macros(reply string) MacroResult {
	var res MacroResult
	reply = stripEmphasis(reply)
	for _, p := range macroPatterns {
		v, ok := firstNumber(p.re, reply)
		if !ok {
			res.Missing = append(res.Missing, p.field)
		}
		switch p.field {
		case FieldProtein:
			res.Protein = v
		case FieldFat:
			res.Fat = v
		case FieldCarbs:
			res.Carbs = v
		case FieldCalories:
			res.Calories = v
		}
	}
	return res
}

func firstNumber(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
