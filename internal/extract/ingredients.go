package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Token is one "name (quantity unit)" occurrence in a plan.
type Token struct {
	Name     string
	Quantity float64
	Unit     string
}

var ingredientToken = regexp.MustCompile(`(\p{L}[\p{L}\p{M}'’\- ]*?)\s*\(\s*(\d+(?:\.\d+)?)\s*(\p{L}+)\.?\s*\)`)

var leadingConnectors = []string{"with ", "and ", "of ", "a ", "an ", "plus ", "some "}

// IngredientTokens returns the tokens in order of appearance. Names are
// trimmed of leading connector words; case is preserved.
func IngredientTokens(text string) []Token {
	matches := ingredientToken.FindAllStringSubmatch(stripEmphasis(text), -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		name := cleanName(m[1])
		if name == "" {
			continue
		}
		qty, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		tokens = append(tokens, Token{Name: name, Quantity: qty, Unit: strings.ToLower(m[3])})
	}
	return tokens
}

func cleanName(raw string) string {
	name := strings.Trim(strings.TrimSpace(raw), "-'’ ")
	for {
		trimmed := false
		for _, c := range leadingConnectors {
			if strings.EqualFold(name, strings.TrimSpace(c)) {
				return ""
			}
			if len(name) >= len(c) && strings.EqualFold(name[:len(c)], c) {
				name = strings.TrimSpace(name[len(c):])
				trimmed = true
				break
			}
		}
		if !trimmed {
			break
		}
	}
	return strings.Join(strings.Fields(name), " ")
}
