package snapshot

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NameForms carries the casing variants templates interpolate. Plural is the
// pluralized snake form.
type NameForms struct {
	Original string
	Snake    string
	Pascal   string
	Camel    string
	Plural   string
}

var titler = cases.Title(language.English)

// tokenize splits an identifier on underscores and lower-to-upper case
// boundaries: "userAccount_id" becomes ["user", "account", "id"].
func tokenize(name string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}
	var prev rune
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
		prev = r
	}
	flush()
	return tokens
}

// pluralize applies basic English pluralization to one word.
func pluralize(word string) string {
	switch {
	case word == "":
		return word
	case strings.HasSuffix(word, "s"), strings.HasSuffix(word, "x"),
		strings.HasSuffix(word, "z"), strings.HasSuffix(word, "ch"),
		strings.HasSuffix(word, "sh"):
		return word + "es"
	case len(word) > 1 && strings.HasSuffix(word, "y") && !strings.ContainsRune("aeiou", rune(word[len(word)-2])):
		return word[:len(word)-1] + "ies"
	default:
		return word + "s"
	}
}

// DeriveNameForms computes every casing variant of an identifier.
func DeriveNameForms(name string) NameForms {
	tokens := tokenize(name)
	if len(tokens) == 0 {
		return NameForms{Original: name}
	}

	snake := strings.Join(tokens, "_")

	var pascal, camel strings.Builder
	camel.WriteString(tokens[0])
	for i, token := range tokens {
		titled := titler.String(token)
		pascal.WriteString(titled)
		if i > 0 {
			camel.WriteString(titled)
		}
	}

	pluralTokens := append(append([]string(nil), tokens[:len(tokens)-1]...), pluralize(tokens[len(tokens)-1]))

	return NameForms{
		Original: name,
		Snake:    snake,
		Pascal:   pascal.String(),
		Camel:    camel.String(),
		Plural:   strings.Join(pluralTokens, "_"),
	}
}
